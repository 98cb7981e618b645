package assembler

import (
	"tidb-nested-graphql/internal/relation"
)

// ColumnRef names a column read into the result under its GraphQL field.
type ColumnRef struct {
	Field  string
	Column string
}

// RelationShape is a relation to read below a row.
type RelationShape struct {
	Field string
	Link  relation.Link
	Shape *Shape
}

// Shape describes which columns and relations of a table a caller asked for.
type Shape struct {
	Columns   []ColumnRef
	Relations []RelationShape
}

// AddColumn appends a column unless it is already present.
func (s *Shape) AddColumn(field, column string) {
	for _, c := range s.Columns {
		if c.Field == field {
			return
		}
	}
	s.Columns = append(s.Columns, ColumnRef{Field: field, Column: column})
}

// AddRelation appends a relation, merging into an existing entry for the
// same field.
func (s *Shape) AddRelation(field string, link relation.Link) *Shape {
	for i := range s.Relations {
		if s.Relations[i].Field == field {
			return s.Relations[i].Shape
		}
	}
	child := &Shape{}
	s.Relations = append(s.Relations, RelationShape{Field: field, Link: link, Shape: child})
	return child
}

// FullShape selects every column of table and, down to depth relation
// levels, every relation.
func FullShape(c *relation.Catalog, table string, depth int) *Shape {
	s := &Shape{}
	t, ok := c.Table(table)
	if !ok {
		return s
	}
	for _, col := range t.Columns {
		s.AddColumn(c.FieldName(table, col.Name), col.Name)
	}
	if depth <= 0 {
		return s
	}
	for _, link := range c.Links(table) {
		s.Relations = append(s.Relations, RelationShape{
			Field: link.OutputField,
			Link:  link,
			Shape: FullShape(c, link.RelatedTable, depth-1),
		})
	}
	return s
}
