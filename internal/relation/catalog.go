package relation

import (
	"fmt"

	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/naming"
)

// Catalog is an immutable view of the relation catalog built once per schema.
// It is safe for concurrent use.
type Catalog struct {
	schema      *introspection.Schema
	namer       *naming.Namer
	constraints []Constraint
	links       map[string][]Link
	fields      map[string]map[string]string // table → column → field
	columns     map[string]map[string]string // table → field → column
}

// NewCatalog indexes schema. The namer decides field names and resolves
// collisions between columns and relation fields.
func NewCatalog(schema *introspection.Schema, namer *naming.Namer) *Catalog {
	if schema == nil {
		schema = &introspection.Schema{}
	}
	if namer == nil {
		namer = naming.Default()
	}
	c := &Catalog{
		schema:  schema,
		namer:   namer,
		links:   make(map[string][]Link),
		fields:  make(map[string]map[string]string),
		columns: make(map[string]map[string]string),
	}

	for _, table := range schema.Tables {
		typeName := namer.TypeName(table.Name)
		c.fields[table.Name] = make(map[string]string)
		c.columns[table.Name] = make(map[string]string)
		for _, col := range table.Columns {
			field := namer.RegisterField(typeName, namer.FieldName(col.Name), "column:"+col.Name)
			namer.RegisterField(typeName+"Patch", field, "column:"+col.Name)
			c.fields[table.Name][col.Name] = field
			c.columns[table.Name][field] = col.Name
		}
	}

	for _, table := range schema.Tables {
		for _, fk := range introspection.ForeignKeyConstraints(table) {
			if _, ok := schema.TableByName(fk.ReferencedTable); !ok {
				continue
			}
			c.constraints = append(c.constraints, Constraint{
				Name:              fk.ConstraintName,
				OwningTable:       table.Name,
				OwningColumns:     fk.ColumnNames,
				ReferencedTable:   fk.ReferencedTable,
				ReferencedColumns: fk.ReferencedColumns,
			})
		}
	}

	for _, con := range c.constraints {
		c.addLink(con, Forward)
	}
	for _, con := range c.constraints {
		c.addLink(con, Reverse)
	}
	return c
}

func (c *Catalog) addLink(con Constraint, dir Direction) {
	link := Link{Constraint: con, Direction: dir}
	source := "fk:" + con.OwningTable + "." + con.Name
	if dir == Forward {
		link.Table = con.OwningTable
		link.RelatedTable = con.ReferencedTable
		link.InputField = c.namer.ForwardInputField(con.ReferencedTable, con.OwningColumns)
		link.OutputField = c.namer.ForwardOutputField(con.ReferencedTable, con.OwningColumns)
	} else {
		link.Table = con.ReferencedTable
		link.RelatedTable = con.OwningTable
		link.InputField = c.namer.ReverseInputField(con.OwningTable, con.ReferencedColumns)
		link.OutputField = c.namer.ReverseOutputField(con.OwningTable, con.OwningColumns)
		source += ":reverse"
	}
	typeName := c.namer.TypeName(link.Table)
	link.OutputField = c.namer.RegisterField(typeName, link.OutputField, source)
	link.InputField = c.namer.RegisterField(typeName+"Patch", link.InputField, source)
	c.links[link.Table] = append(c.links[link.Table], link)
}

// Namer returns the namer used to build the catalog.
func (c *Catalog) Namer() *naming.Namer {
	return c.namer
}

// Tables returns every table in catalog order.
func (c *Catalog) Tables() []introspection.Table {
	return c.schema.Tables
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (*introspection.Table, bool) {
	return c.schema.TableByName(name)
}

// Resolve finds the constraint named constraintName that involves table,
// either as owner or as referenced table.
func (c *Catalog) Resolve(table, constraintName string) (Constraint, error) {
	for _, con := range c.constraints {
		if con.Name != constraintName {
			continue
		}
		if con.OwningTable == table || con.ReferencedTable == table {
			return con, nil
		}
	}
	return Constraint{}, fmt.Errorf("%w: %q on table %q", ErrUnknownConstraint, constraintName, table)
}

// Direction returns the direction of con relative to currentTable.
func (c *Catalog) Direction(con Constraint, currentTable string) Direction {
	return DirectionFrom(con, currentTable)
}

// HasPrimaryKey reports whether table has a usable primary key.
func (c *Catalog) HasPrimaryKey(table string) bool {
	t, ok := c.schema.TableByName(table)
	return ok && introspection.HasPrimaryKey(*t)
}

// PrimaryKey returns the primary key column names of table.
func (c *Catalog) PrimaryKey(table string) []string {
	t, ok := c.schema.TableByName(table)
	if !ok {
		return nil
	}
	return introspection.PrimaryKeyColumnNames(*t)
}

// Links returns every link usable from table: forward links first, then
// reverse links, each in constraint order.
func (c *Catalog) Links(table string) []Link {
	return c.links[table]
}

// LinkByInputField finds the link behind a nested input field.
func (c *Catalog) LinkByInputField(table, field string) (Link, bool) {
	for _, l := range c.links[table] {
		if l.InputField == field {
			return l, true
		}
	}
	return Link{}, false
}

// LinkByOutputField finds the link behind a read-back field.
func (c *Catalog) LinkByOutputField(table, field string) (Link, bool) {
	for _, l := range c.links[table] {
		if l.OutputField == field {
			return l, true
		}
	}
	return Link{}, false
}

// FieldName returns the GraphQL field name of a column.
func (c *Catalog) FieldName(table, column string) string {
	if f, ok := c.fields[table][column]; ok {
		return f
	}
	return c.namer.FieldName(column)
}

// ColumnForField maps a GraphQL field name back to its column.
func (c *Catalog) ColumnForField(table, field string) (introspection.Column, bool) {
	col, ok := c.columns[table][field]
	if !ok {
		return introspection.Column{}, false
	}
	t, _ := c.schema.TableByName(table)
	column, ok := t.ColumnByName(col)
	if !ok {
		return introspection.Column{}, false
	}
	return *column, true
}

// TypeName returns the GraphQL type name of a table.
func (c *Catalog) TypeName(table string) string {
	return c.namer.TypeName(table)
}
