// Package assembler re-reads the rows touched by a nested mutation and
// builds the response tree, following each requested relation in its
// direction.
package assembler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/planner"
	"tidb-nested-graphql/internal/relation"
	"tidb-nested-graphql/internal/sqltype"
	"tidb-nested-graphql/internal/sqlutil"
)

// Queryer is the read surface the assembler needs. Both a pool executor and
// an open transaction satisfy it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (dbexec.Rows, error)
}

// Assembler reads result trees.
type Assembler struct {
	catalog *relation.Catalog
	dialect sqlutil.Dialect
}

// New creates an assembler over catalog.
func New(catalog *relation.Catalog, dialect sqlutil.Dialect) *Assembler {
	return &Assembler{catalog: catalog, dialect: dialect}
}

// Assemble reads the row of table identified by key (column → value) and
// the relations named in shape. It returns nil when no row matches.
func (a *Assembler) Assemble(ctx context.Context, q Queryer, table string, key map[string]any, shape *Shape) (*ResultNode, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("assemble %s: empty key", table)
	}
	ctx, span := otel.Tracer("tidb-nested-graphql/assembler").Start(ctx, "assembler.assemble")
	span.SetAttributes(attribute.String("db.table", table))
	defer span.End()

	nodes, err := a.read(ctx, q, table, key, shape)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// AssembleAll reads every row of table ordered by primary key.
func (a *Assembler) AssembleAll(ctx context.Context, q Queryer, table string, shape *Shape) ([]*ResultNode, error) {
	return a.read(ctx, q, table, nil, shape)
}

func (a *Assembler) read(ctx context.Context, q Queryer, table string, where map[string]any, shape *Shape) ([]*ResultNode, error) {
	if shape == nil {
		shape = &Shape{}
	}
	t, ok := a.catalog.Table(table)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	pk := a.catalog.PrimaryKey(table)
	var columns []string
	seen := make(map[string]bool)
	addColumn := func(col string) {
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	for _, col := range pk {
		addColumn(col)
	}
	for _, c := range shape.Columns {
		addColumn(c.Column)
	}
	for _, rel := range shape.Relations {
		for _, col := range rel.Link.LocalColumns() {
			addColumn(col)
		}
	}
	if len(columns) == 0 {
		for _, col := range t.Columns {
			addColumn(col.Name)
		}
	}

	query, err := planner.PlanSelect(a.dialect, table, columns, where, pk)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, err
	}

	types := make([]sqltype.GraphQLType, len(columns))
	for i, col := range columns {
		if c, ok := t.ColumnByName(col); ok {
			types[i] = sqltype.MapToGraphQL(c.DataType)
		}
	}

	var raw []map[string]any
	for rows.Next() {
		dest := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			_ = rows.Close()
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = sqltype.Coerce(dest[i], types[i])
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Relations are read after the cursor is closed; some drivers allow only
	// one open result set per transaction.
	if err := rows.Close(); err != nil {
		return nil, err
	}

	nodes := make([]*ResultNode, 0, len(raw))
	for _, row := range raw {
		node := &ResultNode{
			Table:     table,
			Values:    make(map[string]any, len(shape.Columns)),
			Relations: make(map[string]*Related, len(shape.Relations)),
		}
		for _, c := range shape.Columns {
			node.Values[c.Field] = row[c.Column]
		}
		for _, rel := range shape.Relations {
			related, err := a.readRelated(ctx, q, row, rel)
			if err != nil {
				return nil, err
			}
			node.Relations[rel.Field] = related
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (a *Assembler) readRelated(ctx context.Context, q Queryer, row map[string]any, rel RelationShape) (*Related, error) {
	related := &Related{Direction: rel.Link.Direction}
	local, remote := rel.Link.LocalColumns(), rel.Link.RemoteColumns()
	where := make(map[string]any, len(remote))
	for i, col := range local {
		v := row[col]
		if v == nil {
			return related, nil
		}
		where[remote[i]] = v
	}
	nodes, err := a.read(ctx, q, rel.Link.RelatedTable, where, rel.Shape)
	if err != nil {
		return nil, err
	}
	if rel.Link.Direction == relation.Forward && len(nodes) > 1 {
		nodes = nodes[:1]
	}
	related.Nodes = nodes
	return related, nil
}
