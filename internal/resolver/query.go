package resolver

import (
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"

	"tidb-nested-graphql/internal/mutationerr"
)

// addTableQueries registers <type>By<Pk> and all<Types>.
func (r *Resolver) addTableQueries(fields graphql.Fields, table string) {
	tableType := r.objectType(table)

	allName := r.namer.RegisterRoot(r.namer.AllQueryName(table), "all:"+table)
	fields[allName] = &graphql.Field{
		Type:    graphql.NewNonNull(r.connectionType(table)),
		Resolve: r.makeAllResolver(table),
	}

	pk := r.catalog.PrimaryKey(table)
	if len(pk) == 0 {
		return
	}
	t, ok := r.catalog.Table(table)
	if !ok {
		return
	}
	args := graphql.FieldConfigArgument{}
	for _, colName := range pk {
		col, ok := t.ColumnByName(colName)
		if !ok {
			return
		}
		args[r.catalog.FieldName(table, colName)] = &graphql.ArgumentConfig{
			Type: graphql.NewNonNull(scalarType(*col)),
		}
	}
	byKeyName := r.namer.RegisterRoot(r.namer.ByKeyQueryName(table, pk), "byKey:"+table)
	fields[byKeyName] = &graphql.Field{
		Type:    tableType,
		Args:    args,
		Resolve: r.makeByKeyResolver(table, pk),
	}
}

func (r *Resolver) makeByKeyResolver(table string, pk []string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startResolverSpan(p.Context, "graphql.query.by_key",
			attribute.String("db.table", table),
		)
		defer func() {
			finishResolverSpan(span, err)
			span.End()
		}()

		key := make(map[string]any, len(pk))
		for _, col := range pk {
			key[col] = p.Args[r.catalog.FieldName(table, col)]
		}
		shape := r.shapeFromFields(table, p.Info.FieldASTs, p.Info.Fragments)
		node, err := r.service.Assembler().Assemble(ctx, r.queryerForContext(ctx), table, key, shape)
		if err != nil {
			return nil, mutationerr.Classify(err)
		}
		if node == nil {
			return nil, nil
		}
		return node.Map(), nil
	}
}

func (r *Resolver) makeAllResolver(table string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startResolverSpan(p.Context, "graphql.query.all",
			attribute.String("db.table", table),
		)
		defer func() {
			finishResolverSpan(span, err)
			span.End()
		}()

		nodesFields := childFields(p.Info.FieldASTs, "nodes", p.Info.Fragments)
		shape := r.shapeFromFields(table, nodesFields, p.Info.Fragments)
		rows, err := r.service.Assembler().AssembleAll(ctx, r.queryerForContext(ctx), table, shape)
		if err != nil {
			return nil, mutationerr.Classify(err)
		}
		nodes := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			nodes = append(nodes, row.Map())
		}
		return map[string]interface{}{"nodes": nodes}, nil
	}
}
