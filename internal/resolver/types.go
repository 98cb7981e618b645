package resolver

import (
	"github.com/graphql-go/graphql"

	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/relation"
	"tidb-nested-graphql/internal/sqltype"
)

// objectType returns the output type of a table. Fields are built lazily so
// relation cycles resolve through the cache.
func (r *Resolver) objectType(table string) *graphql.Object {
	typeName := r.catalog.TypeName(table)

	r.mu.RLock()
	cached, ok := r.typeCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	description := ""
	if t, ok := r.catalog.Table(table); ok {
		description = t.Comment
	}
	objType := graphql.NewObject(graphql.ObjectConfig{
		Name:        typeName,
		Description: description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return r.objectFields(table)
		}),
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.typeCache[typeName]; ok {
		return cached
	}
	r.typeCache[typeName] = objType
	return objType
}

func (r *Resolver) objectFields(table string) graphql.Fields {
	fields := graphql.Fields{}
	t, ok := r.catalog.Table(table)
	if !ok {
		return fields
	}

	for _, col := range t.Columns {
		var fieldType graphql.Output = scalarType(col)
		if !col.IsNullable {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[r.catalog.FieldName(table, col.Name)] = &graphql.Field{
			Type:        fieldType,
			Description: col.Comment,
		}
	}

	for _, link := range r.catalog.Links(table) {
		if link.Direction == relation.Forward {
			fields[link.OutputField] = &graphql.Field{
				Type:        r.objectType(link.RelatedTable),
				Description: "Row referenced through " + link.Constraint.Name + ".",
			}
			continue
		}
		fields[link.OutputField] = &graphql.Field{
			Type:        graphql.NewNonNull(r.connectionType(link.RelatedTable)),
			Description: "Rows referencing this row through " + link.Constraint.Name + ".",
		}
	}
	return fields
}

// connectionType wraps a list of table rows as {nodes}.
func (r *Resolver) connectionType(table string) *graphql.Object {
	name := r.catalog.TypeName(table) + "Connection"

	r.mu.RLock()
	cached, ok := r.connectionCache[name]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	conn := graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"nodes": &graphql.Field{
					Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.objectType(table)))),
				},
			}
		}),
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.connectionCache[name]; ok {
		return cached
	}
	r.connectionCache[name] = conn
	return conn
}

// scalarType maps a column to a GraphQL scalar. Unknown types are strings.
func scalarType(col introspection.Column) *graphql.Scalar {
	switch sqltype.MapToGraphQL(col.DataType) {
	case sqltype.TypeInt:
		return graphql.Int
	case sqltype.TypeFloat:
		return graphql.Float
	case sqltype.TypeBoolean:
		return graphql.Boolean
	default:
		return graphql.String
	}
}
