package resolver

import (
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"

	"tidb-nested-graphql/internal/assembler"
	"tidb-nested-graphql/internal/mutationerr"
)

// addTableMutations registers update<Type>By<Pk> and create<Type> for
// tables with a primary key.
func (r *Resolver) addTableMutations(fields graphql.Fields, table string) {
	pk := r.catalog.PrimaryKey(table)
	if len(pk) == 0 {
		return
	}
	typeName := r.catalog.TypeName(table)
	entityField := r.namer.SingularField(table)
	tableType := r.objectType(table)

	updateName := r.namer.RegisterRoot(r.namer.UpdateMutationName(table, pk), "update:"+table)
	fields[updateName] = &graphql.Field{
		Type: r.payloadType("Update"+typeName+"Payload", entityField, tableType),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(r.updateRootInputType(table, upperFirst(updateName)+"Input")),
			},
		},
		Description: "Updates a " + typeName + " by primary key, applying nested relation inputs in one transaction.",
		Resolve:     r.makeUpdateResolver(table, entityField),
	}

	createName := r.namer.RegisterRoot(r.namer.CreateMutationName(table), "create:"+table)
	fields[createName] = &graphql.Field{
		Type: r.payloadType("Create"+typeName+"Payload", entityField, tableType),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(r.createRootInputType(table, upperFirst(createName)+"Input", entityField)),
			},
		},
		Description: "Creates a " + typeName + ", applying nested relation inputs in one transaction.",
		Resolve:     r.makeCreateResolver(table, entityField),
	}
}

// updateRootInputType is {<pk>..., <type>Patch}.
func (r *Resolver) updateRootInputType(table, name string) *graphql.InputObject {
	return r.cachedInput(name, func() graphql.InputObjectConfigFieldMap {
		fields := graphql.InputObjectConfigFieldMap{}
		t, ok := r.catalog.Table(table)
		if !ok {
			return fields
		}
		for _, colName := range r.catalog.PrimaryKey(table) {
			col, ok := t.ColumnByName(colName)
			if !ok {
				continue
			}
			fields[r.catalog.FieldName(table, colName)] = &graphql.InputObjectFieldConfig{
				Type: graphql.NewNonNull(scalarType(*col)),
			}
		}
		fields[r.namer.PatchField(table)] = &graphql.InputObjectFieldConfig{
			Type: r.patchInputType(table),
		}
		return fields
	})
}

// createRootInputType is {<type>: <Type>Input!}.
func (r *Resolver) createRootInputType(table, name, entityField string) *graphql.InputObject {
	return r.cachedInput(name, func() graphql.InputObjectConfigFieldMap {
		return graphql.InputObjectConfigFieldMap{
			entityField: &graphql.InputObjectFieldConfig{
				Type: graphql.NewNonNull(r.createInputType(table)),
			},
		}
	})
}

func (r *Resolver) payloadType(name, entityField string, tableType *graphql.Object) *graphql.Object {
	r.mu.RLock()
	cached, ok := r.typeCache[name]
	r.mu.RUnlock()
	if ok {
		return cached
	}
	payload := graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			entityField: &graphql.Field{Type: tableType},
		},
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.typeCache[name]; ok {
		return cached
	}
	r.typeCache[name] = payload
	return payload
}

func (r *Resolver) makeUpdateResolver(table, entityField string) graphql.FieldResolveFn {
	patchField := r.namer.PatchField(table)
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startResolverSpan(p.Context, "graphql.mutation.update",
			attribute.String("db.table", table),
			attribute.String("graphql.field.name", p.Info.FieldName),
		)
		defer func() {
			finishResolverSpan(span, err)
			span.End()
		}()

		input, ok := p.Args["input"].(map[string]interface{})
		if !ok {
			return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "input must be an object")
		}
		key := make(map[string]any)
		var patch map[string]any
		for field, value := range input {
			if field == patchField {
				patch, _ = value.(map[string]interface{})
				continue
			}
			key[field] = value
		}

		shape := r.payloadShape(table, entityField, p)
		node, err := r.service.UpdateByKey(ctx, table, key, patch, shape)
		if err != nil {
			return nil, mutationerr.Classify(err)
		}
		return map[string]interface{}{entityField: node.Map()}, nil
	}
}

func (r *Resolver) makeCreateResolver(table, entityField string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startResolverSpan(p.Context, "graphql.mutation.create",
			attribute.String("db.table", table),
			attribute.String("graphql.field.name", p.Info.FieldName),
		)
		defer func() {
			finishResolverSpan(span, err)
			span.End()
		}()

		input, ok := p.Args["input"].(map[string]interface{})
		if !ok {
			return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "input must be an object")
		}
		record, _ := input[entityField].(map[string]interface{})

		shape := r.payloadShape(table, entityField, p)
		node, err := r.service.Create(ctx, table, record, shape)
		if err != nil {
			return nil, mutationerr.Classify(err)
		}
		return map[string]interface{}{entityField: node.Map()}, nil
	}
}

// payloadShape reads the selection below the payload's entity field.
func (r *Resolver) payloadShape(table, entityField string, p graphql.ResolveParams) *assembler.Shape {
	entities := childFields(p.Info.FieldASTs, entityField, p.Info.Fragments)
	return r.shapeFromFields(table, entities, p.Info.Fragments)
}
