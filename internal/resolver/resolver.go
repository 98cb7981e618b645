// Package resolver builds the GraphQL schema over the relation catalog:
// object types with forward and reverse relation fields, nested mutation
// inputs per relation, and the root fields that hand requests to the
// mutation service.
package resolver

import (
	"context"
	"sync"

	"github.com/graphql-go/graphql"

	"tidb-nested-graphql/internal/assembler"
	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/mutation"
	"tidb-nested-graphql/internal/naming"
	"tidb-nested-graphql/internal/relation"
)

// Resolver builds and serves one GraphQL schema.
// Types are cached by name so self and mutual references resolve to the same
// object.
type Resolver struct {
	catalog         *relation.Catalog
	namer           *naming.Namer
	service         *mutation.Service
	executor        dbexec.QueryExecutor
	typeCache       map[string]*graphql.Object
	connectionCache map[string]*graphql.Object
	inputCache      map[string]*graphql.InputObject
	mu              sync.RWMutex
}

// NewResolver creates a resolver. executor serves reads outside a mutation
// transaction.
func NewResolver(service *mutation.Service, executor dbexec.QueryExecutor) *Resolver {
	catalog := service.Catalog()
	return &Resolver{
		catalog:         catalog,
		namer:           catalog.Namer(),
		service:         service,
		executor:        executor,
		typeCache:       make(map[string]*graphql.Object),
		connectionCache: make(map[string]*graphql.Object),
		inputCache:      make(map[string]*graphql.InputObject),
	}
}

// BuildGraphQLSchema constructs the executable schema.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	queryFields := graphql.Fields{}
	mutationFields := graphql.Fields{}

	for _, table := range r.catalog.Tables() {
		r.addTableQueries(queryFields, table.Name)
		r.addTableMutations(mutationFields, table.Name)
	}

	if len(queryFields) == 0 {
		queryFields["_schema"] = &graphql.Field{
			Type:        graphql.String,
			Description: "Placeholder field when database has no tables",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "No tables found in database", nil
			},
		}
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		})
	}
	return graphql.NewSchema(schemaConfig)
}

// queryerForContext returns the request's mutation transaction when there
// is one, so reads observe uncommitted writes of the same request.
func (r *Resolver) queryerForContext(ctx context.Context) assembler.Queryer {
	if mc := mutation.FromContext(ctx); mc != nil && mc.Tx() != nil {
		return mc.Tx()
	}
	return r.executor
}
