// Package schemabuild assembles the served GraphQL schema: it introspects the
// database, builds the relation catalog and mutation service over it, and
// wraps the resulting schema in an HTTP handler.
package schemabuild

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/mutation"
	"tidb-nested-graphql/internal/naming"
	"tidb-nested-graphql/internal/observability"
	"tidb-nested-graphql/internal/relation"
	"tidb-nested-graphql/internal/resolver"
	"tidb-nested-graphql/internal/sqlutil"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
)

// Executor is the database handle the schema reads and writes through.
type Executor interface {
	dbexec.QueryExecutor
	dbexec.TxBeginner
}

// Config defines inputs for schema assembly.
type Config struct {
	Queryer      introspection.Queryer
	Executor     Executor
	Dialect      sqlutil.Dialect
	DatabaseName string
	Naming       naming.Config
	MaxDepth     int
	GraphiQL     bool
	Metrics      *observability.MutationMetrics
	Logger       *logging.Logger
}

// Snapshot contains the artifacts produced by Build.
type Snapshot struct {
	DBSchema      *introspection.Schema
	Catalog       *relation.Catalog
	Service       *mutation.Service
	GraphQLSchema *graphql.Schema
	Handler       http.Handler
	BuiltAt       time.Time
	// Fingerprint is a structural hash of the relation catalog.
	Fingerprint string
}

// Build runs the schema assembly pipeline used by the server and tests.
func Build(ctx context.Context, cfg Config) (*Snapshot, error) {
	if cfg.Queryer == nil {
		return nil, fmt.Errorf("schema builder requires an introspection queryer")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("schema builder requires a query executor")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	start := time.Now()

	dbSchema, err := introspection.IntrospectDatabaseContext(ctx, cfg.Queryer, cfg.Dialect, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	for _, table := range dbSchema.Tables {
		logger.Debug("table discovered",
			slog.String("table", table.Name),
			slog.Int("columns", len(table.Columns)),
			slog.Int("foreignKeys", len(table.ForeignKeys)),
		)
	}

	catalog := relation.NewCatalog(dbSchema, naming.New(cfg.Naming, logger.Logger))

	opts := []mutation.ServiceOption{mutation.WithLogger(logger.Logger)}
	if cfg.MaxDepth > 0 {
		opts = append(opts, mutation.WithMaxDepth(cfg.MaxDepth))
	}
	if cfg.Metrics != nil {
		opts = append(opts, mutation.WithMetrics(cfg.Metrics))
	}
	service := mutation.NewService(catalog, cfg.Dialect, cfg.Executor, opts...)

	graphqlSchema, err := resolver.NewResolver(service, cfg.Executor).BuildGraphQLSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	graphqlHandler := handler.New(&handler.Config{
		Schema:     &graphqlSchema,
		Pretty:     true,
		GraphiQL:   cfg.GraphiQL,
		Playground: cfg.GraphiQL,
	})

	fingerprint := Fingerprint(dbSchema)
	logger.Info("schema snapshot built",
		slog.Int("tables", len(dbSchema.Tables)),
		slog.String("fingerprint", fingerprint),
		slog.Duration("duration", time.Since(start)),
	)

	return &Snapshot{
		DBSchema:      dbSchema,
		Catalog:       catalog,
		Service:       service,
		GraphQLSchema: &graphqlSchema,
		Handler:       graphqlHandler,
		BuiltAt:       time.Now(),
		Fingerprint:   fingerprint,
	}, nil
}

// Fingerprint hashes the parts of schema that shape the GraphQL surface:
// table names, columns with their nullability and key flags, and foreign
// keys. It is independent of table and column order.
func Fingerprint(schema *introspection.Schema) string {
	if schema == nil {
		return ""
	}
	lines := make([]string, 0, len(schema.Tables)*4)
	for _, table := range schema.Tables {
		for _, col := range table.Columns {
			lines = append(lines, fmt.Sprintf("c|%s|%s|%s|%t|%t|%t|%t",
				table.Name, col.Name, strings.ToLower(col.DataType),
				col.IsNullable, col.IsPrimaryKey, col.IsAutoIncrement, col.HasDefault))
		}
		for _, fk := range table.ForeignKeys {
			lines = append(lines, fmt.Sprintf("f|%s|%s|%s|%s|%s|%d",
				table.Name, fk.ConstraintName, fk.ColumnName, fk.ReferencedTable, fk.ReferencedColumn, fk.OrdinalPosition))
		}
	}
	sort.Strings(lines)

	hash := sha256.New()
	for _, line := range lines {
		fmt.Fprintln(hash, line)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
