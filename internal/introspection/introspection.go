package introspection

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tidb-nested-graphql/internal/sqlutil"
)

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type loader interface {
	tables(ctx context.Context, db Queryer) ([]tableInfo, error)
	columns(ctx context.Context, db Queryer, tableName string) ([]Column, error)
	primaryKeys(ctx context.Context, db Queryer, tableName string) ([]string, error)
	foreignKeys(ctx context.Context, db Queryer, tableName string) ([]ForeignKey, error)
}

type tableInfo struct {
	Name    string
	Comment string
}

// IntrospectDatabaseContext loads the relation catalog for the given dialect.
// databaseName selects the MySQL schema; PostgreSQL uses current_schema() and
// SQLite the main database.
func IntrospectDatabaseContext(ctx context.Context, db Queryer, dialect sqlutil.Dialect, databaseName string) (*Schema, error) {
	ctx, span := startSpan(ctx, "introspection.build_schema",
		attribute.String("db.name", databaseName),
		attribute.String("db.system", string(dialect)),
	)
	defer span.End()

	var l loader
	switch dialect {
	case sqlutil.MySQL:
		l = mysqlLoader{databaseName: databaseName}
	case sqlutil.Postgres:
		l = postgresLoader{}
	case sqlutil.SQLite:
		l = sqliteLoader{}
	default:
		err := fmt.Errorf("unsupported dialect %q", dialect)
		recordSpanError(span, err)
		return nil, err
	}

	schema, err := load(ctx, db, l)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("db.table_count", len(schema.Tables)))
	return schema, nil
}

func load(ctx context.Context, db Queryer, l loader) (*Schema, error) {
	tables, err := l.tables(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	schema := &Schema{Tables: []Table{}}
	for _, info := range tables {
		columns, err := l.columns(ctx, db, info.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for %s: %w", info.Name, err)
		}
		primaryKeys, err := l.primaryKeys(ctx, db, info.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get primary keys for table %s: %w", info.Name, err)
		}
		foreignKeys, err := l.foreignKeys(ctx, db, info.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get foreign keys for table %s: %w", info.Name, err)
		}
		markPrimaryKeys(columns, primaryKeys)

		schema.Tables = append(schema.Tables, Table{
			Name:        info.Name,
			Comment:     info.Comment,
			Columns:     columns,
			ForeignKeys: foreignKeys,
		})
	}

	fillImplicitReferences(schema)
	return schema, nil
}

// fillImplicitReferences resolves foreign keys declared without referenced
// columns (SQLite "REFERENCES parent") to the referenced table's primary key.
func fillImplicitReferences(schema *Schema) {
	for ti := range schema.Tables {
		fks := schema.Tables[ti].ForeignKeys
		for i := range fks {
			if fks[i].ReferencedColumn != "" {
				continue
			}
			ref, ok := schema.TableByName(fks[i].ReferencedTable)
			if !ok {
				continue
			}
			pk := PrimaryKeyColumnNames(*ref)
			pos := fks[i].OrdinalPosition - 1
			if pos >= 0 && pos < len(pk) {
				fks[i].ReferencedColumn = pk[pos]
			}
		}
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("tidb-nested-graphql/introspection")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
