package introspection

import (
	"context"
	"database/sql"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// postgresLoader reads information_schema for the connection's current schema.
type postgresLoader struct{}

func (postgresLoader) tables(ctx context.Context, db Queryer) ([]tableInfo, error) {
	ctx, span := startSpan(ctx, "introspection.get_tables")
	defer span.End()

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	names, err := scanStrings(ctx, db, query)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	tables := make([]tableInfo, 0, len(names))
	for _, name := range names {
		tables = append(tables, tableInfo{Name: name})
	}
	return tables, nil
}

func (postgresLoader) columns(ctx context.Context, db Queryer, tableName string) ([]Column, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.is_identity,
			c.is_generated
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema()
		  AND c.table_name = $1
		ORDER BY c.ordinal_position
	`

	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []Column
	for rows.Next() {
		var col Column
		var isNullable, isIdentity, isGenerated string
		var columnDefault sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &columnDefault, &isIdentity, &isGenerated); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		col.IsNullable = strings.EqualFold(isNullable, "YES")
		if columnDefault.Valid {
			col.ColumnDefault = columnDefault.String
			col.HasDefault = true
		}
		col.IsAutoIncrement = strings.EqualFold(isIdentity, "YES") ||
			strings.HasPrefix(col.ColumnDefault, "nextval(")
		col.IsGenerated = strings.EqualFold(isGenerated, "ALWAYS")
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

func (postgresLoader) primaryKeys(ctx context.Context, db Queryer, tableName string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_keys",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = current_schema()
			AND tc.table_name = $1
		ORDER BY kcu.ordinal_position
	`
	names, err := scanStrings(ctx, db, query, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return names, nil
}

func (postgresLoader) foreignKeys(ctx context.Context, db Queryer, tableName string) ([]ForeignKey, error) {
	ctx, span := startSpan(ctx, "introspection.get_foreign_keys",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT
			kcu.column_name,
			rkcu.table_name,
			rkcu.column_name,
			tc.constraint_name,
			kcu.ordinal_position
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.referential_constraints AS rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		JOIN information_schema.key_column_usage AS rkcu
			ON rkcu.constraint_name = rc.unique_constraint_name
			AND rkcu.table_schema = rc.unique_constraint_schema
			AND rkcu.ordinal_position = kcu.position_in_unique_constraint
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = current_schema()
			AND tc.table_name = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`
	fks, err := scanForeignKeys(ctx, db, query, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return fks, nil
}
