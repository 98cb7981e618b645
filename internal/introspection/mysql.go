package introspection

import (
	"context"
	"database/sql"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// mysqlLoader reads INFORMATION_SCHEMA on MySQL and TiDB.
type mysqlLoader struct {
	databaseName string
}

func (l mysqlLoader) tables(ctx context.Context, db Queryer) ([]tableInfo, error) {
	ctx, span := startSpan(ctx, "introspection.get_tables",
		attribute.String("db.name", l.databaseName),
	)
	defer span.End()

	query := `
		SELECT TABLE_NAME, TABLE_COMMENT
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`

	rows, err := db.QueryContext(ctx, query, l.databaseName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var tables []tableInfo
	for rows.Next() {
		var info tableInfo
		var comment sql.NullString
		if err := rows.Scan(&info.Name, &comment); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		if comment.Valid {
			info.Comment = strings.TrimSpace(comment.String)
		}
		tables = append(tables, info)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return tables, nil
}

func (l mysqlLoader) columns(ctx context.Context, db Queryer, tableName string) ([]Column, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.name", l.databaseName),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			COLUMN_COMMENT,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

	rows, err := db.QueryContext(ctx, query, l.databaseName, tableName)
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
		var isNullable, extra string
		var comment, columnDefault sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &comment, &isNullable, &columnDefault, &extra); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		if comment.Valid {
			col.Comment = strings.TrimSpace(comment.String)
		}
		col.IsNullable = strings.EqualFold(isNullable, "YES")
		if columnDefault.Valid {
			col.ColumnDefault = columnDefault.String
			col.HasDefault = true
		}
		extraLower := strings.ToLower(extra)
		// TiDB reports AUTO_RANDOM keys in EXTRA as well.
		col.IsAutoIncrement = strings.Contains(extraLower, "auto_increment") || strings.Contains(extraLower, "auto_random")
		col.IsGenerated = strings.Contains(extraLower, "generated")
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

func (l mysqlLoader) primaryKeys(ctx context.Context, db Queryer, tableName string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_keys",
		attribute.String("db.name", l.databaseName),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
	`

	names, err := scanStrings(ctx, db, query, l.databaseName, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return names, nil
}

func (l mysqlLoader) foreignKeys(ctx context.Context, db Queryer, tableName string) ([]ForeignKey, error) {
	ctx, span := startSpan(ctx, "introspection.get_foreign_keys",
		attribute.String("db.name", l.databaseName),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT
			COLUMN_NAME,
			REFERENCED_TABLE_NAME,
			REFERENCED_COLUMN_NAME,
			CONSTRAINT_NAME,
			ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ?
			AND TABLE_NAME = ?
			AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION
	`

	fks, err := scanForeignKeys(ctx, db, query, l.databaseName, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return fks, nil
}

func scanStrings(ctx context.Context, db Queryer, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanForeignKeys(ctx context.Context, db Queryer, query string, args ...any) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var foreignKeys []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.ColumnName, &fk.ReferencedTable,
			&fk.ReferencedColumn, &fk.ConstraintName, &fk.OrdinalPosition); err != nil {
			return nil, err
		}
		foreignKeys = append(foreignKeys, fk)
	}
	return foreignKeys, rows.Err()
}
