package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"tidb-nested-graphql/internal/sqlutil"
)

// sqliteLoader reads the catalog through PRAGMA statements.
type sqliteLoader struct{}

func (sqliteLoader) tables(ctx context.Context, db Queryer) ([]tableInfo, error) {
	ctx, span := startSpan(ctx, "introspection.get_tables")
	defer span.End()

	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
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

type sqliteColumn struct {
	col   Column
	pkPos int
}

func (sqliteLoader) tableInfo(ctx context.Context, db Queryer, tableName string) ([]sqliteColumn, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqlutil.QuoteIdentifier(tableName)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []sqliteColumn
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultVal sql.NullString
		// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		col := Column{
			Name:       name,
			DataType:   strings.ToLower(colType),
			IsNullable: notNull == 0 && pk == 0,
		}
		if defaultVal.Valid {
			col.ColumnDefault = defaultVal.String
			col.HasDefault = true
		}
		out = append(out, sqliteColumn{col: col, pkPos: pk})
	}
	return out, rows.Err()
}

func (l sqliteLoader) columns(ctx context.Context, db Queryer, tableName string) ([]Column, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	info, err := l.tableInfo(ctx, db, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	pkCount := 0
	for _, c := range info {
		if c.pkPos > 0 {
			pkCount++
		}
	}

	columns := make([]Column, 0, len(info))
	for _, c := range info {
		// A lone INTEGER PRIMARY KEY aliases the rowid and is assigned on insert.
		if c.pkPos > 0 && pkCount == 1 && c.col.DataType == "integer" {
			c.col.IsAutoIncrement = true
		}
		columns = append(columns, c.col)
	}
	return columns, nil
}

func (l sqliteLoader) primaryKeys(ctx context.Context, db Queryer, tableName string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_keys",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	info, err := l.tableInfo(ctx, db, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var keyed []sqliteColumn
	for _, c := range info {
		if c.pkPos > 0 {
			keyed = append(keyed, c)
		}
	}
	sort.Slice(keyed, func(i, j int) bool { return keyed[i].pkPos < keyed[j].pkPos })

	names := make([]string, 0, len(keyed))
	for _, c := range keyed {
		names = append(names, c.col.Name)
	}
	return names, nil
}

func (sqliteLoader) foreignKeys(ctx context.Context, db Queryer, tableName string) ([]ForeignKey, error) {
	ctx, span := startSpan(ctx, "introspection.get_foreign_keys",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", sqlutil.QuoteIdentifier(tableName)))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	type fkRow struct {
		id int
		fk ForeignKey
	}
	var collected []fkRow
	for rows.Next() {
		var id, seq int
		var table, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		// PRAGMA foreign_key_list returns: id, seq, table, from, to, on_update, on_delete, match
		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		collected = append(collected, fkRow{id: id, fk: ForeignKey{
			ColumnName:       from,
			ReferencedTable:  table,
			ReferencedColumn: to.String,
			OrdinalPosition:  seq + 1,
		}})
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	// SQLite constraints are unnamed; name them <table>_<columns>_fkey.
	columnsByID := make(map[int][]string)
	for _, r := range collected {
		columnsByID[r.id] = append(columnsByID[r.id], r.fk.ColumnName)
	}
	fks := make([]ForeignKey, 0, len(collected))
	for _, r := range collected {
		r.fk.ConstraintName = tableName + "_" + strings.Join(columnsByID[r.id], "_") + "_fkey"
		fks = append(fks, r.fk)
	}
	return fks, nil
}
