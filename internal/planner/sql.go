package planner

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"tidb-nested-graphql/internal/sqlutil"
)

// SQLQuery is a rendered statement and its arguments.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// PlanInsert builds SQL inserting one row. Columns are emitted in sorted
// order. returning lists columns to read back with RETURNING on dialects that
// support it.
func PlanInsert(d sqlutil.Dialect, table string, values map[string]interface{}, returning []string) (SQLQuery, error) {
	suffix := ""
	if len(returning) > 0 && d.SupportsReturning() {
		suffix = "RETURNING " + quoteList(d, returning)
	}

	if len(values) == 0 {
		query := fmt.Sprintf("INSERT INTO %s %s", d.QuoteIdentifier(table), d.EmptyInsert())
		if suffix != "" {
			query += " " + suffix
		}
		return SQLQuery{SQL: query}, nil
	}

	columns := sortedColumns(values)
	quotedCols := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		quotedCols[i] = d.QuoteIdentifier(col)
		args[i] = values[col]
	}

	builder := sq.Insert(d.QuoteIdentifier(table)).
		Columns(quotedCols...).
		Values(args...).
		PlaceholderFormat(d.Placeholder())
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}

	query, queryArgs, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: queryArgs}, nil
}

// PlanUpdate builds SQL updating the rows matching every column of where.
func PlanUpdate(d sqlutil.Dialect, table string, set, where map[string]interface{}) (SQLQuery, error) {
	if len(set) == 0 {
		return SQLQuery{}, fmt.Errorf("update set cannot be empty")
	}
	if len(where) == 0 {
		return SQLQuery{}, fmt.Errorf("update of %s requires a key", table)
	}

	setMap := make(map[string]interface{}, len(set))
	for col, val := range set {
		setMap[d.QuoteIdentifier(col)] = val
	}

	query, args, err := sq.Update(d.QuoteIdentifier(table)).
		SetMap(setMap).
		Where(eq(d, where)).
		PlaceholderFormat(d.Placeholder()).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanSelect builds SQL reading columns of the rows matching where, ordered
// by orderBy.
func PlanSelect(d sqlutil.Dialect, table string, columns []string, where map[string]interface{}, orderBy []string) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("select from %s requires columns", table)
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.QuoteIdentifier(col)
	}

	builder := sq.Select(quoted...).From(d.QuoteIdentifier(table))
	if len(where) > 0 {
		builder = builder.Where(eq(d, where))
	}
	if len(orderBy) > 0 {
		order := make([]string, len(orderBy))
		for i, col := range orderBy {
			order[i] = d.QuoteIdentifier(col)
		}
		builder = builder.OrderBy(order...)
	}

	query, args, err := builder.PlaceholderFormat(d.Placeholder()).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanDeleteExcluding builds SQL deleting the rows matching scope whose key
// is not one of keep. Each entry of keep holds values for keyColumns in order.
func PlanDeleteExcluding(d sqlutil.Dialect, table string, scope map[string]interface{}, keyColumns []string, keep [][]interface{}) (SQLQuery, error) {
	if len(scope) == 0 {
		return SQLQuery{}, fmt.Errorf("delete from %s requires a scope", table)
	}
	if len(keyColumns) == 0 {
		return SQLQuery{}, fmt.Errorf("delete from %s requires a primary key", table)
	}

	builder := sq.Delete(d.QuoteIdentifier(table)).Where(eq(d, scope))
	if len(keep) > 0 {
		if len(keyColumns) == 1 {
			values := make([]interface{}, len(keep))
			for i, key := range keep {
				values[i] = key[0]
			}
			builder = builder.Where(sq.NotEq{d.QuoteIdentifier(keyColumns[0]): values})
		} else {
			kept := sq.Or{}
			for _, key := range keep {
				match := sq.Eq{}
				for i, col := range keyColumns {
					match[d.QuoteIdentifier(col)] = key[i]
				}
				kept = append(kept, sq.And{match})
			}
			keepSQL, keepArgs, err := kept.ToSql()
			if err != nil {
				return SQLQuery{}, err
			}
			builder = builder.Where(sq.Expr("NOT "+keepSQL, keepArgs...))
		}
	}

	query, args, err := builder.PlaceholderFormat(d.Placeholder()).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func eq(d sqlutil.Dialect, values map[string]interface{}) sq.Eq {
	where := sq.Eq{}
	for col, val := range values {
		where[d.QuoteIdentifier(col)] = val
	}
	return where
}

func quoteList(d sqlutil.Dialect, columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

func sortedColumns(values map[string]interface{}) []string {
	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
