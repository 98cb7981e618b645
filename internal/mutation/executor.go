// Package mutation executes nested mutation plans inside one transaction
// and wires normalization, planning, execution and read-back together.
package mutation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/mutationerr"
	"tidb-nested-graphql/internal/planner"
	"tidb-nested-graphql/internal/relation"
	"tidb-nested-graphql/internal/sqlutil"
)

// Executor runs write plans. Steps run strictly in plan order.
type Executor struct {
	catalog *relation.Catalog
	dialect sqlutil.Dialect
	db      dbexec.TxBeginner
	logger  *slog.Logger
}

// NewExecutor creates an executor. db is only needed by Execute; Run uses
// the transaction it is given.
func NewExecutor(catalog *relation.Catalog, dialect sqlutil.Dialect, db dbexec.TxBeginner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{catalog: catalog, dialect: dialect, db: db, logger: logger}
}

// ReadBack runs after the last step, inside the same transaction and before
// it commits. A non-nil error rolls the mutation back.
type ReadBack func(ctx context.Context, tx dbexec.QueryExecutor, ec *ExecutionContext) error

// Execute runs plan in a transaction of its own. The transaction commits
// after the last step and then, when set, readBack; it rolls back on any
// failure or cancellation and the failing error is returned unchanged.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, readBack ReadBack) (*ExecutionContext, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	ec, err := e.Run(ctx, tx, plan)
	if err == nil && readBack != nil {
		err = readBack(ctx, tx, ec)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.rollback(ctx, tx, err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ec, nil
}

func (e *Executor) rollback(ctx context.Context, tx dbexec.TxExecutor, cause error) {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		e.logger.WarnContext(ctx, "rollback failed", slog.String("error", rbErr.Error()))
	}
	e.logger.WarnContext(ctx, "mutation rolled back", slog.String("error", cause.Error()))
}

// Run executes plan inside a transaction owned by the caller.
func (e *Executor) Run(ctx context.Context, tx dbexec.QueryExecutor, plan *planner.Plan) (*ExecutionContext, error) {
	if plan == nil {
		return nil, fmt.Errorf("nil plan")
	}
	ec := NewExecutionContext(tx)
	for i := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := &plan.Steps[i]
		if err := e.runStep(ctx, ec, step); err != nil {
			return nil, err
		}
	}
	return ec, nil
}

func (e *Executor) runStep(ctx context.Context, ec *ExecutionContext, step *planner.WriteStep) (err error) {
	ctx, span := otel.Tracer("tidb-nested-graphql/mutation").Start(ctx, "mutation.step",
		trace.WithAttributes(
			attribute.Int("mutation.step.id", int(step.ID)),
			attribute.String("mutation.step.kind", step.Kind.String()),
			attribute.String("db.table", step.Table),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	e.logger.DebugContext(ctx, "running write step",
		slog.Int("step", int(step.ID)),
		slog.String("kind", step.Kind.String()),
		slog.String("table", step.Table),
	)

	switch step.Kind {
	case planner.StepInsert:
		return e.insert(ctx, ec, step)
	case planner.StepUpdateByKey:
		return e.update(ctx, ec, step)
	case planner.StepDeleteExcluding:
		return e.deleteExcluding(ctx, ec, step)
	default:
		return fmt.Errorf("unsupported step kind %s", step.Kind)
	}
}

func (e *Executor) insert(ctx context.Context, ec *ExecutionContext, step *planner.WriteStep) error {
	values, err := ec.ResolveAll(step.Values)
	if err != nil {
		return err
	}
	out := copyMap(values)

	var returning []string
	if e.dialect.SupportsReturning() {
		returning = step.KeyColumns
	}
	query, err := planner.PlanInsert(e.dialect, step.Table, values, returning)
	if err != nil {
		return err
	}

	if len(returning) > 0 {
		rows, err := ec.tx.QueryContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return err
		}
		row, err := scanOne(rows, len(returning))
		if err != nil {
			return err
		}
		if row != nil {
			for i, col := range returning {
				out[col] = row[i]
			}
		}
	} else {
		result, err := ec.tx.ExecContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return err
		}
		if col := e.autoIncrementColumn(step.Table); col != "" && out[col] == nil {
			id, err := result.LastInsertId()
			if err != nil {
				return err
			}
			out[col] = id
		}
	}

	if err := e.fillExports(ctx, ec, step, out); err != nil {
		return err
	}
	ec.record(step.ID, out)
	return nil
}

func (e *Executor) update(ctx context.Context, ec *ExecutionContext, step *planner.WriteStep) error {
	key, err := ec.ResolveAll(step.Key)
	if err != nil {
		return err
	}
	scope, err := ec.ResolveAll(step.Scope)
	if err != nil {
		return err
	}
	set, err := ec.ResolveAll(step.Values)
	if err != nil {
		return err
	}
	where := copyMap(scope)
	for col, v := range key {
		where[col] = v
	}

	if len(set) == 0 {
		// An empty patch only asserts the row exists.
		columns := step.KeyColumns
		if len(columns) == 0 {
			columns = sortedKeys(key)
		}
		query, err := planner.PlanSelect(e.dialect, step.Table, columns, where, nil)
		if err != nil {
			return err
		}
		rows, err := ec.tx.QueryContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return err
		}
		row, err := scanOne(rows, len(columns))
		if err != nil {
			return err
		}
		if row == nil {
			return mutationerr.NotFound(step.Table, key)
		}
	} else {
		query, err := planner.PlanUpdate(e.dialect, step.Table, set, where)
		if err != nil {
			return err
		}
		result, err := ec.tx.ExecContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return mutationerr.NotFound(step.Table, key)
		}
	}

	out := copyMap(key)
	for col, v := range set {
		out[col] = v
	}
	if err := e.fillExports(ctx, ec, step, out); err != nil {
		return err
	}
	ec.record(step.ID, out)
	return nil
}

func (e *Executor) deleteExcluding(ctx context.Context, ec *ExecutionContext, step *planner.WriteStep) error {
	scope, err := ec.ResolveAll(step.Scope)
	if err != nil {
		return err
	}

	keep := make([][]any, 0, len(step.Exclude))
	for _, id := range step.Exclude {
		out, ok := ec.Output(id)
		if !ok {
			return fmt.Errorf("delete step %d keeps step %d which has not run", step.ID, id)
		}
		key, err := keyTuple(out, step.KeyColumns)
		if err != nil {
			return fmt.Errorf("delete step %d: %w", step.ID, err)
		}
		keep = append(keep, key)
	}

	query, err := planner.PlanDeleteExcluding(e.dialect, step.Table, scope, step.KeyColumns, keep)
	if err != nil {
		return err
	}
	result, err := ec.tx.ExecContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	e.logger.DebugContext(ctx, "deleted unlisted related rows",
		slog.String("table", step.Table),
		slog.Int64("rows", deleted),
	)
	ec.record(step.ID, map[string]any{})
	return nil
}

// fillExports reads back exported columns the write did not already yield.
func (e *Executor) fillExports(ctx context.Context, ec *ExecutionContext, step *planner.WriteStep, out map[string]any) error {
	var missing []string
	for _, col := range step.Exports {
		if _, ok := out[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if len(step.KeyColumns) == 0 {
		return fmt.Errorf("cannot read back %v from %s: table has no primary key", missing, step.Table)
	}
	where := make(map[string]any, len(step.KeyColumns))
	for _, col := range step.KeyColumns {
		v, ok := out[col]
		if !ok || v == nil {
			return fmt.Errorf("cannot read back %v from %s: key column %q is unknown", missing, step.Table, col)
		}
		where[col] = v
	}
	query, err := planner.PlanSelect(e.dialect, step.Table, missing, where, nil)
	if err != nil {
		return err
	}
	rows, err := ec.tx.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return err
	}
	row, err := scanOne(rows, len(missing))
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("row written by step %d in %s could not be read back", step.ID, step.Table)
	}
	for i, col := range missing {
		out[col] = row[i]
	}
	return nil
}

func (e *Executor) autoIncrementColumn(table string) string {
	t, ok := e.catalog.Table(table)
	if !ok {
		return ""
	}
	for _, col := range introspection.PrimaryKeyColumns(*t) {
		if col.IsAutoIncrement {
			return col.Name
		}
	}
	return ""
}

// scanOne reads the first row of rows and closes them. It returns nil when
// the result is empty.
func scanOne(rows dbexec.Rows, n int) ([]any, error) {
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	dest := make([]any, n)
	ptrs := make([]any, n)
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range dest {
		if b, ok := v.([]byte); ok {
			dest[i] = string(b)
		}
	}
	return dest, rows.Err()
}

func keyTuple(values map[string]any, columns []string) ([]any, error) {
	key := make([]any, len(columns))
	for i, col := range columns {
		v, ok := values[col]
		if !ok || v == nil {
			return nil, fmt.Errorf("key column %q is unknown", col)
		}
		key[i] = v
	}
	return key, nil
}
