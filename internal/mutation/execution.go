package mutation

import (
	"fmt"

	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/planner"
)

// ExecutionContext carries the transaction of one plan run and the columns
// each finished step produced. It is never shared between requests.
type ExecutionContext struct {
	tx      dbexec.QueryExecutor
	outputs map[planner.StepID]map[string]any
}

// NewExecutionContext creates an empty context bound to tx.
func NewExecutionContext(tx dbexec.QueryExecutor) *ExecutionContext {
	return &ExecutionContext{
		tx:      tx,
		outputs: make(map[planner.StepID]map[string]any),
	}
}

// Tx returns the transaction the plan runs in.
func (ec *ExecutionContext) Tx() dbexec.QueryExecutor {
	return ec.tx
}

// Output returns the columns recorded for a finished step.
func (ec *ExecutionContext) Output(id planner.StepID) (map[string]any, bool) {
	out, ok := ec.outputs[id]
	return out, ok
}

func (ec *ExecutionContext) record(id planner.StepID, out map[string]any) {
	ec.outputs[id] = out
}

// Resolve substitutes a placeholder with the value its step produced.
// Literal values are returned unchanged.
func (ec *ExecutionContext) Resolve(v any) (any, error) {
	ref, ok := v.(planner.Ref)
	if !ok {
		return v, nil
	}
	out, ok := ec.outputs[ref.Step]
	if !ok {
		return nil, fmt.Errorf("placeholder %s refers to a step that has not run", ref)
	}
	val, ok := out[ref.Column]
	if !ok {
		return nil, fmt.Errorf("placeholder %s refers to a column the step did not produce", ref)
	}
	return val, nil
}

// ResolveAll resolves every value of m into a new map.
func (ec *ExecutionContext) ResolveAll(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for col, v := range m {
		val, err := ec.Resolve(v)
		if err != nil {
			return nil, err
		}
		out[col] = val
	}
	return out, nil
}
