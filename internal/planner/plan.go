// Package planner turns a normalized nested mutation into an ordered list of
// write steps, and renders the SQL statements those steps execute.
package planner

import (
	"fmt"
	"sort"
	"strings"
)

// StepID identifies a write step within one plan.
type StepID int

// StepKind is the kind of write a step performs.
type StepKind int

const (
	StepInsert StepKind = iota
	StepUpdateByKey
	StepDeleteExcluding
)

func (k StepKind) String() string {
	switch k {
	case StepInsert:
		return "insert"
	case StepUpdateByKey:
		return "update_by_key"
	case StepDeleteExcluding:
		return "delete_excluding"
	default:
		return "unknown"
	}
}

// Ref is a placeholder for a column value produced by an earlier step.
type Ref struct {
	Step   StepID
	Column string
}

func (r Ref) String() string {
	return fmt.Sprintf("$%d.%s", r.Step, r.Column)
}

// WriteStep is one planned write. Values in Values, Key and Scope may be Refs.
type WriteStep struct {
	ID    StepID
	Kind  StepKind
	Table string
	// Values are the inserted columns or the update patch.
	Values map[string]any
	// Key identifies the updated row.
	Key map[string]any
	// Scope restricts updates and deletes to rows whose foreign key points
	// at the parent row.
	Scope map[string]any
	// KeyColumns is the primary key of Table.
	KeyColumns []string
	// Exclude lists steps whose rows a delete must keep. Their recorded
	// output carries the key the row has after the write.
	Exclude []StepID
	// Exports are columns later steps read from this step's output.
	Exports []string
	// DependsOn lists every earlier step this step reads from.
	DependsOn []StepID
	// Via names the relation that produced the step, empty for the root.
	Via string
}

// Plan is an ordered list of write steps. Root is the step writing the
// mutation's root row.
type Plan struct {
	Table string
	Root  StepID
	Steps []WriteStep
}

// Step returns the step with the given id.
func (p *Plan) Step(id StepID) (*WriteStep, bool) {
	if int(id) < 0 || int(id) >= len(p.Steps) {
		return nil, false
	}
	return &p.Steps[id], true
}

// String renders the plan one step per line, for logs and tests.
func (p *Plan) String() string {
	var b strings.Builder
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "%d %s %s", s.ID, s.Kind, s.Table)
		if len(s.Key) > 0 {
			fmt.Fprintf(&b, " key=%s", formatValues(s.Key))
		}
		if len(s.Scope) > 0 {
			fmt.Fprintf(&b, " scope=%s", formatValues(s.Scope))
		}
		if len(s.Values) > 0 {
			fmt.Fprintf(&b, " values=%s", formatValues(s.Values))
		}
		if len(s.Exclude) > 0 {
			fmt.Fprintf(&b, " keep=%v", s.Exclude)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatValues(values map[string]any) string {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s=%v", col, values[col])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
