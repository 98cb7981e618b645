package planner

import (
	"fmt"
	"sort"

	"tidb-nested-graphql/internal/mutationerr"
	"tidb-nested-graphql/internal/nested"
	"tidb-nested-graphql/internal/relation"
)

// Builder plans nested mutations. It never touches the database: the plan
// is a pure function of the normalized input and the catalog.
type Builder struct {
	catalog *relation.Catalog
}

// NewBuilder creates a plan builder over catalog.
func NewBuilder(catalog *relation.Catalog) *Builder {
	return &Builder{catalog: catalog}
}

// record is one row to write, with the relations nested under it.
type record struct {
	table     string
	kind      StepKind
	key       map[string]any
	values    map[string]any
	scope     map[string]any
	relations []*nested.Node
	via       string
}

// Build orders the writes of m. Forward relations are written before the row
// that references them, the row itself next, then reverse relations:
// creates, updates and finally the delete of untouched siblings.
func (b *Builder) Build(m *nested.Mutation) (*Plan, error) {
	if m == nil {
		return nil, fmt.Errorf("nil mutation")
	}
	kind := StepUpdateByKey
	if m.Kind == nested.RootCreate {
		kind = StepInsert
	}
	p := &Plan{Table: m.Table}
	root, err := b.planRecord(p, record{
		table:     m.Table,
		kind:      kind,
		key:       m.Key,
		values:    m.Values,
		relations: m.Relations,
	})
	if err != nil {
		return nil, err
	}
	p.Root = root
	b.export(p, root, b.catalog.PrimaryKey(m.Table)...)
	return p, nil
}

func (b *Builder) planRecord(p *Plan, rec record) (StepID, error) {
	values := copyValues(rec.values)

	for _, node := range rec.relations {
		if node.Link.Direction != relation.Forward {
			continue
		}
		link := node.Link
		for _, op := range node.Ops {
			var target record
			switch op := op.(type) {
			case *nested.CreateOp:
				target = record{kind: StepInsert, values: op.Values, relations: op.Relations}
			case *nested.UpdateByKeyOp:
				target = record{kind: StepUpdateByKey, key: op.Key, values: op.Patch, relations: op.Relations}
			default:
				return 0, fmt.Errorf("operation %T is not supported on forward relation %s", op, link.InputField)
			}
			target.table = link.RelatedTable
			target.via = link.InputField
			id, err := b.planRecord(p, target)
			if err != nil {
				return 0, err
			}
			// The written row becomes the one this record references.
			local, remote := link.LocalColumns(), link.RemoteColumns()
			for i, col := range local {
				if _, set := values[col]; set {
					return 0, mutationerr.Validationf(mutationerr.CodeConflictingEdit,
						"%q cannot be set together with nested %q", col, link.InputField)
				}
				values[col] = Ref{Step: id, Column: remote[i]}
			}
			b.export(p, id, remote...)
		}
	}

	self := b.addStep(p, WriteStep{
		Kind:       rec.kind,
		Table:      rec.table,
		Values:     values,
		Key:        rec.key,
		Scope:      rec.scope,
		KeyColumns: b.catalog.PrimaryKey(rec.table),
		Via:        rec.via,
	})

	for _, node := range rec.relations {
		if node.Link.Direction != relation.Reverse {
			continue
		}
		if err := b.planReverse(p, self, node); err != nil {
			return 0, err
		}
	}
	return self, nil
}

func (b *Builder) planReverse(p *Plan, parent StepID, node *nested.Node) error {
	link := node.Link
	local, remote := link.LocalColumns(), link.RemoteColumns()
	parentKey := make(map[string]any, len(remote))
	for i, col := range remote {
		parentKey[col] = Ref{Step: parent, Column: local[i]}
	}
	b.export(p, parent, local...)

	// kept lists the created and updated rows a delete of siblings must keep.
	var kept []StepID
	for _, op := range node.Ops {
		switch op := op.(type) {
		case *nested.CreateOp:
			values := copyValues(op.Values)
			for col, ref := range parentKey {
				values[col] = ref
			}
			id, err := b.planRecord(p, record{
				table:     link.RelatedTable,
				kind:      StepInsert,
				values:    values,
				relations: op.Relations,
				via:       link.InputField,
			})
			if err != nil {
				return err
			}
			kept = append(kept, id)
		case *nested.UpdateByKeyOp:
			id, err := b.planRecord(p, record{
				table:     link.RelatedTable,
				kind:      StepUpdateByKey,
				key:       op.Key,
				values:    op.Patch,
				scope:     copyValues(parentKey),
				relations: op.Relations,
				via:       link.InputField,
			})
			if err != nil {
				return err
			}
			kept = append(kept, id)
		case *nested.DeleteOthersOp:
		default:
			return fmt.Errorf("operation %T is not supported on reverse relation %s", op, link.InputField)
		}
	}

	if !node.DeletesOthers() {
		return nil
	}
	keyColumns := b.catalog.PrimaryKey(link.RelatedTable)
	if len(keyColumns) == 0 {
		return mutationerr.NotDefined(nested.FieldDeleteOthers)
	}
	for _, id := range kept {
		b.export(p, id, keyColumns...)
	}
	b.addStep(p, WriteStep{
		Kind:       StepDeleteExcluding,
		Table:      link.RelatedTable,
		Scope:      parentKey,
		KeyColumns: keyColumns,
		Exclude:    kept,
		Via:        link.InputField,
	})
	return nil
}

// addStep appends s, assigning its id and dependencies.
func (b *Builder) addStep(p *Plan, s WriteStep) StepID {
	s.ID = StepID(len(p.Steps))
	deps := make(map[StepID]bool)
	for _, m := range []map[string]any{s.Values, s.Key, s.Scope} {
		for _, v := range m {
			if ref, ok := v.(Ref); ok {
				deps[ref.Step] = true
			}
		}
	}
	for _, id := range s.Exclude {
		deps[id] = true
	}
	for id := range deps {
		s.DependsOn = append(s.DependsOn, id)
	}
	sort.Slice(s.DependsOn, func(i, j int) bool { return s.DependsOn[i] < s.DependsOn[j] })
	p.Steps = append(p.Steps, s)
	return s.ID
}

func (b *Builder) export(p *Plan, id StepID, columns ...string) {
	s := &p.Steps[id]
	for _, col := range columns {
		if !contains(s.Exports, col) {
			s.Exports = append(s.Exports, col)
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
