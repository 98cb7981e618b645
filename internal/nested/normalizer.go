package nested

import (
	"sort"

	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/mutationerr"
	"tidb-nested-graphql/internal/relation"
)

// DefaultMaxDepth allows one nested relation below the root plus one
// further level beneath it.
const DefaultMaxDepth = 2

// Normalizer turns raw nested input, keyed by GraphQL field names, into a
// Mutation tree keyed by column names.
type Normalizer struct {
	catalog  *relation.Catalog
	maxDepth int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMaxDepth limits how many relation levels may be nested below the root.
func WithMaxDepth(depth int) Option {
	return func(n *Normalizer) {
		if depth > 0 {
			n.maxDepth = depth
		}
	}
}

// NewNormalizer creates a normalizer over catalog.
func NewNormalizer(catalog *relation.Catalog, opts ...Option) *Normalizer {
	n := &Normalizer{catalog: catalog, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeUpdate validates an update of the row of table identified by key.
func (n *Normalizer) NormalizeUpdate(table string, key, patch map[string]any) (*Mutation, error) {
	if _, ok := n.catalog.Table(table); !ok {
		return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "unknown table %q", table)
	}
	keyValues, err := n.keyValues(table, key)
	if err != nil {
		return nil, err
	}
	for field := range key {
		if _, isKey := n.keyColumn(table, field); !isKey {
			return nil, mutationerr.NotDefined(field)
		}
	}
	values, relations, err := n.record(table, nil, patch, 1, false)
	if err != nil {
		return nil, err
	}
	return &Mutation{Table: table, Kind: RootUpdate, Key: keyValues, Values: values, Relations: relations}, nil
}

// NormalizeCreate validates an insert into table.
func (n *Normalizer) NormalizeCreate(table string, input map[string]any) (*Mutation, error) {
	if _, ok := n.catalog.Table(table); !ok {
		return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "unknown table %q", table)
	}
	values, relations, err := n.record(table, nil, input, 1, true)
	if err != nil {
		return nil, err
	}
	return &Mutation{Table: table, Kind: RootCreate, Values: values, Relations: relations}, nil
}

// Normalize validates the nested input attached to link one level below the root.
func (n *Normalizer) Normalize(link relation.Link, raw map[string]any) (*Node, error) {
	return n.node(link, raw, 1)
}

func (n *Normalizer) node(link relation.Link, raw map[string]any, depth int) (*Node, error) {
	if depth > n.maxDepth {
		return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput,
			"nested input %q exceeds the maximum nesting depth of %d", link.InputField, n.maxDepth)
	}

	caps := CapabilitiesOf(n.catalog, link)
	accepted := make(map[string]bool)
	for _, f := range caps.Fields() {
		accepted[f] = true
	}
	for _, field := range sortedKeys(raw) {
		if !accepted[field] {
			return nil, mutationerr.NotDefined(field)
		}
	}

	node := &Node{Link: link}
	if rawCreate, ok := raw[FieldCreate]; ok && rawCreate != nil {
		items, err := objectList(rawCreate, FieldCreate, caps.CreateMany)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			values, relations, err := n.record(link.RelatedTable, &link, item, depth+1, true)
			if err != nil {
				return nil, err
			}
			node.Ops = append(node.Ops, &CreateOp{Values: values, Relations: relations})
		}
	}

	if caps.UpdateField != "" {
		if rawUpdate, ok := raw[caps.UpdateField]; ok && rawUpdate != nil {
			items, err := objectList(rawUpdate, caps.UpdateField, caps.CreateMany)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				op, err := n.updateByKey(link, item, depth)
				if err != nil {
					return nil, err
				}
				node.Ops = append(node.Ops, op)
			}
		}
	}

	if caps.DeleteOthers {
		switch v := raw[FieldDeleteOthers].(type) {
		case nil:
		case bool:
			if v {
				node.Ops = append(node.Ops, &DeleteOthersOp{})
			}
		default:
			return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "%q must be a boolean", FieldDeleteOthers)
		}
	}
	// A row references a single target through a forward relation.
	if link.Direction == relation.Forward && len(node.Ops) > 1 {
		return nil, mutationerr.Validationf(mutationerr.CodeConflictingEdit,
			"%q accepts either %q or %q, not both", link.InputField, FieldCreate, caps.UpdateField)
	}
	return node, nil
}

func (n *Normalizer) updateByKey(link relation.Link, raw map[string]any, depth int) (*UpdateByKeyOp, error) {
	related := link.RelatedTable
	patchField := n.catalog.Namer().PatchField(related)

	key := make(map[string]any)
	for field := range raw {
		if field == patchField {
			continue
		}
		if _, isKey := n.keyColumn(related, field); !isKey {
			return nil, mutationerr.NotDefined(field)
		}
		key[field] = raw[field]
	}
	keyValues, err := n.keyValues(related, key)
	if err != nil {
		return nil, err
	}

	var patch map[string]any
	if rawPatch, ok := raw[patchField]; ok && rawPatch != nil {
		m, ok := rawPatch.(map[string]any)
		if !ok {
			return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "%q must be an object", patchField)
		}
		patch = m
	}
	values, relations, err := n.record(related, &link, patch, depth+1, false)
	if err != nil {
		return nil, err
	}
	return &UpdateByKeyOp{Key: keyValues, Patch: values, Relations: relations}, nil
}

// record validates a create payload or patch for table.
func (n *Normalizer) record(table string, via *relation.Link, raw map[string]any, depth int, create bool) (map[string]any, []*Node, error) {
	columns := RecordColumns(n.catalog, table, via)
	columnByField := make(map[string]introspection.Column, len(columns))
	for _, col := range columns {
		columnByField[n.catalog.FieldName(table, col.Name)] = col
	}
	linkByField := make(map[string]relation.Link)
	for _, l := range RecordLinks(n.catalog, table, via) {
		linkByField[l.InputField] = l
	}

	values := make(map[string]any)
	var relations []*Node
	for _, field := range sortedKeys(raw) {
		if col, ok := columnByField[field]; ok {
			values[col.Name] = raw[field]
			continue
		}
		link, ok := linkByField[field]
		if !ok {
			return nil, nil, mutationerr.NotDefined(field)
		}
		if raw[field] == nil {
			continue
		}
		nestedRaw, ok := raw[field].(map[string]any)
		if !ok {
			return nil, nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "%q must be an object", field)
		}
		node, err := n.node(link, nestedRaw, depth)
		if err != nil {
			return nil, nil, err
		}
		if len(node.Ops) > 0 {
			relations = append(relations, node)
		}
	}

	filledByRelation := make(map[string]bool)
	for _, node := range relations {
		if node.Link.Direction != relation.Forward {
			continue
		}
		for _, col := range node.Link.LocalColumns() {
			if _, set := values[col]; set {
				return nil, nil, mutationerr.Validationf(mutationerr.CodeConflictingEdit,
					"%q cannot be set together with nested %q", n.catalog.FieldName(table, col), node.Link.InputField)
			}
			filledByRelation[col] = true
		}
	}

	if create {
		for _, col := range columns {
			if !introspection.IsRequiredInsertColumn(col) || filledByRelation[col.Name] {
				continue
			}
			if values[col.Name] == nil {
				return nil, nil, mutationerr.MissingRequiredField(n.catalog.TypeName(table), n.catalog.FieldName(table, col.Name))
			}
		}
	}
	return values, relations, nil
}

// keyValues maps the primary key fields of raw to column values.
func (n *Normalizer) keyValues(table string, raw map[string]any) (map[string]any, error) {
	pk := n.catalog.PrimaryKey(table)
	if len(pk) == 0 {
		return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "%s has no primary key", n.catalog.TypeName(table))
	}
	key := make(map[string]any, len(pk))
	for _, col := range pk {
		field := n.catalog.FieldName(table, col)
		v, ok := raw[field]
		if !ok || v == nil {
			return nil, mutationerr.MissingKey(n.catalog.TypeName(table), field)
		}
		key[col] = v
	}
	return key, nil
}

func (n *Normalizer) keyColumn(table, field string) (string, bool) {
	col, ok := n.catalog.ColumnForField(table, field)
	if !ok || !col.IsPrimaryKey {
		return "", false
	}
	return col.Name, true
}

func objectList(raw any, field string, many bool) ([]map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		if !many {
			return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "%q accepts a single object", field)
		}
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "%q entries must be objects", field)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, mutationerr.Validationf(mutationerr.CodeInvalidInput, "%q must be an object", field)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
