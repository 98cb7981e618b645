package resolver

import (
	"github.com/graphql-go/graphql/language/ast"

	"tidb-nested-graphql/internal/assembler"
	"tidb-nested-graphql/internal/relation"
)

// shapeFromFields builds the read-back shape of table from the selection
// sets of fields. Columns and relations selected under several aliases
// are merged.
func (r *Resolver) shapeFromFields(table string, fields []*ast.Field, fragments map[string]ast.Definition) *assembler.Shape {
	shape := &assembler.Shape{}
	for _, field := range fields {
		if field != nil && field.SelectionSet != nil {
			r.collectShape(shape, table, field.SelectionSet.Selections, fragments, make(map[string]struct{}))
		}
	}
	return shape
}

// childFields returns the sub-fields named name below fields, following
// fragments. It selects the entity field of a payload and the nodes of a
// connection.
func childFields(fields []*ast.Field, name string, fragments map[string]ast.Definition) []*ast.Field {
	var out []*ast.Field
	visited := make(map[string]struct{})
	var visit func(selections []ast.Selection)
	visit = func(selections []ast.Selection) {
		for _, selection := range selections {
			switch sel := selection.(type) {
			case *ast.Field:
				if sel.Name != nil && sel.Name.Value == name {
					out = append(out, sel)
				}
			case *ast.InlineFragment:
				if sel.SelectionSet != nil {
					visit(sel.SelectionSet.Selections)
				}
			case *ast.FragmentSpread:
				if fragment := lookupFragment(sel, fragments, visited); fragment != nil {
					visit(fragment.SelectionSet.Selections)
				}
			}
		}
	}
	for _, field := range fields {
		if field != nil && field.SelectionSet != nil {
			visit(field.SelectionSet.Selections)
		}
	}
	return out
}

func (r *Resolver) collectShape(shape *assembler.Shape, table string, selections []ast.Selection, fragments map[string]ast.Definition, visited map[string]struct{}) {
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name == nil || sel.Name.Value == "__typename" {
				continue
			}
			name := sel.Name.Value
			if col, ok := r.catalog.ColumnForField(table, name); ok {
				shape.AddColumn(name, col.Name)
				continue
			}
			link, ok := r.catalog.LinkByOutputField(table, name)
			if !ok {
				continue
			}
			child := shape.AddRelation(name, link)
			if sel.SelectionSet == nil {
				continue
			}
			if link.Direction == relation.Reverse {
				for _, nodes := range childFields([]*ast.Field{sel}, "nodes", fragments) {
					if nodes.SelectionSet != nil {
						r.collectShape(child, link.RelatedTable, nodes.SelectionSet.Selections, fragments, make(map[string]struct{}))
					}
				}
				continue
			}
			r.collectShape(child, link.RelatedTable, sel.SelectionSet.Selections, fragments, make(map[string]struct{}))
		case *ast.InlineFragment:
			if sel.SelectionSet != nil {
				r.collectShape(shape, table, sel.SelectionSet.Selections, fragments, visited)
			}
		case *ast.FragmentSpread:
			if fragment := lookupFragment(sel, fragments, visited); fragment != nil {
				r.collectShape(shape, table, fragment.SelectionSet.Selections, fragments, visited)
			}
		}
	}
}

// lookupFragment resolves a spread once per selection set.
func lookupFragment(spread *ast.FragmentSpread, fragments map[string]ast.Definition, visited map[string]struct{}) *ast.FragmentDefinition {
	if fragments == nil || spread.Name == nil {
		return nil
	}
	name := spread.Name.Value
	if _, seen := visited[name]; seen {
		return nil
	}
	def, ok := fragments[name]
	if !ok {
		return nil
	}
	fragment, ok := def.(*ast.FragmentDefinition)
	if !ok || fragment.SelectionSet == nil {
		return nil
	}
	visited[name] = struct{}{}
	return fragment
}
