package resolver

import (
	"strings"

	"github.com/graphql-go/graphql"

	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/nested"
	"tidb-nested-graphql/internal/relation"
)

// Input type names:
//
//	<Type>Patch, <Type>Input                   root patch and create records
//	<Constraint>Input, <Constraint>InverseInput nested relation inputs
//	<prefix>CreateInput, <prefix>PatchInput     nested records
//	<prefix>UpdateBy<Pk>Input                   nested update by key
//
// Every field is nullable; the normalizer reports missing values with the
// same messages for GraphQL and direct callers.

// patchInputType is the root patch record of table.
func (r *Resolver) patchInputType(table string) *graphql.InputObject {
	return r.recordInputType(r.catalog.TypeName(table)+"Patch", table, nil)
}

// createInputType is the root create record of table.
func (r *Resolver) createInputType(table string) *graphql.InputObject {
	return r.recordInputType(r.catalog.TypeName(table)+"Input", table, nil)
}

// linkPrefix names the input types generated for one side of a constraint.
func (r *Resolver) linkPrefix(link relation.Link) string {
	prefix := r.namer.ConstraintTypeName(link.Constraint.OwningTable, link.Constraint.Name)
	if link.Direction == relation.Reverse {
		prefix += "Inverse"
	}
	return prefix
}

// relationInputType is the nested input offered for link:
// {create, updateBy<Pk>, deleteOthers}.
func (r *Resolver) relationInputType(link relation.Link) *graphql.InputObject {
	prefix := r.linkPrefix(link)
	return r.cachedInput(prefix+"Input", func() graphql.InputObjectConfigFieldMap {
		caps := nested.CapabilitiesOf(r.catalog, link)
		fields := graphql.InputObjectConfigFieldMap{}
		if caps.Create {
			var createType graphql.Input = r.recordInputType(prefix+"CreateInput", link.RelatedTable, &link)
			if caps.CreateMany {
				createType = graphql.NewList(graphql.NewNonNull(createType))
			}
			fields[nested.FieldCreate] = &graphql.InputObjectFieldConfig{
				Type:        createType,
				Description: "Rows to insert and link through " + link.Constraint.Name + ".",
			}
		}
		if caps.UpdateField != "" {
			var updateType graphql.Input = r.updateByKeyInputType(prefix, caps.UpdateField, link)
			if caps.CreateMany {
				updateType = graphql.NewList(graphql.NewNonNull(updateType))
			}
			fields[caps.UpdateField] = &graphql.InputObjectFieldConfig{
				Type:        updateType,
				Description: "Existing related rows to patch, identified by primary key.",
			}
		}
		if caps.DeleteOthers {
			fields[nested.FieldDeleteOthers] = &graphql.InputObjectFieldConfig{
				Type:        graphql.Boolean,
				Description: "Delete related rows not created or updated by this input.",
			}
		}
		return fields
	})
}

// updateByKeyInputType carries the related primary key and a patch.
func (r *Resolver) updateByKeyInputType(prefix, updateField string, link relation.Link) *graphql.InputObject {
	name := prefix + upperFirst(updateField) + "Input"
	return r.cachedInput(name, func() graphql.InputObjectConfigFieldMap {
		related := link.RelatedTable
		fields := graphql.InputObjectConfigFieldMap{}
		t, ok := r.catalog.Table(related)
		if !ok {
			return fields
		}
		for _, colName := range r.catalog.PrimaryKey(related) {
			col, ok := t.ColumnByName(colName)
			if !ok {
				continue
			}
			fields[r.catalog.FieldName(related, colName)] = &graphql.InputObjectFieldConfig{
				Type: scalarType(*col),
			}
		}
		fields[r.namer.PatchField(related)] = &graphql.InputObjectFieldConfig{
			Type: r.recordInputType(prefix+"PatchInput", related, &link),
		}
		return fields
	})
}

// recordInputType lists the columns and nested relations a record of table
// accepts when reached through via.
func (r *Resolver) recordInputType(name, table string, via *relation.Link) *graphql.InputObject {
	return r.cachedInput(name, func() graphql.InputObjectConfigFieldMap {
		fields := graphql.InputObjectConfigFieldMap{}
		for _, col := range nested.RecordColumns(r.catalog, table, via) {
			fields[r.catalog.FieldName(table, col.Name)] = &graphql.InputObjectFieldConfig{
				Type:        scalarType(col),
				Description: columnDescription(col),
			}
		}
		for _, link := range nested.RecordLinks(r.catalog, table, via) {
			fields[link.InputField] = &graphql.InputObjectFieldConfig{
				Type: r.relationInputType(link),
			}
		}
		return fields
	})
}

func (r *Resolver) cachedInput(name string, fields func() graphql.InputObjectConfigFieldMap) *graphql.InputObject {
	r.mu.RLock()
	cached, ok := r.inputCache[name]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: graphql.InputObjectConfigFieldMapThunk(fields),
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.inputCache[name]; ok {
		return cached
	}
	r.inputCache[name] = input
	return input
}

func columnDescription(col introspection.Column) string {
	if col.Comment != "" {
		return col.Comment
	}
	if introspection.IsRequiredInsertColumn(col) {
		return "Required on create."
	}
	return ""
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
