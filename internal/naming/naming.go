package naming

import (
	"log/slog"
	"strings"
)

// Namer converts SQL catalog names into the GraphQL names used by the
// nested mutation API. Names follow the table/constraint pattern
// "childrenByParentId", "parentToParentId", "updateParentById".
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears collision state so the namer can serve a new schema build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// TypeName returns the singular PascalCase type name for a table.
// Example: "child_items" -> "ChildItem"
func (n *Namer) TypeName(tableName string) string {
	return n.validateTypeAndSuffix(toPascalCase(n.Singularize(tableName)))
}

// FieldName converts a column name to a camelCase field name.
// Example: "parent_id" -> "parentId"
func (n *Namer) FieldName(columnName string) string {
	return n.validateFieldAndSuffix(toCamelCase(columnName))
}

// ColumnsSuffix joins column names in PascalCase with "And".
// Example: ["tenant_id", "id"] -> "TenantIdAndId"
func (n *Namer) ColumnsSuffix(columns []string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = toPascalCase(col)
	}
	return strings.Join(parts, "And")
}

// SingularField returns the camelCase singular name of a table.
func (n *Namer) SingularField(tableName string) string {
	return toCamelCase(n.Singularize(tableName))
}

// PluralField returns the camelCase plural name of a table.
func (n *Namer) PluralField(tableName string) string {
	return toCamelCase(n.Pluralize(n.Singularize(tableName)))
}

// ForwardOutputField names the object a row references through its own FK.
// Example: ("parent", ["parent_id"]) -> "parentByParentId"
func (n *Namer) ForwardOutputField(referencedTable string, fkColumns []string) string {
	return n.SingularField(referencedTable) + "By" + n.ColumnsSuffix(fkColumns)
}

// ReverseOutputField names the collection of rows referencing the current row.
// Example: ("child", ["parent_id"]) -> "childrenByParentId"
func (n *Namer) ReverseOutputField(owningTable string, fkColumns []string) string {
	return n.PluralField(owningTable) + "By" + n.ColumnsSuffix(fkColumns)
}

// ForwardInputField names the nested input for the referenced row.
// Example: ("parent", ["parent_id"]) -> "parentToParentId"
func (n *Namer) ForwardInputField(referencedTable string, fkColumns []string) string {
	return n.SingularField(referencedTable) + "To" + n.ColumnsSuffix(fkColumns)
}

// ReverseInputField names the nested input for referencing rows.
// Example: ("child", ["id"]) -> "childrenUsingId"
func (n *Namer) ReverseInputField(owningTable string, referencedColumns []string) string {
	return n.PluralField(owningTable) + "Using" + n.ColumnsSuffix(referencedColumns)
}

// UpdateByKeyField names the nested update operation.
// Example: ["id"] -> "updateById"
func (n *Namer) UpdateByKeyField(keyColumns []string) string {
	return "updateBy" + n.ColumnsSuffix(keyColumns)
}

// PatchField names the patch argument for a table.
// Example: "parent" -> "parentPatch"
func (n *Namer) PatchField(tableName string) string {
	return n.SingularField(tableName) + "Patch"
}

// UpdateMutationName names the root update-by-key mutation.
// Example: ("parent", ["id"]) -> "updateParentById"
func (n *Namer) UpdateMutationName(tableName string, keyColumns []string) string {
	return "update" + n.TypeName(tableName) + "By" + n.ColumnsSuffix(keyColumns)
}

// CreateMutationName names the root create mutation.
func (n *Namer) CreateMutationName(tableName string) string {
	return "create" + n.TypeName(tableName)
}

// ByKeyQueryName names the single-row lookup.
// Example: ("parent", ["id"]) -> "parentById"
func (n *Namer) ByKeyQueryName(tableName string, keyColumns []string) string {
	return n.SingularField(tableName) + "By" + n.ColumnsSuffix(keyColumns)
}

// AllQueryName names the collection lookup.
// Example: "parent" -> "allParents"
func (n *Namer) AllQueryName(tableName string) string {
	return "all" + toPascalCase(n.Pluralize(n.Singularize(tableName)))
}

// ConstraintTypeName names the nested input types generated for a foreign
// key. Example: "child_parent_id_fkey" -> "ChildParentIdFkey"
func (n *Namer) ConstraintTypeName(owningTable, constraintName string) string {
	name := n.validateTypeAndSuffix(toPascalCase(strings.ToLower(constraintName)))
	return n.resolver.claim(n.resolver.types, name, "fk:"+owningTable+"."+constraintName)
}

// RegisterType registers a table and returns its resolved GraphQL type name.
func (n *Namer) RegisterType(tableName string) string {
	return n.resolver.RegisterType(n.TypeName(tableName), tableName)
}

// RegisterField registers a field on a type and returns the resolved name.
func (n *Namer) RegisterField(typeName, fieldName, source string) string {
	return n.resolver.RegisterField(typeName, n.validateFieldAndSuffix(fieldName), source)
}

// RegisterRoot registers a root field name and returns the resolved name.
func (n *Namer) RegisterRoot(fieldName, source string) string {
	return n.resolver.RegisterRoot(n.validateFieldAndSuffix(fieldName), source)
}

func (n *Namer) validateTypeAndSuffix(name string) string {
	if isReservedTypeName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

func (n *Namer) validateFieldAndSuffix(name string) string {
	if isReservedFieldName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

// toPascalCase converts snake_case to PascalCase
func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// toCamelCase converts snake_case to camelCase
func toCamelCase(s string) string {
	pascal := toPascalCase(s)
	if pascal == "" {
		return ""
	}
	return strings.ToLower(pascal[:1]) + pascal[1:]
}
