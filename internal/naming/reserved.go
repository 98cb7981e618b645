package naming

import "strings"

// reservedTypeWords holds GraphQL keywords, built-in scalars and literals,
// lower-cased. A table type may not take one of these names.
var reservedTypeWords = wordSet(`
	query mutation subscription schema type scalar enum input interface union
	fragment directive extend implements on
	int float string boolean id
	true false null
`)

// generatedTypeSuffixes are the suffixes the schema builder appends to
// table type names (ParentInput, ParentConnection, CreateParentPayload,
// ChildPatchInput). A table type already ending in one could collide.
var generatedTypeSuffixes = []string{"input", "connection", "payload", "patch"}

func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

func isReservedTypeName(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := reservedTypeWords[lower]; ok || strings.HasPrefix(lower, "__") {
		return true
	}
	for _, suffix := range generatedTypeSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// isReservedFieldName reports names in the introspection namespace.
func isReservedFieldName(name string) bool {
	return strings.HasPrefix(name, "__")
}
