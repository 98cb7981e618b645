package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// operationHash identifies an operation by its printed form plus the
// fragments it uses, independent of whitespace and unused definitions.
func operationHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, error) {
	used := map[string]bool{}
	collectFragments(op.SelectionSet, fragments, used)
	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	definitions := []ast.Node{op}
	for _, name := range names {
		definitions = append(definitions, fragments[name])
	}
	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", fmt.Errorf("print operation: unexpected result")
	}

	h := sha256.New()
	for _, part := range []string{printed, operationName(op)} {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func collectFragments(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, used map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			collectFragments(sel.SelectionSet, fragments, used)
		case *ast.InlineFragment:
			collectFragments(sel.SelectionSet, fragments, used)
		case *ast.FragmentSpread:
			if sel.Name == nil || used[sel.Name.Value] {
				continue
			}
			if fragment, ok := fragments[sel.Name.Value]; ok {
				used[sel.Name.Value] = true
				collectFragments(fragment.SelectionSet, fragments, used)
			}
		}
	}
}

func operationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}
