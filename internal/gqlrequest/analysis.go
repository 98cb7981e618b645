// Package gqlrequest decodes and analyzes GraphQL HTTP requests once so
// middleware can share the parsed operation.
package gqlrequest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis is the parsed form of one GraphQL request.
type Analysis struct {
	Envelope Envelope

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string
	OperationHash string
	// RootFields lists the top-level fields of the operation in order.
	RootFields []string

	FieldCount     int
	SelectionDepth int
	VariableCount  int
	// InputDepth is the deepest object nesting among root field arguments,
	// counting variable values. Nested mutation inputs grow it by about
	// three levels per relation.
	InputDepth int

	Err error
}

// Mutation reports whether the request selected a mutation operation.
func (a *Analysis) Mutation() bool {
	return a != nil && a.OperationType == ast.OperationTypeMutation
}

// Named reports whether the selected operation carries a name.
func (a *Analysis) Named() bool {
	return a != nil && a.OperationName != "" && a.OperationName != anonymousOperationName
}

// AnalyzeRequest decodes and analyzes r.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(env)
	if err != nil {
		analysis.Err = fmt.Errorf("decode request: %w", err)
	}
	return analysis
}

// AnalyzeEnvelope parses env and derives operation metadata.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:  env,
		Fragments: map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "graphql"}),
	})
	if err != nil {
		analysis.Err = fmt.Errorf("parse request: %w", err)
		return analysis
	}
	analysis.Document = doc

	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, d)
		case *ast.FragmentDefinition:
			if d.Name != nil && d.Name.Value != "" {
				analysis.Fragments[d.Name.Value] = d
			}
		}
	}

	op, err := selectOperation(operations, env.OperationName)
	if err != nil {
		analysis.Err = err
		return analysis
	}
	analysis.Operation = op
	analysis.OperationName = operationName(op)
	analysis.OperationType = op.Operation
	analysis.VariableCount = len(op.VariableDefinitions)

	w := &walker{fragments: analysis.Fragments, variables: env.Variables, visited: map[string]bool{}}
	analysis.RootFields = w.rootFields(op.SelectionSet)
	analysis.FieldCount, analysis.SelectionDepth = w.count(op.SelectionSet, 1)
	analysis.InputDepth = w.inputDepth(op.SelectionSet)

	hash, err := operationHash(op, analysis.Fragments)
	if err != nil {
		analysis.Err = err
		return analysis
	}
	analysis.OperationHash = hash
	return analysis
}

func selectOperation(operations []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(operations) {
	case 0:
		return nil, fmt.Errorf("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

type walker struct {
	fragments map[string]*ast.FragmentDefinition
	variables map[string]any
	visited   map[string]bool
}

func (w *walker) rootFields(set *ast.SelectionSet) []string {
	var names []string
	w.eachField(set, map[string]bool{}, func(f *ast.Field) {
		if f.Name != nil {
			names = append(names, f.Name.Value)
		}
	})
	return names
}

// eachField calls fn for the fields of set, expanding fragments.
func (w *walker) eachField(set *ast.SelectionSet, inFlight map[string]bool, fn func(*ast.Field)) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fn(sel)
		case *ast.InlineFragment:
			w.eachField(sel.SelectionSet, inFlight, fn)
		case *ast.FragmentSpread:
			if sel.Name == nil || inFlight[sel.Name.Value] {
				continue
			}
			fragment, ok := w.fragments[sel.Name.Value]
			if !ok {
				continue
			}
			inFlight[sel.Name.Value] = true
			w.eachField(fragment.SelectionSet, inFlight, fn)
			delete(inFlight, sel.Name.Value)
		}
	}
}

func (w *walker) count(set *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	w.eachField(set, map[string]bool{}, func(f *ast.Field) {
		fields++
		if f.SelectionSet == nil {
			return
		}
		nested, nestedDepth := w.count(f.SelectionSet, depth+1)
		fields += nested
		if nestedDepth > maxDepth {
			maxDepth = nestedDepth
		}
	})
	return fields, maxDepth
}

func (w *walker) inputDepth(set *ast.SelectionSet) int {
	deepest := 0
	w.eachField(set, map[string]bool{}, func(f *ast.Field) {
		for _, arg := range f.Arguments {
			if d := w.valueDepth(arg.Value); d > deepest {
				deepest = d
			}
		}
	})
	return deepest
}

func (w *walker) valueDepth(v ast.Value) int {
	switch val := v.(type) {
	case *ast.ObjectValue:
		deepest := 0
		for _, field := range val.Fields {
			if d := w.valueDepth(field.Value); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	case *ast.ListValue:
		deepest := 0
		for _, item := range val.Values {
			if d := w.valueDepth(item); d > deepest {
				deepest = d
			}
		}
		return deepest
	case *ast.Variable:
		if val.Name == nil {
			return 0
		}
		return jsonDepth(w.variables[val.Name.Value])
	default:
		return 0
	}
}

func jsonDepth(v any) int {
	switch val := v.(type) {
	case map[string]any:
		deepest := 0
		for _, item := range val {
			if d := jsonDepth(item); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	case []any:
		deepest := 0
		for _, item := range val {
			if d := jsonDepth(item); d > deepest {
				deepest = d
			}
		}
		return deepest
	default:
		return 0
	}
}
