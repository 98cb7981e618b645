package gqlrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEnvelopeMetadata(t *testing.T) {
	tests := []struct {
		name       string
		env        Envelope
		wantType   string
		wantName   string
		wantRoots  []string
		wantFields int
		wantDepth  int
		wantInput  int
		wantVars   int
		wantErr    bool
	}{
		{
			name:       "query",
			env:        Envelope{Query: `{ parentById(id: 1) { id childrenByParentId { nodes { name } } } }`},
			wantType:   "query",
			wantName:   "<anonymous>",
			wantRoots:  []string{"parentById"},
			wantFields: 5,
			wantDepth:  4,
		},
		{
			name: "nested mutation literal",
			env: Envelope{Query: `mutation Rename {
				updateParentById(input: {id: 1, parentPatch: {childrenUsingId: {create: [{name: "a"}]}}}) { parent { id } }
			}`},
			wantType:   "mutation",
			wantName:   "Rename",
			wantRoots:  []string{"updateParentById"},
			wantFields: 3,
			wantDepth:  3,
			wantInput:  4,
		},
		{
			name: "nested mutation variables",
			env: Envelope{
				Query: `mutation($input: UpdateParentByIdInput!) { updateParentById(input: $input) { parent { id } } }`,
				Variables: map[string]any{"input": map[string]any{
					"id":          1,
					"parentPatch": map[string]any{"childrenUsingId": map[string]any{"deleteOthers": true}},
				}},
			},
			wantType:   "mutation",
			wantName:   "<anonymous>",
			wantRoots:  []string{"updateParentById"},
			wantFields: 3,
			wantDepth:  3,
			wantInput:  3,
			wantVars:   1,
		},
		{
			name: "fragments",
			env: Envelope{Query: `query Q { ...roots }
				fragment roots on Query { allParents { nodes { ...fields } } }
				fragment fields on Parent { id name }`},
			wantType:   "query",
			wantName:   "Q",
			wantRoots:  []string{"allParents"},
			wantFields: 4,
			wantDepth:  3,
		},
		{
			name:    "parse error",
			env:     Envelope{Query: `mutation {`},
			wantErr: true,
		},
		{
			name:    "ambiguous operation",
			env:     Envelope{Query: `query A { x } query B { y }`},
			wantErr: true,
		},
		{
			name:    "unknown operation name",
			env:     Envelope{Query: `query A { x }`, OperationName: "B"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeEnvelope(tt.env)
			if tt.wantErr {
				assert.Error(t, a.Err)
				assert.Empty(t, a.OperationHash)
				return
			}
			require.NoError(t, a.Err)
			assert.Equal(t, tt.wantType, a.OperationType)
			assert.Equal(t, tt.wantName, a.OperationName)
			assert.Equal(t, tt.wantRoots, a.RootFields)
			assert.Equal(t, tt.wantFields, a.FieldCount)
			assert.Equal(t, tt.wantDepth, a.SelectionDepth)
			assert.Equal(t, tt.wantInput, a.InputDepth)
			assert.Equal(t, tt.wantVars, a.VariableCount)
			assert.Len(t, a.OperationHash, 64)
			assert.Equal(t, tt.wantType == "mutation", a.Mutation())
		})
	}
}

func TestOperationHashIgnoresFormatting(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: `mutation { createParent(input: {parent: {name: "x"}}) { parent { id } } }`})
	b := AnalyzeEnvelope(Envelope{Query: `
		mutation {
			createParent(input: {parent: {name: "x"}}) {
				parent { id }
			}
		}
		fragment unused on Parent { id }
	`})
	require.NoError(t, a.Err)
	require.NoError(t, b.Err)
	assert.Equal(t, a.OperationHash, b.OperationHash)

	c := AnalyzeEnvelope(Envelope{Query: `mutation { createParent(input: {parent: {name: "y"}}) { parent { id } } }`})
	assert.NotEqual(t, a.OperationHash, c.OperationHash)
}

func TestEmptyQueryHasNoOperation(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{})
	assert.NoError(t, a.Err)
	assert.Nil(t, a.Operation)
	assert.False(t, a.Mutation())
}

func TestAnalysisNamed(t *testing.T) {
	assert.True(t, AnalyzeEnvelope(Envelope{Query: `mutation Rename { createParent(input: {parent: {name: "a"}}) { parent { id } } }`}).Named())
	assert.False(t, AnalyzeEnvelope(Envelope{Query: `mutation { createParent(input: {parent: {name: "a"}}) { parent { id } } }`}).Named())
	assert.False(t, (&Analysis{}).Named())
	assert.False(t, (*Analysis)(nil).Named())
}
