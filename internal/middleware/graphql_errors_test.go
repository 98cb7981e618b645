package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveGraphQLErrors(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"mutation { x }"}`))
	rec := httptest.NewRecorder()
	GraphQLErrorsMiddleware()(next).ServeHTTP(rec, req)
	return rec
}

func TestGraphQLErrorsMiddlewareRewritesUnknownField(t *testing.T) {
	rec := serveGraphQLErrors(t, `{"data":null,"errors":[{"message":"Argument \"input\" has invalid value {parentPatch: {childrenUsingId: {create: [{parentId: 1}]}}}.\nIn field \"parentPatch\": In field \"childrenUsingId\": In field \"create\": In element #0: In field \"parentId\": Unknown field.","locations":[{"line":1,"column":20}]}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload struct {
		Errors []struct {
			Message    string         `json:"message"`
			Extensions map[string]any `json:"extensions"`
			Locations  []any          `json:"locations"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, `"parentId" is not defined`, payload.Errors[0].Message)
	assert.Equal(t, "invalid_input", payload.Errors[0].Extensions["code"])
	assert.Len(t, payload.Errors[0].Locations, 1)
}

func TestGraphQLErrorsMiddlewarePassesOtherResponsesThrough(t *testing.T) {
	for _, body := range []string{
		`{"data":{"allParents":{"nodes":[]}}}`,
		`{"data":null,"errors":[{"message":"not found","extensions":{"code":"not_found"}}]}`,
		`not json`,
	} {
		rec := serveGraphQLErrors(t, body)
		assert.Equal(t, body, rec.Body.String())
	}
}
