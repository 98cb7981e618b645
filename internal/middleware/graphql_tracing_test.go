package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"tidb-nested-graphql/internal/gqlrequest"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/mutation"
)

func setupTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	old := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(old)
	})
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func tracedGraphQL(t *testing.T, next http.Handler, payload string) []sdktrace.ReadOnlySpan {
	t.Helper()
	recorder := setupTracing(t)
	handler := GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next))
	postGraphQL(handler, payload)
	return recorder.Ended()
}

func TestOperationSpanName(t *testing.T) {
	tests := []struct {
		analysis gqlrequest.Analysis
		want     string
	}{
		{analysis: gqlrequest.Analysis{OperationType: "query", OperationName: "Q"}, want: "query Q"},
		{analysis: gqlrequest.Analysis{OperationType: "mutation", RootFields: []string{"createParent", "updateParentById"}}, want: "mutation createParent"},
		{analysis: gqlrequest.Analysis{OperationType: "mutation", OperationName: "<anonymous>", RootFields: []string{"updateParentById"}}, want: "mutation updateParentById"},
		{analysis: gqlrequest.Analysis{OperationType: "query"}, want: "query"},
		{analysis: gqlrequest.Analysis{}, want: "graphql"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, operationSpanName(&tt.analysis))
	}
}

func TestGraphQLTracingMiddlewareRecordsOperation(t *testing.T) {
	var traceLogger *logging.Logger
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceLogger = logging.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	spans := tracedGraphQL(t, next, `{"query":"query Q { allParents { nodes { id } } }","operationName":"Q"}`)
	require.Len(t, spans, 1)
	assert.Equal(t, "query Q", spans[0].Name())
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "query", attrs["graphql.operation.type"].AsString())
	assert.Equal(t, "Q", attrs["graphql.operation.name"].AsString())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.NotNil(t, traceLogger)
}

func TestGraphQLTracingMiddlewareMarksServerErrors(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	spans := tracedGraphQL(t, next, `{"query":"mutation { createParent(input: {parent: {}}) { parent { id } } }"}`)
	require.Len(t, spans, 1)
	assert.Equal(t, "mutation createParent", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestGraphQLTracingMiddlewareSkipsEmptyQuery(t *testing.T) {
	recorder := setupTracing(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/graphql", nil))

	assert.Empty(t, recorder.Ended())
}

func TestGraphQLTracingMiddlewareMarksRolledBackMutation(t *testing.T) {
	executor := &fakeQueryExecutor{tx: &fakeTx{}}
	next := MutationTransactionMiddleware(executor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutation.FromContext(r.Context()).MarkError()
		w.WriteHeader(http.StatusOK)
	}))

	spans := tracedGraphQL(t, next, `{"query":"mutation { createParent(input: {}) { parent { id } } }"}`)
	require.Len(t, spans, 1)
	attrs := spanAttrs(spans[0])
	assert.True(t, attrs["graphql.mutation.rolled_back"].AsBool())
}

