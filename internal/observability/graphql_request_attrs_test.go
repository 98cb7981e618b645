package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tidb-nested-graphql/internal/gqlrequest"
)

func TestGraphQLSpanAttributes(t *testing.T) {
	analysis := &gqlrequest.Analysis{
		Envelope:       gqlrequest.Envelope{DocumentSizeBytes: 42},
		OperationName:  "Rename",
		OperationType:  "mutation",
		OperationHash:  "hash123",
		RootFields:     []string{"updateParentById"},
		FieldCount:     3,
		SelectionDepth: 3,
		InputDepth:     4,
		Operation:      &ast.OperationDefinition{},
	}

	attrs := GraphQLSpanAttributes(analysis, gqlrequest.ExecMeta{Fingerprint: "fp-1"})
	byKey := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		byKey[kv.Key] = kv.Value
	}
	assert.Equal(t, "Rename", byKey["graphql.operation.name"].AsString())
	assert.Equal(t, []string{"updateParentById"}, byKey["graphql.operation.root_fields"].AsStringSlice())
	assert.Equal(t, int64(4), byKey["graphql.mutation.input_depth"].AsInt64())
	assert.Equal(t, "fp-1", byKey["schema.fingerprint"].AsString())
}

func TestGraphQLSpanAttributesForQueryOmitInputDepth(t *testing.T) {
	attrs := GraphQLSpanAttributes(&gqlrequest.Analysis{OperationType: "query"}, gqlrequest.ExecMeta{})
	for _, kv := range attrs {
		assert.NotEqual(t, attribute.Key("graphql.mutation.input_depth"), kv.Key)
	}
}

func TestGraphQLLogFieldsIncludesTraceID(t *testing.T) {
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
		Remote:  true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	fields := GraphQLLogFields(ctx, &gqlrequest.Analysis{
		OperationName: "Q",
		OperationType: "query",
		RootFields:    []string{"allParents", "parentById"},
	}, gqlrequest.ExecMeta{Fingerprint: "fp-1"})

	values := make(map[string]string)
	for _, f := range fields {
		attr := f.(slog.Attr)
		values[attr.Key] = attr.Value.String()
	}
	assert.Equal(t, "allParents,parentById", values["root_fields"])
	assert.Equal(t, spanCtx.TraceID().String(), values["trace_id"])
	assert.Equal(t, "fp-1", values["schema_fingerprint"])
	assert.NotContains(t, values, "input_depth")
}
