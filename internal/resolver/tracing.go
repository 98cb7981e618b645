package resolver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tidb-nested-graphql/internal/mutationerr"
)

const resolverTracer = "tidb-nested-graphql/resolver"

// startResolverSpan opens a child span of the GraphQL operation span for one
// root field.
func startResolverSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(resolverTracer).Start(ctx, name, trace.WithAttributes(attrs...))
}

// finishResolverSpan records the outcome of a resolver. Validation
// failures are client errors and leave the span status unset.
func finishResolverSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err == nil {
		span.SetAttributes(attribute.String("graphql.resolver.outcome", "success"))
		return
	}
	classified := mutationerr.Classify(err)
	span.SetAttributes(
		attribute.String("graphql.resolver.outcome", "error"),
		attribute.String("graphql.mutation.result.code", classified.Code),
	)
	span.RecordError(err)
	if classified.Kind != mutationerr.KindValidation {
		span.SetStatus(codes.Error, err.Error())
	}
}
