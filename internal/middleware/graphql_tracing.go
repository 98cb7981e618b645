package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"tidb-nested-graphql/internal/gqlrequest"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tidb-nested-graphql/graphql"

// operationSpanName follows the "<type> <name>" GraphQL span convention,
// falling back to the first root field for anonymous operations.
func operationSpanName(analysis *gqlrequest.Analysis) string {
	opType := analysis.OperationType
	if opType == "" {
		return "graphql"
	}
	switch {
	case analysis.Named():
		return opType + " " + analysis.OperationName
	case len(analysis.RootFields) > 0:
		return opType + " " + analysis.RootFields[0]
	default:
		return opType
	}
}

// GraphQLTracingMiddleware opens a span around GraphQL execution and binds
// the trace id to the request logger.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}
			meta, _ := gqlrequest.ExecMetaFromContext(r.Context())

			ctx, span := tracer.Start(r.Context(), operationSpanName(analysis),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(observability.GraphQLSpanAttributes(analysis, meta)...),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.IsValid() {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(
					slog.String("trace_id", sc.TraceID().String()),
					slog.String("span_id", sc.SpanID().String()),
				))
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}
