package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"tidb-nested-graphql/internal/gqlrequest"
	"tidb-nested-graphql/internal/observability"
)

// GraphQLMetricsMiddleware records request count, duration, outcome and
// nesting depth for POSTed GraphQL operations.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GraphiQL page loads are not GraphQL requests.
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			defer metrics.TrackActive(ctx)()
			start := time.Now()

			analysis := gqlrequest.AnalysisFromContext(ctx)
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
			}
			operationType := "unknown"
			if analysis.Err == nil && analysis.OperationType != "" {
				operationType = analysis.OperationType
				metrics.RecordDepth(ctx, operationType, analysis.SelectionDepth, analysis.InputDepth)
			}

			rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			hasErrors := rec.status >= 400 || responseHasGraphQLErrors(rec.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, operationType)
		})
	}
}

// bodyRecorder tees the response body so the error list can be inspected.
type bodyRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *bodyRecorder) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.status = statusCode
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func responseHasGraphQLErrors(body []byte) bool {
	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
