package middleware

import (
	"log/slog"
	"net/http"

	"tidb-nested-graphql/internal/gqlrequest"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/observability"
)

// GraphQLRequestAnalysisMiddleware parses the GraphQL request once and
// stores the analysis and its ExecMeta on the request context. The request
// logger gains the operation fields. fingerprint may be nil.
func GraphQLRequestAnalysisMiddleware(fingerprint func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			meta := execMeta(analysis, fingerprint)

			ctx := gqlrequest.WithExecMeta(gqlrequest.WithAnalysis(r.Context(), analysis), meta)
			logger := logging.FromContext(ctx)
			if fields := observability.GraphQLLogFields(ctx, analysis, meta); len(fields) > 0 {
				logger = logger.WithFields(fields...)
				ctx = logging.WithLogger(ctx, logger)
			}
			if analysis.Err != nil && r.Method == http.MethodPost {
				logger.Debug("GraphQL request analysis failed", slog.String("error", analysis.Err.Error()))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func execMeta(analysis *gqlrequest.Analysis, fingerprint func() string) gqlrequest.ExecMeta {
	meta := gqlrequest.ExecMeta{
		OperationName: analysis.OperationName,
		OperationType: analysis.OperationType,
		OperationHash: analysis.OperationHash,
		InputDepth:    analysis.InputDepth,
	}
	if fingerprint != nil {
		meta.Fingerprint = fingerprint()
	}
	return meta
}
