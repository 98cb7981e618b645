package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/gqlrequest"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/mutation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MutationTransactionMiddleware runs every field of a mutation request in
// one transaction. It commits only when no field marked an error; a panic
// rolls back and is re-raised. Queries pass through untouched.
func MutationTransactionMiddleware(db dbexec.TxBeginner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if db == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutationRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			tx, err := db.BeginTx(r.Context())
			if err != nil {
				logging.FromContext(r.Context()).Error("failed to start mutation transaction", slog.String("error", err.Error()))
				http.Error(w, "failed to start transaction", http.StatusInternalServerError)
				return
			}
			mc := mutation.NewMutationContext(tx)
			ctx := mutation.WithMutationContext(r.Context(), mc)

			defer func() {
				if rec := recover(); rec != nil {
					mc.MarkError()
					finalizeMutation(ctx, mc)
					panic(rec)
				}
				finalizeMutation(ctx, mc)
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isMutationRequest(r *http.Request) bool {
	analysis := gqlrequest.AnalysisFromContext(r.Context())
	if analysis == nil {
		analysis = gqlrequest.AnalyzeRequest(r)
	}
	return analysis.Err == nil && analysis.Mutation()
}

// finalizeMutation commits or rolls back mc and tags the active span.
func finalizeMutation(ctx context.Context, mc *mutation.MutationContext) {
	rolledBack := mc.HasError()
	if err := mc.Finalize(); err != nil {
		logging.FromContext(ctx).Error("failed to finalize mutation transaction",
			slog.Bool("rollback", rolledBack),
			slog.String("error", err.Error()),
		)
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Bool("graphql.mutation.rolled_back", rolledBack))
	}
}
