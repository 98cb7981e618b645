package serverapp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"tidb-nested-graphql/internal/config"
	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/middleware"
	"tidb-nested-graphql/internal/observability"
	"tidb-nested-graphql/internal/schemabuild"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	graphqlPath = "/graphql"
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// buildGraphQLHandler assembles the per-request chain, outermost first:
//
//	logging -> analysis -> metrics -> tracing -> errors -> mutation tx -> graphql
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, snapshot *schemabuild.Snapshot, graphqlMetrics *observability.GraphQLMetrics, txBeginner dbexec.TxBeginner) http.Handler {
	fingerprint := snapshot.Fingerprint
	chain := []func(http.Handler) http.Handler{
		middleware.LoggingMiddleware(logger),
		middleware.GraphQLRequestAnalysisMiddleware(func() string { return fingerprint }),
	}
	if cfg.Observability.MetricsEnabled && graphqlMetrics != nil {
		chain = append(chain, middleware.GraphQLMetricsMiddleware(graphqlMetrics))
	}
	chain = append(chain,
		middleware.GraphQLTracingMiddleware(),
		middleware.GraphQLErrorsMiddleware(),
	)
	if txBeginner != nil {
		chain = append(chain, middleware.MutationTransactionMiddleware(txBeginner))
	}

	var handler http.Handler = snapshot.Handler
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	logger.Debug("GraphQL handler chain built", slog.Int("middlewares", len(chain)))
	return handler
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db *sql.DB, graphqlHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(graphqlPath, graphqlHandler)
	mux.Handle("GET /{$}", http.RedirectHandler(graphqlPath, http.StatusFound))
	mux.HandleFunc(healthPath, healthHandler(db, cfg.Server.HealthCheckTimeout))
	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle(metricsPath, promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", metricsPath))
	}
	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if !cfg.Observability.MetricsEnabled && !cfg.Observability.TracingEnabled {
		return handler
	}
	logger.Info("HTTP instrumentation enabled")
	return otelhttp.NewHandler(handler, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return httpRootSpanName(r)
		}),
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	)
}

// httpRootSpanName names server spans "<METHOD> <route>", folding unknown
// paths into /* to keep span names low-cardinality.
func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	route := "/*"
	switch r.URL.Path {
	case "/", graphqlPath, healthPath, metricsPath:
		route = r.URL.Path
	}
	return method + " " + route
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// startServer serves on ln in the background. The channel receives at most
// one error and stays open after a clean shutdown.
func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, ln net.Listener) chan error {
	errs := make(chan error, 1)
	attrs := []any{
		slog.String("address", ln.Addr().String()),
		slog.String("graphql_endpoint", graphqlPath),
		slog.String("health_endpoint", healthPath),
		slog.Int("mutation_max_depth", cfg.Mutation.MaxDepth),
	}
	if cfg.Observability.MetricsEnabled {
		attrs = append(attrs, slog.String("metrics_endpoint", metricsPath))
	}
	logger.Info("server starting", attrs...)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return errs
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func writeHealth(w http.ResponseWriter, code int, status healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// healthHandler pings db. Failures are logged; the body stays generic.
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeHealth(w, http.StatusServiceUnavailable, healthStatus{Status: "unhealthy", Database: "unavailable"})
			return
		}
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := db.PingContext(ctx); err != nil {
			logging.FromContext(r.Context()).Error("health check failed",
				slog.String("check", "database"),
				slog.String("error", err.Error()),
			)
			writeHealth(w, http.StatusServiceUnavailable, healthStatus{Status: "unhealthy", Database: "failed"})
			return
		}
		writeHealth(w, http.StatusOK, healthStatus{Status: "healthy", Database: "ok"})
	}
}
