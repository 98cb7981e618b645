// Package serverapp wires configuration, database, schema and HTTP serving
// into a single lifecycle: New, Init, Start, WaitForStop and Shutdown.
package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"tidb-nested-graphql/internal/config"
	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/observability"
	"tidb-nested-graphql/internal/schemabuild"
	"tidb-nested-graphql/internal/sqlutil"
)

// resources are the handles built by Init, in the order Init builds them.
type resources struct {
	meterProvider   *observability.MeterProvider
	graphqlMetrics  *observability.GraphQLMetrics
	mutationMetrics *observability.MutationMetrics
	tracerProvider  *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }
	executor   *dbexec.StandardExecutor
	snapshot   *schemabuild.Snapshot

	graphqlHandler http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server
}

// App owns runtime resources for the server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	dialect           sqlutil.Dialect
	effectiveDatabase string
	dsnPresent        bool

	resources

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	listenAddr   string
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dialect, err := cfg.Database.ParsedDialect()
	if err != nil {
		return nil, err
	}
	effectiveDatabase, err := cfg.Database.EffectiveDatabaseName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
	}

	return &App{
		cfg:               cfg,
		logger:            logger,
		dialect:           dialect,
		effectiveDatabase: effectiveDatabase,
		dsnPresent:        strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
