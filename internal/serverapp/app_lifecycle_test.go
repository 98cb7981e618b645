package serverapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidb-nested-graphql/internal/config"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/naming"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func TestWaitForStop(t *testing.T) {
	t.Run("signal", func(t *testing.T) {
		app := &App{logger: testLogger()}
		stop := make(chan os.Signal, 1)
		stop <- syscall.SIGTERM

		reason, err := app.WaitForStop(stop, make(chan error))
		require.NoError(t, err)
		assert.Equal(t, "signal", reason)
	})

	t.Run("server error", func(t *testing.T) {
		app := &App{logger: testLogger()}
		serverErrors := make(chan error, 1)
		serverErrors <- errors.New("boom")

		reason, err := app.WaitForStop(make(chan os.Signal), serverErrors)
		assert.ErrorContains(t, err, "boom")
		assert.Equal(t, "server_error", reason)
	})

	t.Run("only stop channel", func(t *testing.T) {
		app := &App{logger: testLogger()}
		stop := make(chan os.Signal, 1)
		stop <- os.Interrupt

		reason, err := app.WaitForStop(stop, nil)
		require.NoError(t, err)
		assert.Equal(t, "signal", reason)
	})

	t.Run("no channels", func(t *testing.T) {
		app := &App{logger: testLogger()}
		_, err := app.WaitForStop(nil, nil)
		assert.Error(t, err)
	})
}

func TestShutdownRunsCleanupOnceInReverseOrder(t *testing.T) {
	app := &App{logger: testLogger()}
	var order []string
	var calls int32
	app.cleanup.push("database", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		order = append(order, "database")
		return nil
	})
	app.cleanup.push("HTTP server", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		order = append(order, "HTTP server")
		return errors.New("still draining")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := app.Shutdown(ctx)
	assert.ErrorContains(t, err, "HTTP server: still draining")
	assert.Equal(t, err, app.Shutdown(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"HTTP server", "database"}, order)
}

func TestStartBeforeInitFails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	assert.Error(t, err)
}

func TestStartServesAndShutsDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	app := &App{
		cfg:    &config.Config{},
		logger: testLogger(),
		resources: resources{
			serverAddr: "127.0.0.1:0",
			srv:        &http.Server{Handler: mux},
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	serverErrors, err := app.Start()
	require.NoError(t, err)
	again, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, serverErrors, again)
	require.NotEmpty(t, app.Addr())

	resp, err := http.Get("http://" + app.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	_, err := New(&config.Config{Database: config.DatabaseConfig{Dialect: "oracle"}}, testLogger())
	assert.ErrorContains(t, err, "unsupported database dialect")
}

func TestNewRequiresMySQLDatabaseName(t *testing.T) {
	_, err := New(&config.Config{Database: config.DatabaseConfig{Dialect: "mysql", Host: "127.0.0.1"}}, testLogger())
	assert.ErrorContains(t, err, "no effective database name")
}

func TestInitFailureDoesNotMarkInitialized(t *testing.T) {
	appCfg := &config.Config{
		Database: config.DatabaseConfig{
			Dialect:  "mysql",
			Host:     "127.0.0.1",
			Port:     1,
			User:     "root",
			Password: "invalid",
			Database: "test",
			TLS:      config.DatabaseTLSConfig{Mode: "off"},
			Pool: config.PoolConfig{
				MaxOpen:     1,
				MaxIdle:     1,
				MaxLifetime: time.Second,
			},
			ConnectionRetryInterval: 10 * time.Millisecond,
		},
		Server: config.ServerConfig{
			Port:               18089,
			ShutdownTimeout:    time.Second,
			HealthCheckTimeout: time.Second,
		},
		Mutation: config.MutationConfig{MaxDepth: 2},
		Observability: config.ObservabilityConfig{
			ServiceName: "tidb-nested-graphql",
			Logging:     config.LoggingConfig{Level: "info", Format: "text"},
		},
		Naming: naming.DefaultConfig(),
	}

	app, err := New(appCfg, testLogger())
	require.NoError(t, err)
	require.Error(t, app.Init(context.Background()))

	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	assert.False(t, app.initialized)
	assert.Nil(t, app.handler)
}
