// Command server serves a GraphQL API with nested create and update
// mutations over a MySQL/TiDB, PostgreSQL or SQLite database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tidb-nested-graphql/internal/config"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/serverapp"

	"github.com/spf13/pflag"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

var errInvalidConfig = errors.New("configuration validation failed")

func main() {
	showVersion := pflag.Bool("version", false, "Print version and exit")

	cfg, err := config.Load()
	if err != nil {
		fail(fmt.Errorf("failed to load configuration: %w", err))
	}
	if *showVersion {
		fmt.Println(versionString())
		return
	}
	if err := run(cfg); err != nil {
		fail(err)
	}
}

func fail(err error) {
	slog.Error("server error", slog.String("error", err.Error()))
	os.Exit(1)
}

func versionString() string {
	return fmt.Sprintf("tidb-nested-graphql %s (%s)", Version, Commit)
}

func run(cfg *config.Config) error {
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}
	if err := reportValidation(slog.Default(), cfg.Validate()); err != nil {
		return err
	}

	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := serverapp.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	if err := app.Init(context.Background()); err != nil {
		return err
	}
	return serve(app, logger, cfg.Server.ShutdownTimeout)
}

// serve runs app until SIGINT/SIGTERM or a server failure, then shuts it
// down within grace. The wait error wins over the shutdown error.
func serve(app *serverapp.App, logger *logging.Logger, grace time.Duration) error {
	serverErrors, startErr := app.Start()
	if startErr != nil {
		_ = shutdown(app, grace)
		return startErr
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	_, waitErr := app.WaitForStop(stop, serverErrors)
	logger.Info("shutting down server gracefully")
	shutdownErr := shutdown(app, grace)

	if waitErr != nil {
		return waitErr
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	logger.Info("server stopped gracefully")
	return nil
}

func shutdown(app *serverapp.App, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return app.Shutdown(ctx)
}

// reportValidation logs every finding and returns errInvalidConfig when any
// of them is fatal.
func reportValidation(logger *slog.Logger, result *config.ValidationResult) error {
	for _, w := range result.Warnings {
		logger.Warn("configuration warning",
			slog.String("field", w.Field),
			slog.String("message", w.Message),
			slog.String("hint", w.Hint),
		)
	}
	for _, e := range result.Errors {
		logger.Error("configuration error",
			slog.String("field", e.Field),
			slog.String("message", e.Message),
			slog.String("hint", e.Hint),
		)
	}
	if result.HasErrors() {
		return errInvalidConfig
	}
	return nil
}
