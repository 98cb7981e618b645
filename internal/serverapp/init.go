package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/schemabuild"
)

// bootstrap carries one Init attempt. Each stage fills part of res and
// pushes the teardown for what it created.
type bootstrap struct {
	app     *App
	ctx     context.Context
	res     resources
	cleanup cleanupStack
}

type initStage struct {
	name string
	run  func(*bootstrap) error
}

var initStages = []initStage{
	{name: "OpenTelemetry metrics", run: (*bootstrap).telemetryMetrics},
	{name: "OpenTelemetry tracing", run: (*bootstrap).telemetryTracing},
	{name: "database", run: (*bootstrap).database},
	{name: "GraphQL schema", run: (*bootstrap).schema},
	{name: "HTTP server", run: (*bootstrap).httpServer},
}

// Init builds every runtime resource. It is idempotent, and a failed Init
// releases whatever it had already created.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	done := a.initialized
	a.stateMu.Unlock()
	if done {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b := &bootstrap{app: a, ctx: ctx}
	if lp := a.loggerProvider; lp != nil {
		b.cleanup.push("logger provider", func(c context.Context) error {
			return lp.Shutdown(c, a.logger.Logger)
		})
	}

	for _, stage := range initStages {
		if err := stage.run(b); err != nil {
			_ = b.cleanup.run(context.Background(), a.logger)
			return fmt.Errorf("failed to initialize %s: %w", stage.name, err)
		}
	}

	a.stateMu.Lock()
	a.resources = b.res
	a.cleanup = b.cleanup
	a.initialized = true
	a.stateMu.Unlock()
	return nil
}

func (b *bootstrap) telemetryMetrics() error {
	mp, gm, mm, err := initMetrics(b.app.cfg, b.app.logger)
	if err != nil {
		return err
	}
	b.res.meterProvider, b.res.graphqlMetrics, b.res.mutationMetrics = mp, gm, mm
	if mp != nil {
		b.cleanup.push("meter provider", func(c context.Context) error {
			return mp.Shutdown(c, b.app.logger.Logger)
		})
	}
	return nil
}

func (b *bootstrap) telemetryTracing() error {
	tp, err := initTracing(b.app.cfg, b.app.logger)
	if err != nil {
		return err
	}
	b.res.tracerProvider = tp
	if tp != nil {
		b.cleanup.push("tracer provider", func(c context.Context) error {
			return tp.Shutdown(c, b.app.logger.Logger)
		})
	}
	return nil
}

func (b *bootstrap) database() error {
	a := b.app
	a.logger.Info("connecting to database",
		slog.String("dialect", string(a.dialect)),
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
		slog.String("database_effective", a.effectiveDatabase),
		slog.Bool("dsn_present", a.dsnPresent),
	)

	db, statsReg, err := connectDB(a.cfg, a.dialect, a.logger)
	if err != nil {
		return err
	}
	b.res.db, b.res.dbStatsReg = db, statsReg
	b.cleanup.push("database", func(context.Context) error {
		if statsReg != nil {
			if err := statsReg.Unregister(); err != nil {
				a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	})

	if err := configureDatabase(b.ctx, a.cfg, a.logger, db, a.effectiveDatabase, a.dsnPresent); err != nil {
		return fmt.Errorf("verify connection: %w", err)
	}
	b.res.executor = dbexec.NewStandardExecutor(db)
	return nil
}

func (b *bootstrap) schema() error {
	a := b.app
	snapshot, err := schemabuild.Build(b.ctx, schemabuild.Config{
		Queryer:      b.res.db,
		Executor:     b.res.executor,
		Dialect:      a.dialect,
		DatabaseName: a.effectiveDatabase,
		Naming:       a.cfg.Naming,
		MaxDepth:     a.cfg.Mutation.MaxDepth,
		GraphiQL:     a.cfg.Server.GraphiQLEnabled,
		Metrics:      b.res.mutationMetrics,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	b.res.snapshot = snapshot
	return nil
}

func (b *bootstrap) httpServer() error {
	a, r := b.app, &b.res
	r.graphqlHandler = buildGraphQLHandler(a.cfg, a.logger, r.snapshot, r.graphqlMetrics, r.executor)
	r.mux = buildRouter(a.cfg, a.logger, r.db, r.graphqlHandler, r.meterProvider)
	r.handler = wrapHTTPHandler(a.cfg, a.logger, r.mux)
	r.serverAddr = fmt.Sprintf(":%d", a.cfg.Server.Port)
	r.srv = buildServer(a.cfg, r.handler, r.serverAddr)

	srv := r.srv
	b.cleanup.push("HTTP server", srv.Shutdown)
	return nil
}
