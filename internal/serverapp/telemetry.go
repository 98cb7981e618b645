package serverapp

import (
	"context"
	"log/slog"

	"tidb-nested-graphql/internal/config"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/observability"
)

// serviceConfig is the resource identity shared by every signal.
func serviceConfig(cfg *config.Config) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
	}
}

func exporterConfig(c config.OTLPConfig) observability.OTLPExporterConfig {
	return observability.OTLPExporterConfig{
		Endpoint:          c.Endpoint,
		Protocol:          c.Protocol,
		Insecure:          c.Insecure,
		TLSCertFile:       c.TLSCertFile,
		TLSClientCertFile: c.TLSClientCertFile,
		TLSClientKeyFile:  c.TLSClientKeyFile,
		Headers:           c.Headers,
		Timeout:           c.Timeout,
		Compression:       c.Compression,
		RetryEnabled:      c.RetryEnabled,
		RetryMaxAttempts:  c.RetryMaxAttempts,
	}
}

func logSignalStart(logger *slog.Logger, signal string, cfg *config.Config, otlp *config.OTLPConfig) {
	attrs := []any{
		slog.String("signal", signal),
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	}
	if otlp != nil {
		attrs = append(attrs,
			slog.String("otlp_endpoint", otlp.Endpoint),
			slog.String("otlp_protocol", otlp.Protocol),
			slog.Bool("insecure", otlp.Insecure),
		)
	}
	logger.Info("initializing OpenTelemetry", attrs...)
}

// InitLogger builds the process logger and installs it as the slog default.
// With log exports enabled it also returns the OTLP logger provider, which
// the caller must shut down.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	logCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(logCfg)
	slog.SetDefault(logger.Logger)
	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	otlp := cfg.Observability.GetLogsConfig()
	logSignalStart(logger.Logger, "logs", cfg, &otlp)

	svc := serviceConfig(cfg)
	svc.OTLPConfig = exporterConfig(otlp)
	provider, err := observability.InitLoggerProvider(svc)
	if err != nil {
		return nil, nil, err
	}

	logCfg.LoggerProvider = provider.Provider()
	logger = logging.NewLogger(logCfg)
	slog.SetDefault(logger.Logger)
	logger.Info("OpenTelemetry log export enabled")
	return logger, provider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.GraphQLMetrics, *observability.MutationMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}
	logSignalStart(logger.Logger, "metrics", cfg, nil)

	provider, err := observability.InitMeterProvider(serviceConfig(cfg))
	if err != nil {
		return nil, nil, nil, err
	}
	graphqlMetrics, mutationMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		_ = provider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, nil, err
	}
	return provider, graphqlMetrics, mutationMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}
	otlp := cfg.Observability.GetTracesConfig()
	logSignalStart(logger.Logger, "traces", cfg, &otlp)

	svc := serviceConfig(cfg)
	svc.OTLPConfig = exporterConfig(otlp)
	return observability.InitTracerProvider(svc)
}
