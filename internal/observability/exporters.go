package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

// Retry backoff used by every exporter when retries are enabled.
const (
	retryInitialInterval = time.Second
	retryMaxInterval     = 5 * time.Second
	retryMaxElapsed      = 30 * time.Second
)

func parseOTLPProtocol(value string) (otlpProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(otlpProtocolGRPC):
		return otlpProtocolGRPC, nil
	case "http", string(otlpProtocolHTTP):
		return otlpProtocolHTTP, nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q (use grpc or http/protobuf)", value)
	}
}

func buildTLSConfig(cfg OTLPExporterConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.TLSCertFile != "" {
		pem, err := os.ReadFile(cfg.TLSCertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read OTLP TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse OTLP TLS CA file")
		}
		tlsConfig.RootCAs = pool
	}

	switch {
	case cfg.TLSClientCertFile == "" && cfg.TLSClientKeyFile == "":
	case cfg.TLSClientCertFile == "" || cfg.TLSClientKeyFile == "":
		return nil, fmt.Errorf("OTLP TLS client cert and key must both be set")
	default:
		cert, err := tls.LoadX509KeyPair(cfg.TLSClientCertFile, cfg.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load OTLP TLS client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// exporterSettings is an OTLPExporterConfig resolved once for any signal.
type exporterSettings struct {
	cfg      OTLPExporterConfig
	protocol otlpProtocol
	// tls is nil for plaintext export.
	tls *tls.Config
}

func resolveExporter(cfg OTLPExporterConfig) (exporterSettings, error) {
	protocol, err := parseOTLPProtocol(cfg.Protocol)
	if err != nil {
		return exporterSettings{}, err
	}
	s := exporterSettings{cfg: cfg, protocol: protocol}
	if !cfg.Insecure {
		if s.tls, err = buildTLSConfig(cfg); err != nil {
			return exporterSettings{}, err
		}
	}
	return s, nil
}

// optionSet adapts one exporter package's option constructors. endpointURL
// is nil for packages that only take host:port.
type optionSet[O any] struct {
	endpoint    func(string) O
	endpointURL func(string) O
	insecure    func() O
	tls         func(*tls.Config) O
	headers     func(map[string]string) O
	timeout     func(time.Duration) O
	gzip        func() O
	retry       func() O
}

func (o optionSet[O]) build(s exporterSettings) []O {
	c := s.cfg
	var opts []O
	if o.endpointURL != nil && (strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://")) {
		opts = append(opts, o.endpointURL(c.Endpoint))
	} else {
		opts = append(opts, o.endpoint(c.Endpoint))
	}
	if s.tls == nil {
		opts = append(opts, o.insecure())
	} else {
		opts = append(opts, o.tls(s.tls))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, o.headers(c.Headers))
	}
	if c.Timeout > 0 {
		opts = append(opts, o.timeout(c.Timeout))
	}
	if c.gzip() {
		opts = append(opts, o.gzip())
	}
	if c.retry() {
		opts = append(opts, o.retry())
	}
	return opts
}

var traceHTTPOptions = optionSet[otlptracehttp.Option]{
	endpoint:    otlptracehttp.WithEndpoint,
	endpointURL: otlptracehttp.WithEndpointURL,
	insecure:    otlptracehttp.WithInsecure,
	tls:         otlptracehttp.WithTLSClientConfig,
	headers:     otlptracehttp.WithHeaders,
	timeout:     otlptracehttp.WithTimeout,
	gzip: func() otlptracehttp.Option {
		return otlptracehttp.WithCompression(otlptracehttp.GzipCompression)
	},
	retry: func() otlptracehttp.Option {
		return otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsed,
		})
	},
}

var traceGRPCOptions = optionSet[otlptracegrpc.Option]{
	endpoint: otlptracegrpc.WithEndpoint,
	insecure: otlptracegrpc.WithInsecure,
	tls: func(c *tls.Config) otlptracegrpc.Option {
		return otlptracegrpc.WithTLSCredentials(credentials.NewTLS(c))
	},
	headers: otlptracegrpc.WithHeaders,
	timeout: otlptracegrpc.WithTimeout,
	gzip: func() otlptracegrpc.Option {
		return otlptracegrpc.WithCompressor("gzip")
	},
	retry: func() otlptracegrpc.Option {
		return otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsed,
		})
	},
}

var logHTTPOptions = optionSet[otlploghttp.Option]{
	endpoint:    otlploghttp.WithEndpoint,
	endpointURL: otlploghttp.WithEndpointURL,
	insecure:    otlploghttp.WithInsecure,
	tls:         otlploghttp.WithTLSClientConfig,
	headers:     otlploghttp.WithHeaders,
	timeout:     otlploghttp.WithTimeout,
	gzip: func() otlploghttp.Option {
		return otlploghttp.WithCompression(otlploghttp.GzipCompression)
	},
	retry: func() otlploghttp.Option {
		return otlploghttp.WithRetry(otlploghttp.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsed,
		})
	},
}

var logGRPCOptions = optionSet[otlploggrpc.Option]{
	endpoint: otlploggrpc.WithEndpoint,
	insecure: otlploggrpc.WithInsecure,
	tls: func(c *tls.Config) otlploggrpc.Option {
		return otlploggrpc.WithTLSCredentials(credentials.NewTLS(c))
	},
	headers: otlploggrpc.WithHeaders,
	timeout: otlploggrpc.WithTimeout,
	gzip: func() otlploggrpc.Option {
		return otlploggrpc.WithCompressor("gzip")
	},
	retry: func() otlploggrpc.Option {
		return otlploggrpc.WithRetry(otlploggrpc.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsed,
		})
	},
}

func newTraceExporter(ctx context.Context, cfg OTLPExporterConfig) (sdktrace.SpanExporter, error) {
	s, err := resolveExporter(cfg)
	if err != nil {
		return nil, err
	}
	if s.protocol == otlpProtocolHTTP {
		return otlptracehttp.New(ctx, traceHTTPOptions.build(s)...)
	}
	return otlptracegrpc.New(ctx, traceGRPCOptions.build(s)...)
}

func newLogExporter(ctx context.Context, cfg OTLPExporterConfig) (log.Exporter, error) {
	s, err := resolveExporter(cfg)
	if err != nil {
		return nil, err
	}
	if s.protocol == otlpProtocolHTTP {
		return otlploghttp.New(ctx, logHTTPOptions.build(s)...)
	}
	return otlploggrpc.New(ctx, logGRPCOptions.build(s)...)
}
