package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tidb-nested-graphql"

// GraphQLMetrics holds request-level metrics for the /graphql endpoint.
// A nil *GraphQLMetrics records nothing.
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	selectionDepth  metric.Int64Histogram
	inputDepth      metric.Int64Histogram
}

// InitGraphQLMetrics creates the GraphQL request instruments on the global
// meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter(meterName)
	m := &GraphQLMetrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if m.requestCounter, err = meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.errorCounter, err = meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL requests answered with errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of in-flight GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}
	if m.selectionDepth, err = meter.Int64Histogram(
		"graphql.selection.depth",
		metric.WithDescription("Depth of the requested selection set"),
	); err != nil {
		return nil, fmt.Errorf("failed to create selection depth histogram: %w", err)
	}
	if m.inputDepth, err = meter.Int64Histogram(
		"graphql.mutation.input_depth",
		metric.WithDescription("Object nesting depth of mutation input arguments"),
	); err != nil {
		return nil, fmt.Errorf("failed to create input depth histogram: %w", err)
	}
	return m, nil
}

// RecordRequest records a finished GraphQL request with its duration and outcome.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation_type", operationType)))
	}
}

// RecordDepth records the selection depth of any operation and, for
// mutations, the nesting depth of the input arguments.
func (m *GraphQLMetrics) RecordDepth(ctx context.Context, operationType string, selectionDepth, inputDepth int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation_type", operationType))
	m.selectionDepth.Record(ctx, int64(selectionDepth), attrs)
	if operationType == "mutation" {
		m.inputDepth.Record(ctx, int64(inputDepth), attrs)
	}
}

// TrackActive counts the request as in flight until the returned func runs.
func (m *GraphQLMetrics) TrackActive(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.activeRequests.Add(ctx, 1)
	return func() { m.activeRequests.Add(ctx, -1) }
}

// InitMetrics initializes the GraphQL and nested mutation instruments.
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, *MutationMetrics, error) {
	graphqlMetrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}
	mutationMetrics, err := InitMutationMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize mutation metrics: %w", err)
	}

	logger.Info("custom GraphQL and mutation metrics initialized")
	return graphqlMetrics, mutationMetrics, nil
}
