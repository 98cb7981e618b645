package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MutationMetrics holds metrics for nested mutation execution. A nil
// *MutationMetrics records nothing.
type MutationMetrics struct {
	mutationCounter  metric.Int64Counter
	rollbackCounter  metric.Int64Counter
	durationHist     metric.Float64Histogram
	stepsPerMutation metric.Int64Histogram
}

// InitMutationMetrics initializes nested mutation metrics.
func InitMutationMetrics() (*MutationMetrics, error) {
	meter := otel.Meter(meterName)

	mutationCounter, err := meter.Int64Counter(
		"mutation.nested.total",
		metric.WithDescription("Total number of nested mutations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nested mutation counter: %w", err)
	}

	rollbackCounter, err := meter.Int64Counter(
		"mutation.nested.rollbacks.total",
		metric.WithDescription("Total number of nested mutations rolled back after a write failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rollback counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"mutation.nested.duration",
		metric.WithDescription("Duration of nested mutations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nested mutation duration histogram: %w", err)
	}

	stepsPerMutation, err := meter.Int64Histogram(
		"mutation.nested.steps",
		metric.WithDescription("Number of write steps in a nested mutation plan"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create write steps histogram: %w", err)
	}

	return &MutationMetrics{
		mutationCounter:  mutationCounter,
		rollbackCounter:  rollbackCounter,
		durationHist:     durationHist,
		stepsPerMutation: stepsPerMutation,
	}, nil
}

// RecordMutation records one nested mutation. outcome is "success" or an
// error code.
func (m *MutationMetrics) RecordMutation(ctx context.Context, table, operation, outcome string, steps int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.mutationCounter.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), attrs)
	if steps > 0 {
		m.stepsPerMutation.Record(ctx, int64(steps), metric.WithAttributes(
			attribute.String("table", table),
			attribute.String("operation", operation),
		))
	}
}

// RecordRollback records a mutation whose transaction was rolled back.
func (m *MutationMetrics) RecordRollback(ctx context.Context, table, code string) {
	if m == nil {
		return
	}
	m.rollbackCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("code", code),
	))
}
