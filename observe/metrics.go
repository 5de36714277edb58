package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records one operation with duration and error status.
	RecordOperation(ctx context.Context, op Operation, duration time.Duration, err error)

	// RecordEvent counts a named event that has no duration
	// (cache hit, invalidation, rollback, reconnect).
	RecordEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	eventCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"sync.op.total",
		metric.WithDescription("Total number of sync operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"sync.op.errors",
		metric.WithDescription("Total number of failed sync operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	eventCount, err := meter.Int64Counter(
		"sync.events",
		metric.WithDescription("Cache and realtime events by name"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"sync.op.duration_ms",
		metric.WithDescription("Sync operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		eventCount:   eventCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, op Operation, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op.kind", string(op.Kind)),
		attribute.String("op.name", op.Name),
	}
	if op.Resource != "" {
		attrs = append(attrs, attribute.String("op.resource", op.Resource))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	all := append([]attribute.KeyValue{attribute.String("event", name)}, attrs...)
	m.eventCount.Add(ctx, 1, metric.WithAttributes(all...))
}

type noopMetrics struct{}

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordOperation(context.Context, Operation, time.Duration, error) {}
func (noopMetrics) RecordEvent(context.Context, string, ...attribute.KeyValue)      {}
