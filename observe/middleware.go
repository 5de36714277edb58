package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature the Middleware wraps.
type ExecuteFunc func(ctx context.Context, op Operation) error

// Middleware wraps operations with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap and Run are safe for concurrent use.
//   - Context: the span context is propagated to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  OrNop(logger),
	}
}

// NopMiddleware returns a Middleware that only runs the wrapped function.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Wrap wraps fn with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, op Operation) error {
		ctx, span := m.tracer.StartSpan(ctx, op)
		start := time.Now()

		err := fn(ctx, op)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordOperation(ctx, op, duration, err)

		opLogger := m.logger.WithOperation(op)
		fields := []Field{F("duration_ms", float64(duration.Microseconds())/1000)}
		if err != nil {
			fields = append(fields, F("error", err))
			opLogger.Warn(ctx, "operation failed", fields...)
		} else {
			opLogger.Debug(ctx, "operation completed", fields...)
		}

		return err
	}
}

// Run executes fn once under op.
func (m *Middleware) Run(ctx context.Context, op Operation, fn func(ctx context.Context) error) error {
	return m.Wrap(func(ctx context.Context, _ Operation) error {
		return fn(ctx)
	})(ctx, op)
}

// Metrics exposes the metrics sink, for components that record events directly.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger exposes the middleware's logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return NopMiddleware(), nil
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
