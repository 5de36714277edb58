package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type telemetry struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
	mw     *Middleware
}

func newTelemetry(t *testing.T) *telemetry {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	logs := &bytes.Buffer{}
	return &telemetry{
		spans:  spans,
		reader: reader,
		logs:   logs,
		mw:     NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", logs)),
	}
}

func (tm *telemetry) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tm.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(m *metricdata.Metrics) int64 {
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMiddleware_SuccessPath(t *testing.T) {
	tm := newTelemetry(t)
	op := Operation{Kind: KindQuery, Name: "feed", Resource: "Post"}

	called := false
	err := tm.mw.Run(context.Background(), op, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("wrapped function not called")
	}

	spans := tm.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "sync.query.feed" {
		t.Errorf("expected span name 'sync.query.feed', got %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", spans[0].Status())
	}

	rm := tm.collect(t)
	if got := sumOf(findMetric(rm, "sync.op.total")); got != 1 {
		t.Errorf("sync.op.total = %d, want 1", got)
	}
	if got := sumOf(findMetric(rm, "sync.op.errors")); got != 0 {
		t.Errorf("sync.op.errors = %d, want 0", got)
	}
	if findMetric(rm, "sync.op.duration_ms") == nil {
		t.Error("sync.op.duration_ms not recorded")
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	tm := newTelemetry(t)
	boom := errors.New("boom")

	err := tm.mw.Run(context.Background(), Operation{Kind: KindMutation, Name: "likePost"}, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	spans := tm.spans.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %+v", spans)
	}
	if got := sumOf(findMetric(tm.collect(t), "sync.op.errors")); got != 1 {
		t.Errorf("sync.op.errors = %d, want 1", got)
	}
	if !bytes.Contains(tm.logs.Bytes(), []byte(`"operation failed"`)) {
		t.Errorf("expected failure log line, got %s", tm.logs.String())
	}
}

func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	tm := newTelemetry(t)
	err := tm.mw.Run(context.Background(), Operation{Kind: KindRequest, Name: "GET /posts"}, func(ctx context.Context) error {
		tm.mw.Logger().Info(ctx, "inside")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(tm.logs.Bytes(), []byte(`"trace_id"`)) {
		t.Errorf("expected trace_id in nested log entry, got %s", tm.logs.String())
	}
}

func TestMetrics_RecordEvent(t *testing.T) {
	tm := newTelemetry(t)
	tm.mw.Metrics().RecordEvent(context.Background(), "cache.invalidate", attribute.String("tag", "Post"))
	tm.mw.Metrics().RecordEvent(context.Background(), "cache.invalidate", attribute.String("tag", "Post"))

	if got := sumOf(findMetric(tm.collect(t), "sync.events")); got != 2 {
		t.Errorf("sync.events = %d, want 2", got)
	}
}

func TestNopMiddleware(t *testing.T) {
	mw := NopMiddleware()
	start := time.Now()
	err := mw.Run(context.Background(), Operation{Name: "noop"}, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > time.Second {
		t.Error("nop middleware took unexpectedly long")
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	mw, err := MiddlewareFromObserver(NopObserver())
	if err != nil {
		t.Fatalf("MiddlewareFromObserver: %v", err)
	}
	if mw.Logger() == nil || mw.Metrics() == nil {
		t.Fatal("expected populated middleware")
	}
	mw, err = MiddlewareFromObserver(nil)
	if err != nil || mw == nil {
		t.Fatalf("expected nop middleware for nil observer, got %v %v", mw, err)
	}
}
