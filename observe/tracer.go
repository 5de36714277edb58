package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Kind classifies an Operation.
type Kind string

const (
	KindRequest  Kind = "request"
	KindRefresh  Kind = "refresh"
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
	KindRealtime Kind = "realtime"
)

// Operation describes one unit of sync work for telemetry purposes.
type Operation struct {
	Kind     Kind     // request|refresh|query|mutation|realtime
	Name     string   // e.g. "postDetails", "GET /posts/{id}" (required)
	Resource string   // entity type the operation touches (optional)
	Tags     []string // cache tags involved, rendered as strings (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: sync.<kind>.<name>
func (o Operation) SpanName() string {
	kind := o.Kind
	if kind == "" {
		kind = KindRequest
	}
	return "sync." + string(kind) + "." + o.Name
}

// ID returns "<kind>.<name>".
func (o Operation) ID() string {
	if o.Kind == "" {
		return o.Name
	}
	return string(o.Kind) + "." + o.Name
}

// Validate reports whether the operation carries enough metadata to be recorded.
func (o Operation) Validate() error {
	if o.Name == "" {
		return ErrMissingOperationName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with operation-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for the operation.
	StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with operation metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("op.id", op.ID()),
		attribute.String("op.kind", string(op.Kind)),
		attribute.String("op.name", op.Name),
		attribute.Bool("op.error", false),
	}
	if op.Resource != "" {
		attrs = append(attrs, attribute.String("op.resource", op.Resource))
	}
	if len(op.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("op.tags", op.Tags))
	}

	kind := trace.SpanKindInternal
	if op.Kind == KindRequest || op.Kind == KindRefresh {
		kind = trace.SpanKindClient
	}

	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("op.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	return t.noop.Start(ctx, op.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
