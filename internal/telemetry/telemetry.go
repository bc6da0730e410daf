// Package telemetry holds the OpenTelemetry tracer and counters shared by
// the serializer, deserializer and linker.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/surrealdb/surrealport"

// Telemetry bundles a tracer and the counters this module records.
type Telemetry struct {
	Tracer trace.Tracer

	serialized metric.Int64Counter
	imported   metric.Int64Counter
	deferred   metric.Int64Counter
	resolved   metric.Int64Counter
	vetoed     metric.Int64Counter
}

// New builds Telemetry from the given providers. Nil providers fall back to
// the global ones, which are no-ops unless the application installed real
// providers.
func New(tp trace.TracerProvider, mp metric.MeterProvider) *Telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentation)

	t := &Telemetry{Tracer: tp.Tracer(instrumentation)}
	// Instrument creation only fails on invalid names; ours are constant.
	t.serialized, _ = meter.Int64Counter("surrealport.records.serialized",
		metric.WithDescription("Records written to an anonymized graph"), metric.WithUnit("1"))
	t.imported, _ = meter.Int64Counter("surrealport.records.imported",
		metric.WithDescription("Records created or adopted while deserializing"), metric.WithUnit("1"))
	t.deferred, _ = meter.Int64Counter("surrealport.actions.deferred",
		metric.WithDescription("Actions queued because their target was unbound"), metric.WithUnit("1"))
	t.resolved, _ = meter.Int64Counter("surrealport.actions.resolved",
		metric.WithDescription("Deferred actions applied by the resolve pass"), metric.WithUnit("1"))
	t.vetoed, _ = meter.Int64Counter("surrealport.actions.vetoed",
		metric.WithDescription("Actions skipped by a before hook"), metric.WithUnit("1"))
	return t
}

// Start opens a span named name.
func (t *Telemetry) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (t *Telemetry) Serialized(ctx context.Context, typ string) {
	add(ctx, t.serialized, typ)
}

func (t *Telemetry) Imported(ctx context.Context, typ string) {
	add(ctx, t.imported, typ)
}

func (t *Telemetry) Deferred(ctx context.Context, typ string) {
	add(ctx, t.deferred, typ)
}

func (t *Telemetry) Resolved(ctx context.Context, typ string) {
	add(ctx, t.resolved, typ)
}

func (t *Telemetry) Vetoed(ctx context.Context, typ string) {
	add(ctx, t.vetoed, typ)
}

func add(ctx context.Context, c metric.Int64Counter, typ string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("record.type", typ)))
}

// Fail marks span as failed with err and returns err.
func Fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
