// Package deserializer rebuilds an anonymized graph in a store.
//
// Records are created in input order. Every write that names a record not
// created yet goes through the linker, which queues it until the whole
// input is drained and then resolves it. The result maps each imported
// surrogate id to the real id the store issued.
package deserializer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/surrealdb/surrealport/internal/telemetry"
	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/linker"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

// Result is the outcome of one import.
type Result struct {
	// Bindings maps every imported surrogate id to its real id. Skipped
	// records are absent.
	Bindings map[models.SurrogateID]any
	// Stats are the linker counters of the call.
	Stats linker.Stats

	Fragments int
	Created   int
	Adopted   int
	Skipped   int
}

// Deserializer writes anonymized graphs into a store. It holds no per-call
// state and may be reused.
type Deserializer struct {
	store       store.Store
	blueprints  *blueprint.Set
	factory     store.Factory
	prefix      string
	hooks       *linker.Hooks
	bindings    func() linker.Bindings
	placeholder any
	log         logger.Logger
	tel         *telemetry.Telemetry

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Deserializer.
type Option func(*Deserializer)

// WithPrefix sets the surrogate id prefix. Defaults to models.DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(d *Deserializer) {
		d.prefix = prefix
	}
}

// WithFactory sets the factory records are made with. Defaults to a
// store.MorphFactory without aliases.
func WithFactory(f store.Factory) Option {
	return func(d *Deserializer) {
		d.factory = f
	}
}

// WithHooks installs linker hooks for every call.
func WithHooks(h *linker.Hooks) Option {
	return func(d *Deserializer) {
		d.hooks = h
	}
}

// WithBindings makes each call bind through a table returned by fn instead
// of an in-memory one.
func WithBindings(fn func() linker.Bindings) Option {
	return func(d *Deserializer) {
		d.bindings = fn
	}
}

// WithPlaceholder sets the key value of deferred polymorphic references.
func WithPlaceholder(v any) Option {
	return func(d *Deserializer) {
		d.placeholder = v
	}
}

func WithLogger(log logger.Logger) Option {
	return func(d *Deserializer) {
		d.log = log
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Deserializer) {
		d.tracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Deserializer) {
		d.meterProvider = mp
	}
}

// New returns a Deserializer writing to st per bp.
func New(st store.Store, bp *blueprint.Set, opts ...Option) *Deserializer {
	d := &Deserializer{
		store:       st,
		blueprints:  bp,
		prefix:      models.DefaultPrefix,
		placeholder: constants.PlaceholderKey,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.prefix == "" {
		d.prefix = models.DefaultPrefix
	}
	if d.factory == nil {
		d.factory = store.NewFactory(st, nil)
	}
	d.tel = telemetry.New(d.tracerProvider, d.meterProvider)
	return d
}

// Prefix returns the surrogate id prefix.
func (d *Deserializer) Prefix() string {
	return d.prefix
}

// Deserialize imports g and returns the surrogate to real id map.
func (d *Deserializer) Deserialize(ctx context.Context, g *models.Graph) (map[models.SurrogateID]any, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", constants.ErrMalformedInput)
	}
	res, err := d.Import(ctx, FromGraph(g))
	if err != nil {
		return nil, err
	}
	return res.Bindings, nil
}

// DeserializeStream imports the fragments p yields and returns the
// surrogate to real id map.
func (d *Deserializer) DeserializeStream(ctx context.Context, p Provider) (map[models.SurrogateID]any, error) {
	res, err := d.Import(ctx, p)
	if err != nil {
		return nil, err
	}
	return res.Bindings, nil
}

// Import drains p, resolves deferred writes and reports what happened.
// On error, records created so far stay in the store.
func (d *Deserializer) Import(ctx context.Context, p Provider) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil provider", constants.ErrMalformedInput)
	}

	ctx, span := d.tel.Start(ctx, "surrealport.deserialize")
	defer span.End()

	run := d.newRun()
	for {
		f, ok, err := p.Next(ctx)
		if err != nil {
			return nil, telemetry.Fail(span, fmt.Errorf("read fragment %d: %w", run.res.Fragments+1, err))
		}
		if !ok {
			break
		}
		run.res.Fragments++
		if err := run.fragment(ctx, f); err != nil {
			return nil, telemetry.Fail(span, err)
		}
	}

	if err := run.deferOwning(ctx); err != nil {
		return nil, telemetry.Fail(span, err)
	}

	bindings, err := run.link.Resolve(ctx)
	if err != nil {
		return nil, telemetry.Fail(span, err)
	}
	run.res.Bindings = bindings
	run.res.Stats = run.link.Stats()

	span.SetAttributes(
		attribute.Int("fragments", run.res.Fragments),
		attribute.Int("records.created", run.res.Created),
		attribute.Int("records.adopted", run.res.Adopted),
		attribute.Int("records.skipped", run.res.Skipped),
		attribute.Int("actions.deferred", run.res.Stats.Deferred),
	)
	d.log.Info("import finished",
		"fragments", run.res.Fragments,
		"created", run.res.Created,
		"adopted", run.res.Adopted,
		"skipped", run.res.Skipped,
		"deferred", run.res.Stats.Deferred,
	)
	return &run.res, nil
}

func (d *Deserializer) newRun() *run {
	opts := []linker.Option{
		linker.WithPlaceholder(d.placeholder),
		linker.WithLogger(d.log),
		linker.WithTracerProvider(d.tracerProvider),
		linker.WithMeterProvider(d.meterProvider),
	}
	if d.hooks != nil {
		opts = append(opts, linker.WithHooks(d.hooks))
	}
	if d.bindings != nil {
		opts = append(opts, linker.WithBindings(d.bindings()))
	}
	return &run{d: d, link: linker.New(d.store, opts...)}
}
