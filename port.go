package surrealport

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/deserializer"
	"github.com/surrealdb/surrealport/pkg/linker"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/serializer"
	"github.com/surrealdb/surrealport/pkg/store"
)

// Port exports from and imports into one store with one blueprint set.
type Port struct {
	store      store.Store
	blueprints *blueprint.Set
	ser        *serializer.Serializer
	de         *deserializer.Deserializer
}

type options struct {
	prefix   string
	factory  store.Factory
	depOrder bool
	hooks    *linker.Hooks
	bindings func() linker.Bindings
	log      logger.Logger
	tp       trace.TracerProvider
	mp       metric.MeterProvider
}

// Option configures a Port.
type Option func(*options)

// WithPrefix sets the surrogate id prefix of both directions.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithFactory sets the factory used to make records and to name types in
// polymorphic tuples.
func WithFactory(f store.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithDependencyOrder orders exported types so referenced types come first.
func WithDependencyOrder() Option {
	return func(o *options) {
		o.depOrder = true
	}
}

// WithHooks installs linker hooks on imports.
func WithHooks(h *linker.Hooks) Option {
	return func(o *options) {
		o.hooks = h
	}
}

// WithBindings makes every import bind through the table fn returns.
func WithBindings(fn func() linker.Bindings) Option {
	return func(o *options) {
		o.bindings = fn
	}
}

func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tp = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.mp = mp
	}
}

// New returns a Port over st.
func New(st store.Store, bp *blueprint.Set, opts ...Option) *Port {
	o := options{prefix: models.DefaultPrefix, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = store.NewFactory(st, nil)
	}

	serOpts := []serializer.Option{
		serializer.WithPrefix(o.prefix),
		serializer.WithFactory(o.factory),
		serializer.WithLogger(o.log),
		serializer.WithTracerProvider(o.tp),
		serializer.WithMeterProvider(o.mp),
	}
	if o.depOrder {
		serOpts = append(serOpts, serializer.WithDependencyOrder())
	}

	deOpts := []deserializer.Option{
		deserializer.WithPrefix(o.prefix),
		deserializer.WithFactory(o.factory),
		deserializer.WithLogger(o.log),
		deserializer.WithTracerProvider(o.tp),
		deserializer.WithMeterProvider(o.mp),
	}
	if o.hooks != nil {
		deOpts = append(deOpts, deserializer.WithHooks(o.hooks))
	}
	if o.bindings != nil {
		deOpts = append(deOpts, deserializer.WithBindings(o.bindings))
	}

	return &Port{
		store:      st,
		blueprints: bp,
		ser:        serializer.New(st, bp, serOpts...),
		de:         deserializer.New(st, bp, deOpts...),
	}
}

// Store returns the store the Port reads and writes.
func (p *Port) Store() store.Store {
	return p.store
}

// Prefix returns the surrogate id prefix.
func (p *Port) Prefix() string {
	return p.ser.Prefix()
}

// Export serializes roots into one graph.
func (p *Port) Export(ctx context.Context, roots ...store.Record) (*models.Graph, error) {
	return p.ser.SerializeAll(ctx, roots...)
}

// ExportByID loads the record of type t with real id id and exports it.
func (p *Port) ExportByID(ctx context.Context, t models.TypeTag, id any) (*models.Graph, error) {
	r, err := p.store.Find(ctx, t, id)
	if err != nil {
		return nil, fmt.Errorf("find %s %v: %w", t, id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s %v", ErrRecordNotFound, t, id)
	}
	return p.ser.Serialize(ctx, r)
}

// Import writes input into the store. input is a *models.Graph, a
// models.Graph, a []models.Fragment, a single models.Fragment or a
// deserializer.Provider; anything else fails with ErrMalformedInput.
func (p *Port) Import(ctx context.Context, input any) (*deserializer.Result, error) {
	provider, err := providerOf(input)
	if err != nil {
		return nil, err
	}
	return p.de.Import(ctx, provider)
}

func providerOf(input any) (deserializer.Provider, error) {
	switch in := input.(type) {
	case *models.Graph:
		if in == nil {
			return nil, fmt.Errorf("%w: nil graph", ErrMalformedInput)
		}
		return deserializer.FromGraph(in), nil
	case models.Graph:
		return deserializer.FromGraph(&in), nil
	case []models.Fragment:
		return deserializer.FromFragments(in...), nil
	case models.Fragment:
		return deserializer.FromFragments(in), nil
	case deserializer.Provider:
		return in, nil
	case nil:
		return nil, fmt.Errorf("%w: nil input", ErrMalformedInput)
	}
	return nil, fmt.Errorf("%w: unsupported input %T", ErrMalformedInput, input)
}
