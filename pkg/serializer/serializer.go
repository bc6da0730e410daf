// Package serializer turns a record and everything its blueprints reach into
// an anonymized graph.
//
// The walk is depth first. Every record that has a blueprint gets a
// surrogate id from a registry private to the call; the graph holds each
// record once per type no matter how many paths reach it, which also stops
// the walk on cycles. Real ids never leave the store: relation values become
// surrogate ids, [type, id] tuples, or nothing at all for has-many relations,
// whose members carry the reference back to their owner.
package serializer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/surrealdb/surrealport/internal/telemetry"
	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

var ErrNoRoot = errors.New("no root record")

// Serializer reads records through a store and emits anonymized graphs.
// A Serializer holds no per-call state and may be reused.
type Serializer struct {
	store      store.Store
	blueprints *blueprint.Set
	factory    store.Factory
	prefix     string
	depOrder   bool
	log        logger.Logger
	tel        *telemetry.Telemetry

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithPrefix sets the surrogate id prefix. Defaults to models.DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Serializer) {
		s.prefix = prefix
	}
}

// WithFactory makes polymorphic tuples carry the factory's public type
// names instead of raw type tags.
func WithFactory(f store.Factory) Option {
	return func(s *Serializer) {
		s.factory = f
	}
}

// WithDependencyOrder reorders the types of the output so referenced types
// come before the types referring to them. Cyclic dependencies keep
// discovery order.
func WithDependencyOrder() Option {
	return func(s *Serializer) {
		s.depOrder = true
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *Serializer) {
		s.log = log
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Serializer) {
		s.tracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Serializer) {
		s.meterProvider = mp
	}
}

// New returns a Serializer reading through st and traversing per bp.
func New(st store.Store, bp *blueprint.Set, opts ...Option) *Serializer {
	s := &Serializer{
		store:      st,
		blueprints: bp,
		prefix:     models.DefaultPrefix,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prefix == "" {
		s.prefix = models.DefaultPrefix
	}
	s.tel = telemetry.New(s.tracerProvider, s.meterProvider)
	return s
}

// Prefix returns the surrogate id prefix.
func (s *Serializer) Prefix() string {
	return s.prefix
}

// Serialize walks root. A root without blueprint, or vetoed by its
// override, yields an empty graph.
func (s *Serializer) Serialize(ctx context.Context, root store.Record) (*models.Graph, error) {
	return s.SerializeAll(ctx, root)
}

// SerializeAll walks several roots into one graph with one registry, so a
// record reachable from more than one root appears once.
func (s *Serializer) SerializeAll(ctx context.Context, roots ...store.Record) (*models.Graph, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoot
	}

	ctx, span := s.tel.Start(ctx, "surrealport.serialize", attribute.Int("roots", len(roots)))
	defer span.End()

	w := newWalk(s)
	for _, root := range roots {
		if root == nil {
			return nil, telemetry.Fail(span, ErrNoRoot)
		}
		if _, _, err := w.visit(ctx, root); err != nil {
			return nil, telemetry.Fail(span, err)
		}
	}

	if s.depOrder {
		order, err := w.deps.order(ctx, w.graph.Types())
		if err != nil {
			return nil, telemetry.Fail(span, fmt.Errorf("order types: %w", err))
		}
		w.graph.Reorder(order)
	}

	span.SetAttributes(
		attribute.Int("records", w.graph.Len()),
		attribute.Int("types", len(w.graph.Types())),
	)
	return w.graph, nil
}

func (s *Serializer) morphName(t models.TypeTag) string {
	if s.factory != nil {
		return s.factory.MorphName(t)
	}
	return string(t)
}
