// Package linker binds surrogate ids to real ids and resolves writes that
// refer to records not created yet.
//
// Deserializing a graph is a two pass link. The first pass creates records
// in input order and binds each surrogate id to the real id the store
// issued. Any write that needs the real id of a record not bound yet
// (a relocation) is queued instead of applied. Resolve is the second pass:
// it loads every record with queued writes, applies them in a fixed order
// and saves each record once.
//
// Every action constructor (Update, Associate, Attach, Morph, SearchReplace)
// is dual path: with the target already bound the write is applied to the
// given record right away, otherwise it is queued under (type, owner).
package linker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/surrealdb/surrealport/internal/telemetry"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

// Stats counts what a Linker did.
type Stats struct {
	// Applied counts writes applied immediately.
	Applied int
	// Deferred counts writes queued for the resolve pass.
	Deferred int
	// Vetoed counts writes skipped by a before hook, in either pass.
	Vetoed int
	// Resolved counts queued writes applied by the resolve pass.
	Resolved int
}

// Linker owns the binding table and the deferred action queue of one
// deserialize call. It is not safe for concurrent use.
type Linker struct {
	store       store.Store
	bindings    Bindings
	queue       *Queue
	hooks       *Hooks
	placeholder any
	log         logger.Logger
	tel         *telemetry.Telemetry
	stats       Stats

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Linker.
type Option func(*Linker)

// WithBindings replaces the in-memory binding table.
func WithBindings(b Bindings) Option {
	return func(l *Linker) {
		l.bindings = b
	}
}

// WithHooks installs before and after hooks.
func WithHooks(h *Hooks) Option {
	return func(l *Linker) {
		l.hooks = h
	}
}

// WithPlaceholder sets the value written to the key column of a deferred
// polymorphic reference. Defaults to constants.PlaceholderKey.
func WithPlaceholder(v any) Option {
	return func(l *Linker) {
		l.placeholder = v
	}
}

func WithLogger(log logger.Logger) Option {
	return func(l *Linker) {
		l.log = log
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Linker) {
		l.tracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(l *Linker) {
		l.meterProvider = mp
	}
}

// New returns a Linker writing through s.
func New(s store.Store, opts ...Option) *Linker {
	l := &Linker{
		store:       s,
		bindings:    NewTable(),
		queue:       NewQueue(),
		hooks:       NewHooks(),
		placeholder: constants.PlaceholderKey,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.tel = telemetry.New(l.tracerProvider, l.meterProvider)
	return l
}

// Bindings returns the binding table.
func (l *Linker) Bindings() Bindings {
	return l.bindings
}

// Hooks returns the hook registry.
func (l *Linker) Hooks() *Hooks {
	return l.hooks
}

// Stats returns the counters so far.
func (l *Linker) Stats() Stats {
	return l.stats
}

// Pending returns the number of queued actions.
func (l *Linker) Pending() int {
	return l.queue.Len()
}

// Bind records the real id the store issued for the surrogate id.
func (l *Linker) Bind(ctx context.Context, id models.SurrogateID, realID any) error {
	return l.bindings.Bind(ctx, id, realID)
}

// Get returns the real id bound to id, or fallback when unbound.
func (l *Linker) Get(ctx context.Context, id models.SurrogateID, fallback any) (any, error) {
	realID, ok, err := l.bindings.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fallback, nil
	}
	return realID, nil
}

// Update writes the real id of referred at path on r.
func (l *Linker) Update(ctx context.Context, r store.Record, owner models.SurrogateID, path string, referred models.SurrogateID) (Outcome, error) {
	return l.dispatch(ctx, r, Action{Kind: Update, Type: r.Type(), Owner: owner, Field: path, Referred: referred})
}

// Associate points the singular relation field of r at referred.
func (l *Linker) Associate(ctx context.Context, r store.Record, owner models.SurrogateID, field string, referred models.SurrogateID) (Outcome, error) {
	return l.dispatch(ctx, r, Action{Kind: Associate, Type: r.Type(), Owner: owner, Field: field, Referred: referred})
}

// Attach adds referred to the pivot relation field of r. r must be saved.
func (l *Linker) Attach(ctx context.Context, r store.Record, owner models.SurrogateID, field string, referred models.SurrogateID) (Outcome, error) {
	return l.dispatch(ctx, r, Action{Kind: Attach, Type: r.Type(), Owner: owner, Field: field, Referred: referred})
}

// Morph points the polymorphic relation field of r at referred, a record
// whose discriminator value is referredType.
//
// When referred is unbound the discriminator column is written right away
// and the key column gets the placeholder until Resolve.
func (l *Linker) Morph(ctx context.Context, r store.Record, owner models.SurrogateID, field, referredType string, referred models.SurrogateID) (Outcome, error) {
	a := Action{Kind: Morph, Type: r.Type(), Owner: owner, Field: field, Referred: referred, ReferredType: referredType}
	rel, err := l.relation(a, store.PolymorphicSingular)
	if err != nil {
		return 0, err
	}
	out, err := l.dispatch(ctx, r, a)
	if err != nil || out != Deferred {
		return out, err
	}
	r.Set(rel.MorphType, referredType)
	r.Set(rel.MorphKey, l.placeholder)
	return out, nil
}

// SearchReplace replaces token inside the text at path on r with the real id
// of referred.
func (l *Linker) SearchReplace(ctx context.Context, r store.Record, owner models.SurrogateID, path string, token Token, referred models.SurrogateID) (Outcome, error) {
	return l.dispatch(ctx, r, Action{Kind: SearchReplace, Type: r.Type(), Owner: owner, Field: path, Referred: referred, Token: token})
}

// Defer queues a unconditionally. Use it for writes on a record other than
// the one being built, such as the foreign key a has-one child holds.
func (l *Linker) Defer(ctx context.Context, a Action) {
	l.queue.Push(a)
	l.stats.Deferred++
	l.tel.Deferred(ctx, string(a.Type))
	l.log.Debug("deferred", "action", a.String())
}

func (l *Linker) dispatch(ctx context.Context, r store.Record, a Action) (Outcome, error) {
	realID, bound, err := l.bindings.Lookup(ctx, a.Referred)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", a.Referred, err)
	}
	if !bound {
		l.Defer(ctx, a)
		return Deferred, nil
	}

	ev := Event{Record: r, Action: a, Real: realID}
	if !l.hooks.allow(ctx, ev) {
		l.stats.Vetoed++
		l.tel.Vetoed(ctx, string(a.Type))
		l.log.Debug("vetoed", "action", a.String())
		return Vetoed, nil
	}
	if err := l.apply(ctx, r, a, realID); err != nil {
		return 0, err
	}
	l.hooks.notify(ctx, ev)
	l.stats.Applied++
	return Applied, nil
}
