package linker

import (
	"context"

	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

// Event is what hooks receive. Real is the real id of Action.Referred, nil
// when it is still unbound.
type Event struct {
	Record store.Record
	Action Action
	Real   any
}

// BeforeFunc runs before a write. Returning false skips that one write.
type BeforeFunc func(ctx context.Context, ev Event) bool

// AfterFunc observes a write once it happened. It cannot undo it.
type AfterFunc func(ctx context.Context, ev Event)

type hookKey struct {
	typ  models.TypeTag
	kind Kind
}

// Hooks holds before and after subscribers per (type, kind). Subscribers
// run in registration order.
type Hooks struct {
	before map[hookKey][]BeforeFunc
	after  map[hookKey][]AfterFunc
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{
		before: make(map[hookKey][]BeforeFunc),
		after:  make(map[hookKey][]AfterFunc),
	}
}

// Before subscribes fn to writes of kind on records of type t.
func (h *Hooks) Before(t models.TypeTag, kind Kind, fn BeforeFunc) *Hooks {
	k := hookKey{typ: t, kind: kind}
	h.before[k] = append(h.before[k], fn)
	return h
}

// After subscribes fn to completed writes of kind on records of type t.
func (h *Hooks) After(t models.TypeTag, kind Kind, fn AfterFunc) *Hooks {
	k := hookKey{typ: t, kind: kind}
	h.after[k] = append(h.after[k], fn)
	return h
}

// allow runs the before subscribers and stops at the first veto.
func (h *Hooks) allow(ctx context.Context, ev Event) bool {
	for _, fn := range h.before[hookKey{typ: ev.Action.Type, kind: ev.Action.Kind}] {
		if !fn(ctx, ev) {
			return false
		}
	}
	return true
}

func (h *Hooks) notify(ctx context.Context, ev Event) {
	for _, fn := range h.after[hookKey{typ: ev.Action.Type, kind: ev.Action.Kind}] {
		fn(ctx, ev)
	}
}
