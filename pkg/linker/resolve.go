package linker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/surrealdb/surrealport/internal/telemetry"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
)

// Resolve drains the queue and returns the final surrogate to real id map.
//
// For each queued owner, in queue order: the owner must be bound, its record
// must load, then its actions run grouped by kind in Kinds order. A before
// hook veto skips one action. Each record is saved once, after all of its
// actions. Any error aborts the pass; records saved so far stay saved.
func (l *Linker) Resolve(ctx context.Context) (map[models.SurrogateID]any, error) {
	ctx, span := l.tel.Start(ctx, "surrealport.resolve", attribute.Int("actions.pending", l.queue.Len()))
	defer span.End()

	for _, t := range l.queue.Types() {
		for _, owner := range l.queue.Owners(t) {
			if err := l.resolveOwner(ctx, t, owner); err != nil {
				return nil, telemetry.Fail(span, err)
			}
		}
	}
	l.queue.Reset()

	out, err := l.bindings.Snapshot(ctx)
	if err != nil {
		return nil, telemetry.Fail(span, fmt.Errorf("snapshot bindings: %w", err))
	}
	span.SetAttributes(
		attribute.Int("actions.resolved", l.stats.Resolved),
		attribute.Int("actions.vetoed", l.stats.Vetoed),
		attribute.Int("bindings", len(out)),
	)
	return out, nil
}

func (l *Linker) resolveOwner(ctx context.Context, t models.TypeTag, owner models.SurrogateID) error {
	realID, ok, err := l.bindings.Lookup(ctx, owner)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", owner, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s %s", constants.ErrUnresolvedOwner, t, owner)
	}

	rec, err := l.store.Find(ctx, t, realID)
	if err != nil {
		return fmt.Errorf("find %s %v: %w", t, realID, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s %v (%s)", constants.ErrRecordNotFound, t, realID, owner)
	}

	for _, a := range l.queue.Actions(t, owner) {
		target, bound, err := l.bindings.Lookup(ctx, a.Referred)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", a.Referred, err)
		}

		ev := Event{Record: rec, Action: a}
		if bound {
			ev.Real = target
		}
		if !l.hooks.allow(ctx, ev) {
			l.stats.Vetoed++
			l.tel.Vetoed(ctx, string(t))
			l.log.Debug("vetoed", "action", a.String())
			continue
		}
		if !bound {
			return fmt.Errorf("%w: %s", constants.ErrUnresolvedReference, a)
		}

		if err := l.apply(ctx, rec, a, target); err != nil {
			return err
		}
		l.hooks.notify(ctx, ev)
		l.stats.Resolved++
		l.tel.Resolved(ctx, string(t))
	}

	if err := l.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save %s %v: %w", t, realID, err)
	}
	return nil
}
