package deserializer

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/linker"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

// owning is a has-one reference seen on an owner. The foreign key lives on
// the child, so it is written once the input is drained.
type owning struct {
	owner models.SurrogateID
	child models.TypeTag
	id    models.SurrogateID
	field string
}

type attachment struct {
	field string
	ids   []models.SurrogateID
}

// run is the state of one Import call.
type run struct {
	d       *Deserializer
	link    *linker.Linker
	res     Result
	pending []owning
}

func (r *run) fragment(ctx context.Context, f models.Fragment) error {
	for i, e := range f.Records {
		if err := r.entity(ctx, f.Type, e); err != nil {
			return fmt.Errorf("%s record %d: %w", f.Type, i, err)
		}
	}
	return nil
}

func (r *run) entity(ctx context.Context, t models.TypeTag, e models.Entity) error {
	d := r.d
	id, ok := e.ID(d.prefix)
	if !ok {
		return fmt.Errorf("%w: missing or invalid %s", constants.ErrMalformedInput, models.IDField(d.prefix))
	}

	rules, ok, err := d.blueprints.Resolve(ctx, blueprint.Input{
		Mode:     blueprint.Deserializing,
		Type:     t,
		Entity:   e,
		Bindings: r.link.Bindings(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if !ok {
		r.res.Skipped++
		d.log.Debug("skipping entity", "type", string(t), "id", id.String())
		return nil
	}

	rec, adopted, err := r.record(ctx, t, e)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}

	var attachments []attachment
	for _, rule := range rules {
		field := rule.FieldName()
		v, present := e[field]
		if !present {
			continue
		}
		rel, isRel := d.store.Relation(t, field)
		if !isRel {
			if err := r.scalar(ctx, rec, id, rule, e, v); err != nil {
				return fmt.Errorf("%s.%s: %w", id, field, err)
			}
			continue
		}
		a, err := r.relation(ctx, rec, id, field, rel, v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", id, field, err)
		}
		if a != nil {
			attachments = append(attachments, *a)
		}
	}

	if err := d.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	if err := r.link.Bind(ctx, id, rec.ID()); err != nil {
		return err
	}
	if adopted {
		r.res.Adopted++
	} else {
		r.res.Created++
	}
	d.tel.Imported(ctx, string(t))

	for _, a := range attachments {
		for _, child := range a.ids {
			if _, err := r.link.Attach(ctx, rec, id, a.field, child); err != nil {
				return fmt.Errorf("%s.%s: %w", id, a.field, err)
			}
		}
	}
	return nil
}

// record adopts the existing record named by the reserved key field, or
// makes a new one.
func (r *run) record(ctx context.Context, t models.TypeTag, e models.Entity) (store.Record, bool, error) {
	d := r.d
	key, ok := e[models.KeyField(d.prefix)]
	if !ok || key == nil {
		rec, err := d.factory.Make(ctx, t)
		if err != nil {
			return nil, false, fmt.Errorf("make %s: %w", t, err)
		}
		return rec, false, nil
	}

	rec, err := d.store.Find(ctx, t, key)
	if err != nil {
		return nil, false, fmt.Errorf("find %s %v: %w", t, key, err)
	}
	if rec == nil {
		return nil, false, fmt.Errorf("%w: %s %v", constants.ErrRecordNotFound, t, key)
	}
	return rec, true, nil
}

// scalar writes v and routes every surrogate id its match rules find
// through the linker.
func (r *run) scalar(ctx context.Context, rec store.Record, owner models.SurrogateID, rule blueprint.Rule, e models.Entity, v any) error {
	rec.Set(rule.FieldName(), models.Clone(v))

	rules := blueprint.RulesFor(rule, func(field string) any { return e[field] })
	if len(rules) == 0 {
		return nil
	}
	_, err := models.Transform(v, rule.FieldName(), func(path string, leaf any) (any, error) {
		m, ok := rules.Find(path)
		if !ok {
			return leaf, nil
		}
		refs, err := m.References(r.d.prefix, leaf)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if ref.Exact {
				_, err = r.link.Update(ctx, rec, owner, path, ref.ID)
			} else {
				_, err = r.link.SearchReplace(ctx, rec, owner, path, linker.Token{
					Text:    ref.ID.String(),
					Pattern: ref.Pattern,
					Prefix:  r.d.prefix,
				}, ref.ID)
			}
			if err != nil {
				return nil, err
			}
		}
		return leaf, nil
	})
	return err
}

// relation dispatches a relation value. Pivot members are returned to be
// attached once the record is saved.
func (r *run) relation(ctx context.Context, rec store.Record, owner models.SurrogateID, field string, rel store.Relation, v any) (*attachment, error) {
	prefix := r.d.prefix
	switch rel.Kind {
	case store.SingularOwned:
		if v == nil {
			rec.Set(rel.ForeignKey, nil)
			return nil, nil
		}
		id, ok := models.ParseSurrogateID(prefix, v)
		if !ok {
			return nil, fmt.Errorf("%w: expected surrogate id, got %v", constants.ErrMalformedInput, v)
		}
		_, err := r.link.Associate(ctx, rec, owner, field, id)
		return nil, err

	case store.PolymorphicSingular:
		if v == nil {
			rec.Set(rel.MorphType, nil)
			rec.Set(rel.MorphKey, nil)
			return nil, nil
		}
		ref, err := models.ParseRef(prefix, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", constants.ErrMalformedInput, err)
		}
		_, err = r.link.Morph(ctx, rec, owner, field, string(ref.Type), ref.ID)
		return nil, err

	case store.SingularOwning:
		if v == nil {
			return nil, nil
		}
		ref, err := models.ParseRef(prefix, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", constants.ErrMalformedInput, err)
		}
		child := rel.Target
		if child == "" {
			child = r.d.factory.Resolve(string(ref.Type))
		}
		r.pending = append(r.pending, owning{owner: owner, child: child, id: ref.ID, field: rel.ForeignKey})
		return nil, nil

	case store.Plural:
		return nil, nil

	case store.PluralPivot:
		list, ok := v.([]any)
		if !ok {
			if v == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: expected list of surrogate ids, got %T", constants.ErrMalformedInput, v)
		}
		a := &attachment{field: field}
		for _, item := range list {
			id, ok := models.ParseSurrogateID(prefix, item)
			if !ok {
				return nil, fmt.Errorf("%w: expected surrogate id, got %v", constants.ErrMalformedInput, item)
			}
			a.ids = append(a.ids, id)
		}
		return a, nil
	}
	return nil, fmt.Errorf("unsupported relation kind %s", rel.Kind)
}

// deferOwning queues the foreign key writes of has-one children. A child that was
// not imported is left alone.
func (r *run) deferOwning(ctx context.Context) error {
	for _, p := range r.pending {
		_, bound, err := r.link.Bindings().Lookup(ctx, p.id)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", p.id, err)
		}
		if !bound {
			r.d.log.Debug("has-one child not imported", "type", string(p.child), "id", p.id.String(), "owner", p.owner.String())
			continue
		}
		r.link.Defer(ctx, linker.Action{
			Kind:     linker.Update,
			Type:     p.child,
			Owner:    p.id,
			Field:    p.field,
			Referred: p.owner,
		})
	}
	r.pending = nil
	return nil
}
