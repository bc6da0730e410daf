package serializer

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/registry"
	"github.com/surrealdb/surrealport/pkg/store"
)

type recordKey struct {
	typ models.TypeTag
	id  models.SurrogateID
}

// walk is the state of one SerializeAll call.
type walk struct {
	s        *Serializer
	reg      *registry.Registry
	graph    *models.Graph
	visiting map[recordKey]bool
	deps     *dependencies
	// path is the chain of type(id).field hops from the root, for errors
	// and debug logs.
	path []string
}

func newWalk(s *Serializer) *walk {
	return &walk{
		s:        s,
		reg:      registry.New(s.prefix),
		graph:    models.NewGraph(),
		visiting: make(map[recordKey]bool),
		deps:     newDependencies(),
	}
}

func (w *walk) where() string {
	if len(w.path) == 0 {
		return "root"
	}
	return strings.Join(w.path, " > ")
}

// visit emits r unless already emitted and returns its surrogate id.
// emitted is false when r has no blueprint or its override vetoed it.
func (w *walk) visit(ctx context.Context, r store.Record) (models.SurrogateID, bool, error) {
	t := r.Type()
	rules, ok, err := w.s.blueprints.Resolve(ctx, blueprint.Input{
		Mode:     blueprint.Serializing,
		Type:     t,
		Record:   r,
		Registry: w.reg,
	})
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", w.where(), err)
	}
	if !ok {
		w.s.log.Debug("skipping record", "type", string(t), "id", r.ID(), "path", w.where())
		return "", false, nil
	}

	id := w.reg.ID(t, r.ID())
	key := recordKey{typ: t, id: id}
	if w.graph.Has(t, id) || w.visiting[key] {
		return id, true, nil
	}
	w.visiting[key] = true
	defer delete(w.visiting, key)

	e := models.Entity{models.IDField(w.s.prefix): id.String()}
	for _, rule := range rules {
		field := rule.FieldName()
		w.path = append(w.path, fmt.Sprintf("%s(%s).%s", t, id, field))
		err := w.field(ctx, r, rule, e)
		w.path = w.path[:len(w.path)-1]
		if err != nil {
			return "", false, err
		}
	}

	w.graph.Add(t, id, e)
	w.s.tel.Serialized(ctx, string(t))
	return id, true, nil
}

func (w *walk) field(ctx context.Context, r store.Record, rule blueprint.Rule, e models.Entity) error {
	field := rule.FieldName()
	rel, isRel := w.s.store.Relation(r.Type(), field)
	if !isRel {
		v, err := w.scalar(r, rule)
		if err != nil {
			return fmt.Errorf("%s: %w", w.where(), err)
		}
		e[field] = v
		return nil
	}

	related, err := w.s.store.Related(ctx, r, field)
	if err != nil {
		return fmt.Errorf("%s: load relation: %w", w.where(), err)
	}

	switch rel.Kind {
	case store.SingularOwned:
		if len(related) == 0 {
			e[field] = nil
			return nil
		}
		child := related[0]
		cid, emitted, err := w.visit(ctx, child)
		if err != nil {
			return err
		}
		if emitted {
			e[field] = cid.String()
			w.deps.add(child.Type(), r.Type())
		}

	case store.SingularOwning:
		if len(related) == 0 {
			return nil
		}
		child := related[0]
		cid, emitted, err := w.visit(ctx, child)
		if err != nil {
			return err
		}
		if emitted {
			e[field] = models.Ref{Type: child.Type(), ID: cid}.Tuple()
			w.deps.add(r.Type(), child.Type())
		}

	case store.Plural:
		for _, child := range related {
			if _, emitted, err := w.visit(ctx, child); err != nil {
				return err
			} else if emitted {
				w.deps.add(r.Type(), child.Type())
			}
		}

	case store.PluralPivot:
		ids := []any{}
		for _, child := range related {
			cid, emitted, err := w.visit(ctx, child)
			if err != nil {
				return err
			}
			if emitted {
				ids = append(ids, cid.String())
				w.deps.add(child.Type(), r.Type())
			}
		}
		e[field] = ids

	case store.PolymorphicSingular:
		if len(related) == 0 {
			e[field] = nil
			return nil
		}
		child := related[0]
		cid, emitted, err := w.visit(ctx, child)
		if err != nil {
			return err
		}
		if emitted {
			e[field] = models.Ref{Type: models.TypeTag(w.s.morphName(child.Type())), ID: cid}.Tuple()
			w.deps.add(child.Type(), r.Type())
		}

	default:
		return fmt.Errorf("%s: unsupported relation kind %s", w.where(), rel.Kind)
	}
	return nil
}

// scalar copies a column, running nested leaves through the rule's match
// rules when it has any.
func (w *walk) scalar(r store.Record, rule blueprint.Rule) (any, error) {
	field := rule.FieldName()
	v := r.Get(field)
	rules := blueprint.RulesFor(rule, r.Get)
	if len(rules) == 0 {
		return models.Clone(v), nil
	}
	return models.Transform(v, field, func(path string, leaf any) (any, error) {
		m, ok := rules.Find(path)
		if !ok {
			return leaf, nil
		}
		return m.Anonymize(leaf, w.reg.ID)
	})
}
