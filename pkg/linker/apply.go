package linker

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

func (l *Linker) relation(a Action, kind store.RelationKind) (store.Relation, error) {
	rel, ok := l.store.Relation(a.Type, a.Field)
	if !ok {
		return store.Relation{}, fmt.Errorf("%s: %s.%s is not a relation", a.Kind, a.Type, a.Field)
	}
	if rel.Kind != kind {
		return store.Relation{}, fmt.Errorf("%s: %s.%s is %s, want %s", a.Kind, a.Type, a.Field, rel.Kind, kind)
	}
	return rel, nil
}

func (l *Linker) apply(ctx context.Context, r store.Record, a Action, realID any) error {
	switch a.Kind {
	case Update:
		return setPath(r, a.Field, realID)

	case Associate:
		rel, err := l.relation(a, store.SingularOwned)
		if err != nil {
			return err
		}
		r.Set(rel.ForeignKey, realID)
		return nil

	case Attach:
		if _, err := l.relation(a, store.PluralPivot); err != nil {
			return err
		}
		if err := l.store.Attach(ctx, r, a.Field, realID); err != nil {
			return fmt.Errorf("attach %s.%s: %w", a.Type, a.Field, err)
		}
		return nil

	case Morph:
		rel, err := l.relation(a, store.PolymorphicSingular)
		if err != nil {
			return err
		}
		r.Set(rel.MorphType, a.ReferredType)
		r.Set(rel.MorphKey, realID)
		return nil

	case SearchReplace:
		col, rest := splitColumn(a.Field)
		current := r.Get(col)
		text, ok := current.(string)
		if rest != "" {
			v, found := models.Lookup(current, rest)
			if !found {
				return fmt.Errorf("search_replace: %s.%s not found", a.Type, a.Field)
			}
			text, ok = v.(string)
		}
		if !ok {
			return fmt.Errorf("search_replace: %s.%s is not text", a.Type, a.Field)
		}
		value := blueprint.FormatID(realID)
		if a.Token.Pattern == "" {
			return setPath(r, a.Field, blueprint.ReplaceToken(text, a.Token.Text, value))
		}
		out, err := blueprint.ReplaceMatches(text, a.Token.Pattern, a.Token.Prefix, a.Token.Text, value)
		if err != nil {
			return fmt.Errorf("search_replace: %s.%s: %w", a.Type, a.Field, err)
		}
		return setPath(r, a.Field, out)
	}
	return fmt.Errorf("unknown action kind %d", int(a.Kind))
}

// setPath writes value at a dot path whose first segment is a column.
func setPath(r store.Record, path string, value any) error {
	col, rest := splitColumn(path)
	if rest == "" {
		r.Set(col, value)
		return nil
	}
	updated, err := models.Assign(models.Clone(r.Get(col)), rest, value)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", r.Type(), path, err)
	}
	r.Set(col, updated)
	return nil
}

func splitColumn(path string) (string, string) {
	col, rest, _ := strings.Cut(path, models.PathSeparator)
	return col, rest
}
