package store

import (
	"fmt"
	"sort"

	"github.com/surrealdb/surrealport/pkg/models"
)

// DefaultPrimaryKey is the primary key column used when a type does not name
// one.
const DefaultPrimaryKey = "id"

// TypeSchema describes the table behind one record type.
type TypeSchema struct {
	Table      string
	PrimaryKey string
	Relations  map[string]Relation
}

// Schema maps record types to their tables and relations.
type Schema map[models.TypeTag]TypeSchema

// Table returns the table name of t; the type tag itself when unset.
func (s Schema) Table(t models.TypeTag) string {
	if ts, ok := s[t]; ok && ts.Table != "" {
		return ts.Table
	}
	return string(t)
}

// PrimaryKey returns the primary key column of t.
func (s Schema) PrimaryKey(t models.TypeTag) string {
	if ts, ok := s[t]; ok && ts.PrimaryKey != "" {
		return ts.PrimaryKey
	}
	return DefaultPrimaryKey
}

// Relation returns the relation declared on field of t.
func (s Schema) Relation(t models.TypeTag, field string) (Relation, bool) {
	ts, ok := s[t]
	if !ok {
		return Relation{}, false
	}
	rel, ok := ts.Relations[field]
	return rel, ok
}

// Types returns the declared types sorted by name.
func (s Schema) Types() []models.TypeTag {
	out := make([]models.TypeTag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks every relation and that relation targets are declared.
func (s Schema) Validate() error {
	for _, t := range s.Types() {
		for field, rel := range s[t].Relations {
			if err := rel.Validate(); err != nil {
				return fmt.Errorf("%s.%s: %w", t, field, err)
			}
			if rel.Target != "" {
				if _, ok := s[rel.Target]; !ok {
					return fmt.Errorf("%s.%s: unknown target type %s", t, field, rel.Target)
				}
			}
		}
	}
	return nil
}
