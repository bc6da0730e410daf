package store

import (
	"fmt"

	"github.com/surrealdb/surrealport/pkg/models"
)

// RelationKind is the closed set of relation shapes a field can have.
type RelationKind int

const (
	// SingularOwned: this record holds ForeignKey pointing at one Target.
	SingularOwned RelationKind = iota + 1
	// SingularOwning: one Target record holds ForeignKey pointing back here.
	SingularOwning
	// Plural: many Target records hold ForeignKey pointing back here.
	Plural
	// PluralPivot: many Target records linked through Pivot.
	PluralPivot
	// PolymorphicSingular: MorphType names the target type, MorphKey its id.
	PolymorphicSingular
)

var relationKindNames = map[RelationKind]string{
	SingularOwned:       "singular_owned",
	SingularOwning:      "singular_owning",
	Plural:              "plural",
	PluralPivot:         "plural_pivot",
	PolymorphicSingular: "polymorphic_singular",
}

func (k RelationKind) String() string {
	if s, ok := relationKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// ParseRelationKind accepts the snake_case names used in schema files, plus
// the common ORM aliases.
func ParseRelationKind(s string) (RelationKind, error) {
	switch s {
	case "singular_owned", "belongs_to":
		return SingularOwned, nil
	case "singular_owning", "has_one":
		return SingularOwning, nil
	case "plural", "has_many":
		return Plural, nil
	case "plural_pivot", "many_to_many", "belongs_to_many":
		return PluralPivot, nil
	case "polymorphic_singular", "morph_to":
		return PolymorphicSingular, nil
	}
	return 0, fmt.Errorf("unknown relation kind %q", s)
}

// Relation describes one relation field.
type Relation struct {
	Kind   RelationKind
	Target models.TypeTag

	// ForeignKey is the column on this record for SingularOwned and the
	// column on Target for SingularOwning and Plural.
	ForeignKey string

	// MorphType and MorphKey are the discriminator and key columns of a
	// PolymorphicSingular relation.
	MorphType string
	MorphKey  string

	// Pivot is the join table of a PluralPivot relation; PivotOwnerKey
	// references this record and PivotTargetKey references Target.
	Pivot          string
	PivotOwnerKey  string
	PivotTargetKey string
}

// Validate checks that the columns the kind needs are set.
func (r Relation) Validate() error {
	switch r.Kind {
	case SingularOwned, SingularOwning, Plural:
		if r.Target == "" {
			return fmt.Errorf("%s relation missing target", r.Kind)
		}
		if r.ForeignKey == "" {
			return fmt.Errorf("%s relation missing foreign key", r.Kind)
		}
	case PluralPivot:
		if r.Target == "" {
			return fmt.Errorf("%s relation missing target", r.Kind)
		}
		if r.Pivot == "" || r.PivotOwnerKey == "" || r.PivotTargetKey == "" {
			return fmt.Errorf("%s relation missing pivot columns", r.Kind)
		}
	case PolymorphicSingular:
		if r.MorphType == "" || r.MorphKey == "" {
			return fmt.Errorf("%s relation missing morph columns", r.Kind)
		}
	default:
		return fmt.Errorf("invalid relation kind %d", int(r.Kind))
	}
	return nil
}
