// Package blueprint declares which fields and relations of a record type take
// part in serialization and deserialization.
//
// A blueprint is an ordered list of rules. Each rule is one of
//
//   - [Field]: a plain column or a relation, copied or traversed as is
//   - [FieldWithRules]: a column whose nested values are run through [MatchRules]
//   - [ConditionalFieldWithRules]: like FieldWithRules, with the match rules
//     picked by the value of another column
//
// A [Set] holds static blueprints per type plus optional [Func] overrides.
// An override may veto traversal of a single record by returning false.
package blueprint

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/registry"
	"github.com/surrealdb/surrealport/pkg/store"
)

// Mode tells an override which direction is running.
type Mode int

const (
	Serializing Mode = iota + 1
	Deserializing
)

func (m Mode) String() string {
	switch m {
	case Serializing:
		return "serializing"
	case Deserializing:
		return "deserializing"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Rule is one entry of a blueprint.
type Rule interface {
	FieldName() string
	validate() error
}

// Field is a bare field or relation name.
type Field struct {
	Name string
}

// FieldWithRules traverses the nested value of Name with Rules.
type FieldWithRules struct {
	Name  string
	Rules MatchRules
}

// ConditionalFieldWithRules traverses Name with the rules of the case keyed
// by the value of the Condition column. Without a matching case the value is
// copied untouched.
type ConditionalFieldWithRules struct {
	Name      string
	Condition string
	Cases     map[string]MatchRules
}

func (f Field) FieldName() string                     { return f.Name }
func (f FieldWithRules) FieldName() string            { return f.Name }
func (f ConditionalFieldWithRules) FieldName() string { return f.Name }

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: empty field name", constants.ErrInvalidRuleShape)
	}
	return nil
}

func (f FieldWithRules) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: empty field name", constants.ErrInvalidRuleShape)
	}
	return f.Rules.validate()
}

func (f ConditionalFieldWithRules) validate() error {
	if f.Name == "" || f.Condition == "" {
		return fmt.Errorf("%w: conditional rule needs a field and a condition", constants.ErrInvalidRuleShape)
	}
	for _, rules := range f.Cases {
		if err := rules.validate(); err != nil {
			return err
		}
	}
	return nil
}

// RulesFor returns the match rules rule applies to its field, reading the
// condition column through get. A nil result means copy the value as is.
func RulesFor(rule Rule, get func(field string) any) MatchRules {
	switch r := rule.(type) {
	case FieldWithRules:
		return r.Rules
	case ConditionalFieldWithRules:
		v := get(r.Condition)
		if v == nil {
			return nil
		}
		return r.Cases[fmt.Sprint(v)]
	}
	return nil
}

// Validate checks the shape of every rule.
func Validate(rules []Rule) error {
	for i, r := range rules {
		if r == nil {
			return fmt.Errorf("%w: rule %d is nil", constants.ErrInvalidRuleShape, i)
		}
		if err := r.validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// Bindings is the read side of a binding table, as seen by overrides
// running during deserialization.
type Bindings interface {
	Lookup(ctx context.Context, id models.SurrogateID) (any, bool, error)
}

// Input is what an override receives.
//
// While serializing, Record is the record being walked and Registry the
// surrogate id registry of the call. While deserializing, Record is nil
// because nothing has been created yet, Entity is the incoming serialized
// record and Bindings the binding table built so far.
type Input struct {
	Mode     Mode
	Type     models.TypeTag
	Record   store.Record
	Entity   models.Entity
	Registry *registry.Registry
	Bindings Bindings
}

// Func overrides the static blueprint of a type. Returning ok == false vetoes
// traversal of that record.
type Func func(ctx context.Context, in Input) (rules []Rule, ok bool, err error)

// Static returns a Func that always yields rules.
func Static(rules ...Rule) Func {
	return func(context.Context, Input) ([]Rule, bool, error) {
		return rules, true, nil
	}
}

// Skip is a Func that vetoes every record.
func Skip(context.Context, Input) ([]Rule, bool, error) {
	return nil, false, nil
}

// Set holds the blueprints of every known type.
type Set struct {
	static    map[models.TypeTag][]Rule
	overrides map[models.TypeTag]Func
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		static:    make(map[models.TypeTag][]Rule),
		overrides: make(map[models.TypeTag]Func),
	}
}

// Define sets the static blueprint of t.
func (s *Set) Define(t models.TypeTag, rules ...Rule) *Set {
	s.static[t] = rules
	return s
}

// Override registers fn for t. It takes precedence over a static blueprint.
func (s *Set) Override(t models.TypeTag, fn Func) *Set {
	s.overrides[t] = fn
	return s
}

// Has reports whether t has a static blueprint or an override.
func (s *Set) Has(t models.TypeTag) bool {
	if _, ok := s.overrides[t]; ok {
		return true
	}
	_, ok := s.static[t]
	return ok
}

// Types returns every type with a static blueprint or an override.
func (s *Set) Types() []models.TypeTag {
	seen := make(map[models.TypeTag]bool)
	var out []models.TypeTag
	for t := range s.static {
		seen[t] = true
		out = append(out, t)
	}
	for t := range s.overrides {
		if !seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks every static blueprint.
func (s *Set) Validate() error {
	for t, rules := range s.static {
		if err := Validate(rules); err != nil {
			return fmt.Errorf("blueprint %s: %w", t, err)
		}
	}
	return nil
}

// Resolve returns the rules for in.Type. ok is false when the record must
// not be traversed: the override vetoed it or no blueprint exists.
func (s *Set) Resolve(ctx context.Context, in Input) ([]Rule, bool, error) {
	if fn, found := s.overrides[in.Type]; found {
		rules, ok, err := fn(ctx, in)
		if err != nil {
			return nil, false, fmt.Errorf("blueprint override %s: %w", in.Type, err)
		}
		if !ok {
			return nil, false, nil
		}
		if err := Validate(rules); err != nil {
			return nil, false, fmt.Errorf("blueprint override %s: %w", in.Type, err)
		}
		return rules, true, nil
	}

	rules, found := s.static[in.Type]
	if !found {
		return nil, false, nil
	}
	if err := Validate(rules); err != nil {
		return nil, false, fmt.Errorf("blueprint %s: %w", in.Type, err)
	}
	return rules, true, nil
}
