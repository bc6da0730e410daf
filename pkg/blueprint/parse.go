package blueprint

import (
	"fmt"
	"sort"

	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
)

// ParseRule builds a rule from its untyped list form, as found in decoded
// YAML or JSON:
//
//	"title"                                   Field
//	["meta", {path: Type, ...}]               FieldWithRules
//	["body", "format", {value: {path: ...}}]  ConditionalFieldWithRules
//
// A match rule value is either a type name (exact path substitution) or a
// map of content pattern to type name. Matchers apply in declaration order
// when the maps are OrderedMaps; plain Go maps carry no order and are
// applied by sorted key.
func ParseRule(v any) (Rule, error) {
	switch r := v.(type) {
	case string:
		return Field{Name: r}, nil
	case Rule:
		return r, nil
	case []any:
		return parseTuple(r)
	case []string:
		items := make([]any, len(r))
		for i, s := range r {
			items[i] = s
		}
		return parseTuple(items)
	}
	return nil, fmt.Errorf("%w: unsupported rule %T", constants.ErrInvalidRuleShape, v)
}

// ParseRules parses every entry of list.
func ParseRules(list []any) ([]Rule, error) {
	out := make([]Rule, 0, len(list))
	for i, v := range list {
		r, err := ParseRule(v)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, Validate(out)
}

func parseTuple(items []any) (Rule, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty rule", constants.ErrInvalidRuleShape)
	}
	name, ok := items[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: field name must be a string, got %T", constants.ErrInvalidRuleShape, items[0])
	}

	switch len(items) {
	case 1:
		return Field{Name: name}, nil
	case 2:
		rules, err := ParseMatchRules(items[1])
		if err != nil {
			return nil, err
		}
		return FieldWithRules{Name: name, Rules: rules}, nil
	case 3:
		cond, ok := items[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: condition must be a string, got %T", constants.ErrInvalidRuleShape, items[1])
		}
		cases, err := toMap(items[2])
		if err != nil {
			return nil, err
		}
		out := ConditionalFieldWithRules{Name: name, Condition: cond, Cases: make(map[string]MatchRules, len(cases))}
		for value, raw := range cases {
			rules, err := ParseMatchRules(raw)
			if err != nil {
				return nil, fmt.Errorf("case %q: %w", value, err)
			}
			out.Cases[value] = rules
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: rule %q has %d elements", constants.ErrInvalidRuleShape, name, len(items))
}

// Pair is one entry of an OrderedMap.
type Pair struct {
	Key   string
	Value any
}

// OrderedMap is a map that keeps the order its entries were declared in.
type OrderedMap []Pair

// ParseMatchRules builds match rules from a {path: type | {pattern: type}} map.
func ParseMatchRules(v any) (MatchRules, error) {
	pairs, err := toPairs(v)
	if err != nil {
		return nil, err
	}
	out := make(MatchRules, 0, len(pairs))
	for _, p := range pairs {
		switch target := p.Value.(type) {
		case string:
			out = append(out, Exact(p.Key, models.TypeTag(target)))
		default:
			patterns, err := toPairs(target)
			if err != nil {
				return nil, fmt.Errorf("matcher %q: %w", p.Key, err)
			}
			mt := Matcher{Path: p.Key}
			for _, c := range patterns {
				t, ok := c.Value.(string)
				if !ok {
					return nil, fmt.Errorf("%w: content pattern %q must map to a type name", constants.ErrInvalidRuleShape, c.Key)
				}
				mt.Content = append(mt.Content, ContentRule{Pattern: c.Key, Target: models.TypeTag(t)})
			}
			out = append(out, mt)
		}
	}
	return out, out.validate()
}

func toMap(v any) (map[string]any, error) {
	pairs, err := toPairs(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out, nil
}

func toPairs(v any) (OrderedMap, error) {
	switch m := v.(type) {
	case OrderedMap:
		return m, nil
	case map[string]any:
		return sortedPairs(m), nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return sortedPairs(out), nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[fmt.Sprint(k)] = s
		}
		return sortedPairs(out), nil
	}
	return nil, fmt.Errorf("%w: expected a map, got %T", constants.ErrInvalidRuleShape, v)
}

func sortedPairs(m map[string]any) OrderedMap {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(OrderedMap, 0, len(keys))
	for _, k := range keys {
		out = append(out, Pair{Key: k, Value: m[k]})
	}
	return out
}
