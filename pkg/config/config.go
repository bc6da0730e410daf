// Package config loads a store schema and the blueprints traversing it from
// a YAML file.
//
//	prefix: "@"
//	morphs:
//	  picture: image
//	types:
//	  post:
//	    table: posts
//	    relations:
//	      author: {kind: belongs_to, target: author, foreign_key: author_id}
//	      cover:  {kind: morph_to, morph_type: cover_type, morph_key: cover_id}
//	    blueprint:
//	      - title
//	      - author
//	      - [body, {body: {'#/links/(\d+)': post}}]
//	    skip_when: 'mode == "serializing" && record.title == "draft"'
//
// Blueprint entries use the list forms blueprint.ParseRule accepts. Match
// rules apply in the order they are written.
// skip_when is a CEL expression; when it evaluates to true the record is
// not traversed.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

var ErrNoTypes = errors.New("config declares no types")

// File is the decoded YAML document.
type File struct {
	Prefix string                `yaml:"prefix,omitempty"`
	Morphs map[string]string     `yaml:"morphs,omitempty"`
	Types  map[string]TypeConfig `yaml:"types"`
}

// TypeConfig describes one record type.
type TypeConfig struct {
	Table      string                    `yaml:"table,omitempty"`
	PrimaryKey string                    `yaml:"primary_key,omitempty"`
	Relations  map[string]RelationConfig `yaml:"relations,omitempty"`
	// Blueprint is nil when the type is not traversed at all.
	Blueprint *yaml.Node `yaml:"blueprint,omitempty"`
	SkipWhen  string     `yaml:"skip_when,omitempty"`
}

// RelationConfig describes one relation field.
type RelationConfig struct {
	Kind           string `yaml:"kind"`
	Target         string `yaml:"target,omitempty"`
	ForeignKey     string `yaml:"foreign_key,omitempty"`
	MorphType      string `yaml:"morph_type,omitempty"`
	MorphKey       string `yaml:"morph_key,omitempty"`
	Pivot          string `yaml:"pivot,omitempty"`
	PivotOwnerKey  string `yaml:"pivot_owner_key,omitempty"`
	PivotTargetKey string `yaml:"pivot_target_key,omitempty"`
}

// Config is a loaded, validated File.
type Config struct {
	Prefix     string
	Schema     store.Schema
	Blueprints *blueprint.Set
	Morphs     map[string]models.TypeTag
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML document.
func Parse(data []byte) (*Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return f.Build()
}

// Build turns the decoded document into a schema and blueprint set.
func (f File) Build() (*Config, error) {
	if len(f.Types) == 0 {
		return nil, ErrNoTypes
	}

	cfg := &Config{
		Prefix:     f.Prefix,
		Schema:     make(store.Schema, len(f.Types)),
		Blueprints: blueprint.NewSet(),
		Morphs:     make(map[string]models.TypeTag, len(f.Morphs)),
	}
	if cfg.Prefix == "" {
		cfg.Prefix = models.DefaultPrefix
	}
	for name, t := range f.Morphs {
		cfg.Morphs[name] = models.TypeTag(t)
	}

	names := make([]string, 0, len(f.Types))
	for name := range f.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := f.Types[name]
		t := models.TypeTag(name)

		ts := store.TypeSchema{Table: tc.Table, PrimaryKey: tc.PrimaryKey}
		if len(tc.Relations) > 0 {
			ts.Relations = make(map[string]store.Relation, len(tc.Relations))
		}
		for field, rc := range tc.Relations {
			rel, err := rc.relation()
			if err != nil {
				return nil, fmt.Errorf("type %s relation %s: %w", name, field, err)
			}
			ts.Relations[field] = rel
		}
		cfg.Schema[t] = ts

		if tc.Blueprint == nil || tc.Blueprint.ShortTag() == "!!null" {
			continue
		}
		rules, err := parseBlueprint(tc.Blueprint)
		if err != nil {
			return nil, fmt.Errorf("type %s blueprint: %w", name, err)
		}
		if tc.SkipWhen == "" {
			cfg.Blueprints.Define(t, rules...)
			continue
		}
		fn, err := SkipWhen(tc.SkipWhen, rules)
		if err != nil {
			return nil, fmt.Errorf("type %s skip_when: %w", name, err)
		}
		cfg.Blueprints.Override(t, fn)
	}

	if err := cfg.Schema.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseBlueprint(n *yaml.Node) ([]blueprint.Rule, error) {
	v, err := nodeValue(n)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: blueprint must be a list, got %T", constants.ErrInvalidRuleShape, v)
	}
	return blueprint.ParseRules(list)
}

// nodeValue decodes n like yaml.Unmarshal into any, except that mappings
// become blueprint.OrderedMaps keeping document order.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(blueprint.OrderedMap, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, blueprint.Pair{Key: n.Content[i].Value, Value: v})
		}
		return out, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	return v, nil
}

func (rc RelationConfig) relation() (store.Relation, error) {
	kind, err := store.ParseRelationKind(rc.Kind)
	if err != nil {
		return store.Relation{}, err
	}
	rel := store.Relation{
		Kind:           kind,
		Target:         models.TypeTag(rc.Target),
		ForeignKey:     rc.ForeignKey,
		MorphType:      rc.MorphType,
		MorphKey:       rc.MorphKey,
		Pivot:          rc.Pivot,
		PivotOwnerKey:  rc.PivotOwnerKey,
		PivotTargetKey: rc.PivotTargetKey,
	}
	return rel, rel.Validate()
}

// Factory returns a factory over s that knows the configured morph aliases.
func (c *Config) Factory(s store.Store) *store.MorphFactory {
	return store.NewFactory(s, c.Morphs)
}
