package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealport/internal/mock"
	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/config"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/deserializer"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/serializer"
	"github.com/surrealdb/surrealport/pkg/store/memstore"
)

const blogYAML = `
prefix: "~"
morphs:
  picture: image
types:
  author:
    table: authors
    relations:
      profile: {kind: has_one, target: profile, foreign_key: author_id}
      posts: {kind: has_many, target: post, foreign_key: author_id}
    blueprint: [name, profile, posts]
  profile:
    table: profiles
    relations:
      author: {kind: belongs_to, target: author, foreign_key: author_id}
    blueprint: [bio, author]
  post:
    table: posts
    relations:
      author: {kind: belongs_to, target: author, foreign_key: author_id}
      comments: {kind: has_many, target: comment, foreign_key: post_id}
      tags:
        kind: many_to_many
        target: tag
        pivot: post_tag
        pivot_owner_key: post_id
        pivot_target_key: tag_id
      cover: {kind: morph_to, morph_type: cover_type, morph_key: cover_id}
    blueprint:
      - title
      - [body, {body: {'#/links/(\d+)': post}}]
      - [meta, {meta.related: post, '/^meta\.see_also\.\d+$/': post}]
      - author
      - comments
      - tags
      - cover
    skip_when: 'mode == "serializing" && has(record.title) && record.title == "Second"'
  comment:
    table: comments
    relations:
      post: {kind: belongs_to, target: post, foreign_key: post_id}
      author: {kind: belongs_to, target: author, foreign_key: author_id}
    blueprint: [text, post, author]
  tag:
    table: tags
    blueprint: [label]
  image:
    table: images
    blueprint: [url]
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blogYAML), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	t.Run("Schema", func(t *testing.T) {
		assert.Equal(t, mock.Schema(), cfg.Schema)
	})

	t.Run("Prefix", func(t *testing.T) {
		assert.Equal(t, "~", cfg.Prefix)
	})

	t.Run("Morphs", func(t *testing.T) {
		assert.Equal(t, map[string]models.TypeTag{"picture": mock.Image}, cfg.Morphs)
		f := cfg.Factory(mock.Store())
		assert.Equal(t, mock.Image, f.Resolve("picture"))
		assert.Equal(t, "picture", f.MorphName(mock.Image))
	})

	t.Run("Blueprints", func(t *testing.T) {
		for _, typ := range mock.Schema().Types() {
			assert.True(t, cfg.Blueprints.Has(typ), typ)
		}
		rules, ok, err := cfg.Blueprints.Resolve(context.Background(), blueprint.Input{
			Mode: blueprint.Deserializing, Type: mock.Tag,
		})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []blueprint.Rule{blueprint.Field{Name: "label"}}, rules)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestSkipWhen(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Parse([]byte(blogYAML))
	require.NoError(t, err)

	src := memstore.New(cfg.Schema)
	blog, err := mock.Seed(ctx, src)
	require.NoError(t, err)

	g, err := serializer.New(src, cfg.Blueprints, serializer.WithPrefix(cfg.Prefix)).Serialize(ctx, blog.Author)
	require.NoError(t, err)

	t.Run("SerializingSkipsMatch", func(t *testing.T) {
		posts := g.Records(mock.Post)
		require.Len(t, posts, 1)
		assert.Equal(t, "First", posts[0]["title"])
	})

	t.Run("DeserializingIgnoresMode", func(t *testing.T) {
		g := models.NewGraph()
		require.NoError(t, g.AddFragment("~", models.Fragment{Type: mock.Post, Records: []models.Entity{
			{"~id": "~1", "title": "Second"},
		}}))
		dst := memstore.New(cfg.Schema)
		res, err := deserializer.New(dst, cfg.Blueprints, deserializer.WithPrefix("~")).Import(ctx, deserializer.FromGraph(g))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
	})

	t.Run("NotBool", func(t *testing.T) {
		_, err := config.SkipWhen(`record.title`, nil)
		assert.Error(t, err)
	})

	t.Run("Syntax", func(t *testing.T) {
		_, err := config.SkipWhen(`mode ==`, nil)
		assert.Error(t, err)
	})

	t.Run("EvalError", func(t *testing.T) {
		fn, err := config.SkipWhen(`record.missing == 1`, nil)
		require.NoError(t, err)
		_, _, err = fn(ctx, blueprint.Input{Mode: blueprint.Deserializing, Type: mock.Tag, Entity: models.Entity{}})
		assert.Error(t, err)
	})
}

func TestMatchRuleOrder(t *testing.T) {
	find := func(t *testing.T, doc, path string) models.TypeTag {
		t.Helper()
		cfg, err := config.Parse([]byte(doc))
		require.NoError(t, err)
		rules, ok, err := cfg.Blueprints.Resolve(context.Background(), blueprint.Input{
			Mode: blueprint.Serializing, Type: "note",
		})
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, rules, 1)
		m, ok := blueprint.RulesFor(rules[0], func(string) any { return nil }).Find(path)
		require.True(t, ok)
		return m.Target
	}

	t.Run("ExactFirst", func(t *testing.T) {
		doc := `
types:
  user: {}
  tag: {}
  note:
    blueprint:
      - [meta, {meta.author: user, '/^meta\..*$/': tag}]
`
		assert.Equal(t, models.TypeTag("user"), find(t, doc, "meta.author"))
		assert.Equal(t, models.TypeTag("tag"), find(t, doc, "meta.other"))
	})

	t.Run("RegexFirst", func(t *testing.T) {
		doc := `
types:
  user: {}
  tag: {}
  note:
    blueprint:
      - [meta, {'/^meta\..*$/': tag, meta.author: user}]
`
		assert.Equal(t, models.TypeTag("tag"), find(t, doc, "meta.author"))
	})

	t.Run("ContentPatterns", func(t *testing.T) {
		doc := `
types:
  user: {}
  tag: {}
  note:
    blueprint:
      - [body, {body: {'#/users/(\d+)': user, '#/tags/(\d+)': tag}}]
`
		cfg, err := config.Parse([]byte(doc))
		require.NoError(t, err)
		rules, _, err := cfg.Blueprints.Resolve(context.Background(), blueprint.Input{Mode: blueprint.Serializing, Type: "note"})
		require.NoError(t, err)
		m, ok := blueprint.RulesFor(rules[0], nil).Find("body")
		require.True(t, ok)
		assert.Equal(t, []blueprint.ContentRule{
			{Pattern: `#/users/(\d+)`, Target: "user"},
			{Pattern: `#/tags/(\d+)`, Target: "tag"},
		}, m.Content)
	})
}

func TestParseErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"Empty":         `prefix: "@"`,
		"BadYAML":       "types: [",
		"UnknownKind":   "types: {a: {relations: {b: {kind: owns, target: a}}}}",
		"UnknownTarget": "types: {a: {relations: {b: {kind: belongs_to, target: z, foreign_key: z_id}}}}",
		"MissingKey":    "types: {a: {relations: {b: {kind: belongs_to, target: a}}}}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}

	t.Run("BlueprintNotList", func(t *testing.T) {
		_, err := config.Parse([]byte("types: {a: {blueprint: {b: c}}}"))
		assert.ErrorIs(t, err, constants.ErrInvalidRuleShape)
	})

	t.Run("BadRule", func(t *testing.T) {
		_, err := config.Parse([]byte("types: {a: {blueprint: [[]]}}"))
		assert.ErrorIs(t, err, constants.ErrInvalidRuleShape)
	})

	t.Run("NoTypes", func(t *testing.T) {
		_, err := config.Parse([]byte(`morphs: {a: b}`))
		assert.ErrorIs(t, err, config.ErrNoTypes)
	})
}
