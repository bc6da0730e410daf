package serializer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/surrealdb/surrealport/internal/mock"
	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/serializer"
	"github.com/surrealdb/surrealport/pkg/store"
)

func seeded(t *testing.T) (store.Store, *mock.Blog) {
	t.Helper()
	s := mock.Store()
	blog, err := mock.Seed(context.Background(), s)
	require.NoError(t, err)
	return s, blog
}

func byField(t *testing.T, g *models.Graph, typ models.TypeTag, field string, value any) models.Entity {
	t.Helper()
	for _, e := range g.Records(typ) {
		if e[field] == value {
			return e
		}
	}
	require.Failf(t, "entity not found", "%s with %s=%v", typ, field, value)
	return nil
}

func TestSerialize(t *testing.T) {
	ctx := context.Background()
	s, blog := seeded(t)

	g, err := serializer.New(s, mock.Blueprints()).Serialize(ctx, blog.Author)
	require.NoError(t, err)

	assert.Equal(t, map[models.TypeTag]int{
		mock.Author:  1,
		mock.Profile: 1,
		mock.Post:    2,
		mock.Comment: 3,
		mock.Tag:     2,
		mock.Image:   1,
	}, g.Counts())

	author := g.Records(mock.Author)[0]
	authorID := author["@id"]
	profile := g.Records(mock.Profile)[0]
	first := byField(t, g, mock.Post, "title", "First")
	second := byField(t, g, mock.Post, "title", "Second")
	image := g.Records(mock.Image)[0]

	t.Run("NoRealIDs", func(t *testing.T) {
		for _, typ := range g.Types() {
			for _, e := range g.Records(typ) {
				assert.NotContains(t, e, "id")
				assert.NotContains(t, e, "author_id")
				assert.True(t, models.IsSurrogateID("@", e["@id"].(string)))
			}
		}
	})

	t.Run("SingularOwning", func(t *testing.T) {
		assert.Equal(t, []any{"profile", profile["@id"]}, author["profile"])
		assert.Equal(t, authorID, profile["author"])
	})

	t.Run("PluralEmitsNothingOnParent", func(t *testing.T) {
		assert.NotContains(t, author, "posts")
		assert.NotContains(t, first, "comments")
		for _, c := range g.Records(mock.Comment) {
			assert.Equal(t, authorID, c["author"])
			assert.Contains(t, []any{first["@id"], second["@id"]}, c["post"])
		}
	})

	t.Run("SingularOwned", func(t *testing.T) {
		assert.Equal(t, authorID, first["author"])
		assert.Equal(t, authorID, second["author"])
	})

	t.Run("PluralPivot", func(t *testing.T) {
		tags := g.Records(mock.Tag)
		want := []any{tags[0]["@id"], tags[1]["@id"]}
		assert.Equal(t, want, first["tags"])
		assert.Equal(t, want, second["tags"])
	})

	t.Run("PolymorphicSingular", func(t *testing.T) {
		assert.Equal(t, []any{"image", image["@id"]}, first["cover"])
		assert.Nil(t, second["cover"])
	})

	t.Run("MatchRules", func(t *testing.T) {
		assert.Equal(t, `<a href="#/links/`+second["@id"].(string)+`">next</a> and <a href="#/links/`+first["@id"].(string)+`">self</a>`, first["body"])
		assert.Equal(t, `<a href="#/links/`+first["@id"].(string)+`">back</a>`, second["body"])
		assert.Equal(t, map[string]any{"related": second["@id"]}, first["meta"])
		assert.Equal(t, map[string]any{
			"related":  first["@id"],
			"see_also": []any{first["@id"], 0},
		}, second["meta"])
	})

	t.Run("SourceUntouched", func(t *testing.T) {
		got, err := s.Find(ctx, mock.Post, blog.Posts[1].ID())
		require.NoError(t, err)
		meta := got.Get("meta").(map[string]any)
		assert.Equal(t, blog.Posts[0].ID(), meta["related"])
	})
}

func TestSerializeDedup(t *testing.T) {
	ctx := context.Background()
	s, blog := seeded(t)
	ser := serializer.New(s, mock.Blueprints())

	t.Run("Diamond", func(t *testing.T) {
		// Both posts reach the same two tags.
		g, err := ser.SerializeAll(ctx, blog.Posts[0], blog.Posts[1])
		require.NoError(t, err)
		assert.Len(t, g.Records(mock.Tag), 2)
		assert.Len(t, g.Records(mock.Post), 2)
		assert.Len(t, g.Records(mock.Author), 1)
	})

	t.Run("SameRootTwice", func(t *testing.T) {
		g, err := ser.SerializeAll(ctx, blog.Author, blog.Author)
		require.NoError(t, err)
		assert.Len(t, g.Records(mock.Author), 1)
	})

	t.Run("FreshRegistryPerCall", func(t *testing.T) {
		a, err := ser.Serialize(ctx, blog.Tags[0])
		require.NoError(t, err)
		b, err := ser.Serialize(ctx, blog.Tags[0])
		require.NoError(t, err)
		assert.Equal(t, "@1", a.Records(mock.Tag)[0]["@id"])
		assert.Equal(t, a.Records(mock.Tag), b.Records(mock.Tag))
	})

	t.Run("NoRoot", func(t *testing.T) {
		_, err := ser.SerializeAll(ctx)
		assert.ErrorIs(t, err, serializer.ErrNoRoot)
	})
}

func TestSerializeBlueprints(t *testing.T) {
	ctx := context.Background()
	s, blog := seeded(t)

	t.Run("VetoedRoot", func(t *testing.T) {
		bp := mock.Blueprints().Override(mock.Author, blueprint.Skip)
		g, err := serializer.New(s, bp).Serialize(ctx, blog.Author)
		require.NoError(t, err)
		assert.Equal(t, 0, g.Len())
	})

	t.Run("VetoedChildren", func(t *testing.T) {
		bp := mock.Blueprints().Override(mock.Comment, func(_ context.Context, in blueprint.Input) ([]blueprint.Rule, bool, error) {
			assert.Equal(t, blueprint.Serializing, in.Mode)
			assert.NotNil(t, in.Registry)
			return nil, in.Record.Get("text") != "comment 1", nil
		})
		g, err := serializer.New(s, bp).Serialize(ctx, blog.Author)
		require.NoError(t, err)
		assert.Len(t, g.Records(mock.Comment), 2)
	})

	t.Run("MissingBlueprint", func(t *testing.T) {
		bp := blueprint.NewSet().
			Define(mock.Post, blueprint.Field{Name: "title"}, blueprint.Field{Name: "cover"}, blueprint.Field{Name: "author"})
		g, err := serializer.New(s, bp).Serialize(ctx, blog.Posts[0])
		require.NoError(t, err)
		assert.Equal(t, []models.TypeTag{mock.Post}, g.Types())
		post := g.Records(mock.Post)[0]
		assert.NotContains(t, post, "cover")
		assert.NotContains(t, post, "author")
	})

	t.Run("OverrideSelectsFields", func(t *testing.T) {
		bp := mock.Blueprints().Override(mock.Author, blueprint.Static(blueprint.Field{Name: "name"}))
		g, err := serializer.New(s, bp).Serialize(ctx, blog.Author)
		require.NoError(t, err)
		assert.Equal(t, 1, g.Len())
		assert.Equal(t, models.Entity{"@id": "@1", "name": "Ada"}, g.Records(mock.Author)[0])
	})

	t.Run("ConditionalRules", func(t *testing.T) {
		bp := blueprint.NewSet().Define(mock.Post,
			blueprint.ConditionalFieldWithRules{
				Name:      "meta",
				Condition: "title",
				Cases: map[string]blueprint.MatchRules{
					"Second": {blueprint.Exact("meta.related", mock.Post)},
				},
			},
		)
		ser := serializer.New(s, bp)

		g, err := ser.Serialize(ctx, blog.Posts[1])
		require.NoError(t, err)
		meta := g.Records(mock.Post)[0]["meta"].(map[string]any)
		assert.Equal(t, "@2", meta["related"])

		g, err = ser.Serialize(ctx, blog.Posts[0])
		require.NoError(t, err)
		meta = g.Records(mock.Post)[0]["meta"].(map[string]any)
		assert.Equal(t, blog.Posts[1].ID(), meta["related"])
	})
}

func TestSerializeOptions(t *testing.T) {
	ctx := context.Background()
	s, blog := seeded(t)

	t.Run("Prefix", func(t *testing.T) {
		g, err := serializer.New(s, mock.Blueprints(), serializer.WithPrefix("~")).Serialize(ctx, blog.Posts[1])
		require.NoError(t, err)
		post := byField(t, g, mock.Post, "title", "Second")
		assert.NotContains(t, post, "@id")
		id, ok := post.ID("~")
		require.True(t, ok)
		assert.Equal(t, "~1", id.String())
	})

	t.Run("DependencyOrder", func(t *testing.T) {
		g, err := serializer.New(s, mock.Blueprints(), serializer.WithDependencyOrder()).Serialize(ctx, blog.Author)
		require.NoError(t, err)

		pos := make(map[models.TypeTag]int)
		for i, typ := range g.Types() {
			pos[typ] = i
		}
		require.Len(t, pos, 6)
		assert.Less(t, pos[mock.Author], pos[mock.Profile])
		assert.Less(t, pos[mock.Author], pos[mock.Post])
		assert.Less(t, pos[mock.Post], pos[mock.Comment])
		assert.Less(t, pos[mock.Tag], pos[mock.Post])
		assert.Less(t, pos[mock.Image], pos[mock.Post])
	})

	t.Run("Tracing", func(t *testing.T) {
		rec := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

		_, err := serializer.New(s, mock.Blueprints(), serializer.WithTracerProvider(tp)).Serialize(ctx, blog.Author)
		require.NoError(t, err)

		spans := rec.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "surrealport.serialize", spans[0].Name())
	})
}
