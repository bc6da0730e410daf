package deserializer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/surrealdb/surrealport/internal/mock"
	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/deserializer"
	"github.com/surrealdb/surrealport/pkg/linker"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/serializer"
	"github.com/surrealdb/surrealport/pkg/store"
	"github.com/surrealdb/surrealport/pkg/store/memstore"
)

const (
	root models.TypeTag = "Root"
	bar  models.TypeTag = "Bar"
)

func rootBar() (*memstore.Store, *blueprint.Set) {
	s := memstore.New(store.Schema{
		root: {Relations: map[string]store.Relation{
			"bar": {Kind: store.SingularOwned, Target: bar, ForeignKey: "bar_id"},
		}},
		bar: {},
	})
	bp := blueprint.NewSet().
		Define(root, blueprint.Field{Name: "bar"}).
		Define(bar, blueprint.Field{Name: "name"})
	return s, bp
}

func graph(fragments ...models.Fragment) *models.Graph {
	g := models.NewGraph()
	for _, f := range fragments {
		if err := g.AddFragment(models.DefaultPrefix, f); err != nil {
			panic(err)
		}
	}
	return g
}

func find(t *testing.T, s store.Store, typ models.TypeTag, id any) store.Record {
	t.Helper()
	r, err := s.Find(context.Background(), typ, id)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

func TestForwardReference(t *testing.T) {
	ctx := context.Background()
	s, bp := rootBar()

	g := graph(
		models.Fragment{Type: root, Records: []models.Entity{{"@id": "@1", "bar": "@4"}}},
		models.Fragment{Type: bar, Records: []models.Entity{{"@id": "@4", "name": "b"}}},
	)

	res, err := deserializer.New(s, bp).Import(ctx, deserializer.FromGraph(g))
	require.NoError(t, err)

	require.Contains(t, res.Bindings, models.SurrogateID("@1"))
	require.Contains(t, res.Bindings, models.SurrogateID("@4"))
	r := find(t, s, root, res.Bindings["@1"])
	assert.Equal(t, res.Bindings["@4"], r.Get("bar_id"))

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Stats.Deferred)
	assert.Equal(t, 1, res.Stats.Resolved)
}

func TestBackReference(t *testing.T) {
	ctx := context.Background()
	s, bp := rootBar()

	g := graph(
		models.Fragment{Type: bar, Records: []models.Entity{{"@id": "@4", "name": "b"}}},
		models.Fragment{Type: root, Records: []models.Entity{{"@id": "@1", "bar": "@4"}, {"@id": "@2", "bar": nil}}},
	)

	res, err := deserializer.New(s, bp).Import(ctx, deserializer.FromGraph(g))
	require.NoError(t, err)
	assert.Equal(t, res.Bindings["@4"], find(t, s, root, res.Bindings["@1"]).Get("bar_id"))
	assert.Nil(t, find(t, s, root, res.Bindings["@2"]).Get("bar_id"))
	assert.Equal(t, linker.Stats{Applied: 1}, res.Stats)
}

func TestSearchReplace(t *testing.T) {
	ctx := context.Background()
	s := mock.Store()

	g := graph(models.Fragment{Type: mock.Post, Records: []models.Entity{
		{"@id": "@1", "title": "index", "body": `<a href="#/links/@8">x</a> mid <a href="#/links/@9">y</a>`},
		{"@id": "@8", "title": "x"},
		{"@id": "@9", "title": "y", "body": `<a href="#/links/@1">up</a>`},
	}})

	ids, err := deserializer.New(s, mock.Blueprints()).Deserialize(ctx, g)
	require.NoError(t, err)

	index := find(t, s, mock.Post, ids["@1"])
	assert.Equal(t, `<a href="#/links/2">x</a> mid <a href="#/links/3">y</a>`, index.Get("body"))
	assert.Equal(t, `<a href="#/links/1">up</a>`, find(t, s, mock.Post, ids["@9"]).Get("body"))

	t.Run("PlainTextToken", func(t *testing.T) {
		s := mock.Store()
		g := graph(models.Fragment{Type: mock.Post, Records: []models.Entity{
			{"@id": "@1", "title": "a", "body": `ping @2 now, see <a href="#/links/@2">x</a>`},
			{"@id": "@2", "title": "b"},
		}})
		ids, err := deserializer.New(s, mock.Blueprints()).Deserialize(ctx, g)
		require.NoError(t, err)

		want := fmt.Sprintf(`ping @2 now, see <a href="#/links/%v">x</a>`, ids["@2"])
		assert.Equal(t, want, find(t, s, mock.Post, ids["@1"]).Get("body"))
	})
}

func TestExactMatchRules(t *testing.T) {
	ctx := context.Background()
	s := mock.Store()

	g := graph(models.Fragment{Type: mock.Post, Records: []models.Entity{
		{"@id": "@1", "title": "a", "meta": map[string]any{"related": "@2", "see_also": []any{"@2", 0, "@1"}}},
		{"@id": "@2", "title": "b", "meta": map[string]any{"related": "@1", "note": "@1"}},
	}})

	ids, err := deserializer.New(s, mock.Blueprints()).Deserialize(ctx, g)
	require.NoError(t, err)

	a := find(t, s, mock.Post, ids["@1"])
	assert.Equal(t, map[string]any{
		"related":  ids["@2"],
		"see_also": []any{ids["@2"], 0, ids["@1"]},
	}, a.Get("meta"))

	b := find(t, s, mock.Post, ids["@2"])
	assert.Equal(t, map[string]any{"related": ids["@1"], "note": "@1"}, b.Get("meta"))
}

func TestRelations(t *testing.T) {
	ctx := context.Background()
	s := mock.Store()

	g := graph(
		models.Fragment{Type: mock.Author, Records: []models.Entity{
			{"@id": "@1", "name": "Ada", "profile": []any{"profile", "@2"}},
		}},
		models.Fragment{Type: mock.Post, Records: []models.Entity{
			{"@id": "@3", "title": "p", "author": "@1", "tags": []any{"@5", "@6"}, "cover": []any{"image", "@7"}},
		}},
		models.Fragment{Type: mock.Profile, Records: []models.Entity{{"@id": "@2", "bio": "b"}}},
		models.Fragment{Type: mock.Tag, Records: []models.Entity{{"@id": "@5", "label": "go"}, {"@id": "@6", "label": "db"}}},
		models.Fragment{Type: mock.Image, Records: []models.Entity{{"@id": "@7", "url": "u"}}},
	)

	ids, err := deserializer.New(s, mock.Blueprints()).Deserialize(ctx, g)
	require.NoError(t, err)

	t.Run("SingularOwning", func(t *testing.T) {
		profile := find(t, s, mock.Profile, ids["@2"])
		assert.Equal(t, ids["@1"], profile.Get("author_id"))
	})

	t.Run("SingularOwned", func(t *testing.T) {
		post := find(t, s, mock.Post, ids["@3"])
		assert.Equal(t, ids["@1"], post.Get("author_id"))
	})

	t.Run("PluralPivot", func(t *testing.T) {
		assert.Equal(t, [][2]any{
			{ids["@3"], ids["@5"]},
			{ids["@3"], ids["@6"]},
		}, s.Pivot("post_tag"))
	})

	t.Run("PolymorphicSingular", func(t *testing.T) {
		post := find(t, s, mock.Post, ids["@3"])
		assert.Equal(t, "image", post.Get("cover_type"))
		assert.Equal(t, ids["@7"], post.Get("cover_id"))
	})
}

func TestBlueprintVeto(t *testing.T) {
	ctx := context.Background()

	t.Run("Unmapped", func(t *testing.T) {
		s := mock.Store()
		bp := mock.Blueprints().Override(mock.Tag, func(_ context.Context, in blueprint.Input) ([]blueprint.Rule, bool, error) {
			assert.Equal(t, blueprint.Deserializing, in.Mode)
			assert.Nil(t, in.Record)
			assert.NotNil(t, in.Bindings)
			return nil, in.Entity["label"] != "secret", nil
		})
		g := graph(
			models.Fragment{Type: mock.Tag, Records: []models.Entity{{"@id": "@1", "label": "secret"}, {"@id": "@2", "label": "go"}}},
			models.Fragment{Type: mock.Author, Records: []models.Entity{{"@id": "@3", "name": "Ada"}}},
		)

		res, err := deserializer.New(s, bp).Import(ctx, deserializer.FromGraph(g))
		require.NoError(t, err)
		assert.NotContains(t, res.Bindings, models.SurrogateID("@1"))
		assert.Contains(t, res.Bindings, models.SurrogateID("@2"))
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, s.Count(mock.Tag))
		assert.Equal(t, 2, s.Creates())
	})

	t.Run("NoBlueprint", func(t *testing.T) {
		s := mock.Store()
		g := graph(models.Fragment{Type: "unknown", Records: []models.Entity{{"@id": "@1", "x": 1}}})

		ids, err := deserializer.New(s, mock.Blueprints()).Deserialize(ctx, g)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, 0, s.Creates())
	})

	t.Run("ReferencedRecordVetoed", func(t *testing.T) {
		g := graph(
			models.Fragment{Type: mock.Post, Records: []models.Entity{{"@id": "@1", "title": "p", "tags": []any{"@2"}}}},
			models.Fragment{Type: mock.Tag, Records: []models.Entity{{"@id": "@2", "label": "go"}}},
		)
		bp := mock.Blueprints().Override(mock.Tag, blueprint.Skip)

		_, err := deserializer.New(mock.Store(), bp).Deserialize(ctx, g)
		assert.ErrorIs(t, err, constants.ErrUnresolvedReference)

		hooks := linker.NewHooks().Before(mock.Post, linker.Attach, func(context.Context, linker.Event) bool {
			return false
		})
		s := mock.Store()
		ids, err := deserializer.New(s, bp, deserializer.WithHooks(hooks)).Deserialize(ctx, g)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
		assert.Empty(t, s.Pivot("post_tag"))
	})

	t.Run("HasOneChildVetoed", func(t *testing.T) {
		s := mock.Store()
		bp := mock.Blueprints().Override(mock.Profile, blueprint.Skip)
		g := graph(
			models.Fragment{Type: mock.Author, Records: []models.Entity{{"@id": "@1", "name": "Ada", "profile": []any{"profile", "@2"}}}},
			models.Fragment{Type: mock.Profile, Records: []models.Entity{{"@id": "@2", "bio": "b"}}},
		)
		ids, err := deserializer.New(s, bp).Deserialize(ctx, g)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
		assert.Equal(t, 0, s.Count(mock.Profile))
	})
}

func TestAdoptExisting(t *testing.T) {
	ctx := context.Background()
	s := mock.Store()

	tag, err := s.Create(ctx, mock.Tag)
	require.NoError(t, err)
	tag.Set("label", "go")
	require.NoError(t, s.Save(ctx, tag))

	t.Run("Found", func(t *testing.T) {
		g := graph(
			models.Fragment{Type: mock.Tag, Records: []models.Entity{{"@id": "@1", "@key": tag.ID(), "label": "golang"}}},
			models.Fragment{Type: mock.Post, Records: []models.Entity{{"@id": "@2", "title": "p", "tags": []any{"@1"}}}},
		)
		res, err := deserializer.New(s, mock.Blueprints()).Import(ctx, deserializer.FromGraph(g))
		require.NoError(t, err)

		assert.Equal(t, 1, res.Adopted)
		assert.Equal(t, 1, res.Created)
		assert.Equal(t, tag.ID(), res.Bindings["@1"])
		assert.Equal(t, 1, s.Count(mock.Tag))
		assert.Equal(t, "golang", find(t, s, mock.Tag, tag.ID()).Get("label"))
		assert.Equal(t, [][2]any{{res.Bindings["@2"], tag.ID()}}, s.Pivot("post_tag"))
	})

	t.Run("Missing", func(t *testing.T) {
		g := graph(models.Fragment{Type: mock.Tag, Records: []models.Entity{{"@id": "@1", "@key": 99}}})
		_, err := deserializer.New(s, mock.Blueprints()).Deserialize(ctx, g)
		assert.ErrorIs(t, err, constants.ErrRecordNotFound)
	})
}

func TestStream(t *testing.T) {
	ctx := context.Background()

	t.Run("FragmentsAccumulate", func(t *testing.T) {
		s, bp := rootBar()
		p := deserializer.FromFragments(
			models.Fragment{Type: root, Records: []models.Entity{{"@id": "@1", "bar": "@3"}}},
			models.Fragment{Type: root, Records: []models.Entity{{"@id": "@2", "bar": "@3"}}},
			models.Fragment{Type: bar, Records: []models.Entity{{"@id": "@3", "name": "b"}}},
		)
		ids, err := deserializer.New(s, bp).DeserializeStream(ctx, p)
		require.NoError(t, err)
		assert.Len(t, ids, 3)
		assert.Equal(t, ids["@3"], find(t, s, root, ids["@1"]).Get("bar_id"))
		assert.Equal(t, ids["@3"], find(t, s, root, ids["@2"]).Get("bar_id"))
	})

	t.Run("ProviderError", func(t *testing.T) {
		s, bp := rootBar()
		boom := errors.New("boom")
		p := deserializer.ProviderFunc(func(context.Context) (models.Fragment, bool, error) {
			return models.Fragment{}, false, boom
		})
		_, err := deserializer.New(s, bp).DeserializeStream(ctx, p)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("NilInput", func(t *testing.T) {
		s, bp := rootBar()
		d := deserializer.New(s, bp)
		_, err := d.DeserializeStream(ctx, nil)
		assert.ErrorIs(t, err, constants.ErrMalformedInput)
		_, err = d.Deserialize(ctx, nil)
		assert.ErrorIs(t, err, constants.ErrMalformedInput)
	})
}

func TestMalformedEntity(t *testing.T) {
	ctx := context.Background()

	cases := map[string]models.Fragment{
		"MissingID":      {Type: bar, Records: []models.Entity{{"name": "b"}}},
		"BadReference":   {Type: root, Records: []models.Entity{{"@id": "@1", "bar": 7}}},
		"BadIDPrefix":    {Type: bar, Records: []models.Entity{{"@id": "#1"}}},
		"DuplicateInput": {Type: bar, Records: []models.Entity{{"@id": "@1"}, {"@id": "@1"}}},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			s, bp := rootBar()
			_, err := deserializer.New(s, bp).DeserializeStream(ctx, deserializer.FromFragments(f))
			require.Error(t, err)
			if name == "DuplicateInput" {
				assert.ErrorIs(t, err, constants.ErrBindCollision)
				return
			}
			assert.ErrorIs(t, err, constants.ErrMalformedInput)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := mock.Store()
	blog, err := mock.Seed(ctx, src)
	require.NoError(t, err)

	first, err := serializer.New(src, mock.Blueprints()).Serialize(ctx, blog.Author)
	require.NoError(t, err)

	dst := mock.Store()
	ids, err := deserializer.New(dst, mock.Blueprints()).Deserialize(ctx, first)
	require.NoError(t, err)
	assert.Len(t, ids, first.Len())

	authorID, ok := first.Records(mock.Author)[0].ID(models.DefaultPrefix)
	require.True(t, ok)
	author := find(t, dst, mock.Author, ids[authorID])

	second, err := serializer.New(dst, mock.Blueprints()).Serialize(ctx, author)
	require.NoError(t, err)

	assert.Equal(t, first.Types(), second.Types())
	assert.Equal(t, first.Counts(), second.Counts())
	assert.Equal(t, first.Fragments(), second.Fragments())
}

func TestTracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	s, bp := rootBar()

	g := graph(
		models.Fragment{Type: root, Records: []models.Entity{{"@id": "@1", "bar": "@2"}}},
		models.Fragment{Type: bar, Records: []models.Entity{{"@id": "@2"}}},
	)
	_, err := deserializer.New(s, bp, deserializer.WithTracerProvider(tp)).Deserialize(context.Background(), g)
	require.NoError(t, err)

	var names []string
	for _, span := range rec.Ended() {
		names = append(names, span.Name())
	}
	assert.ElementsMatch(t, []string{"surrealport.resolve", "surrealport.deserialize"}, names)
}
