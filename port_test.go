package surrealport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/internal/mock"
	"github.com/surrealdb/surrealport/pkg/deserializer"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
	"github.com/surrealdb/surrealport/pkg/store/memstore"
)

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := mock.Store()
	blog, err := mock.Seed(ctx, src)
	require.NoError(t, err)

	g, err := surrealport.New(src, mock.Blueprints()).ExportByID(ctx, mock.Author, blog.Author.ID())
	require.NoError(t, err)

	inputs := map[string]func() any{
		"GraphPointer": func() any { return g },
		"Graph":        func() any { return *g },
		"Fragments":    func() any { return g.Fragments() },
		"Provider":     func() any { return deserializer.FromGraph(g) },
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			dst := mock.Store()
			res, err := surrealport.New(dst, mock.Blueprints()).Import(ctx, input())
			require.NoError(t, err)
			assert.Len(t, res.Bindings, g.Len())
			assert.Equal(t, g.Len(), res.Created)
			assert.Equal(t, 2, dst.Count(mock.Post))
			assert.Len(t, dst.Pivot("post_tag"), 4)
		})
	}

	t.Run("SingleFragment", func(t *testing.T) {
		dst := mock.Store()
		res, err := surrealport.New(dst, mock.Blueprints()).Import(ctx, g.Fragments()[0])
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
	})
}

func TestImportMalformed(t *testing.T) {
	ctx := context.Background()
	p := surrealport.New(mock.Store(), mock.Blueprints())

	for name, input := range map[string]any{
		"Nil":        nil,
		"NilGraph":   (*models.Graph)(nil),
		"String":     `{"post":[]}`,
		"EntityList": []models.Entity{{"@id": "@1"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Import(ctx, input)
			assert.ErrorIs(t, err, surrealport.ErrMalformedInput)
		})
	}
}

func TestExportByIDMissing(t *testing.T) {
	p := surrealport.New(mock.Store(), mock.Blueprints())
	_, err := p.ExportByID(context.Background(), mock.Author, 1)
	assert.ErrorIs(t, err, surrealport.ErrRecordNotFound)

	_, err = p.Export(context.Background())
	assert.ErrorIs(t, err, surrealport.ErrNoRoot)
}

func TestMorphAliases(t *testing.T) {
	ctx := context.Background()
	aliases := map[string]models.TypeTag{"picture": mock.Image}

	src := memstore.New(mock.Schema(), memstore.WithMorphMap(aliases))
	blog, err := mock.Seed(ctx, src)
	require.NoError(t, err)

	export := surrealport.New(src, mock.Blueprints(), surrealport.WithFactory(store.NewFactory(src, aliases)))
	g, err := export.Export(ctx, blog.Posts[0])
	require.NoError(t, err)

	var post models.Entity
	for _, e := range g.Records(mock.Post) {
		if e["title"] == "First" {
			post = e
		}
	}
	require.NotNil(t, post)
	image := g.Records(mock.Image)[0]
	assert.Equal(t, []any{"picture", image["@id"]}, post["cover"])

	dst := memstore.New(mock.Schema(), memstore.WithMorphMap(aliases))
	res, err := surrealport.New(dst, mock.Blueprints(), surrealport.WithFactory(store.NewFactory(dst, aliases))).Import(ctx, g)
	require.NoError(t, err)

	postID, _ := post.ID(models.DefaultPrefix)
	imported, err := dst.Find(ctx, mock.Post, res.Bindings[postID])
	require.NoError(t, err)
	assert.Equal(t, "picture", imported.Get("cover_type"))

	cover, err := dst.Related(ctx, imported, "cover")
	require.NoError(t, err)
	require.Len(t, cover, 1)
	assert.Equal(t, mock.Image, cover[0].Type())
}
