package gormstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/contrib/testenv"
	"github.com/surrealdb/surrealport/internal/mock"
	"github.com/surrealdb/surrealport/pkg/store/gormstore"
)

var blogDDL = []string{
	`DROP TABLE IF EXISTS authors, profiles, posts, comments, tags, images, post_tag`,
	`CREATE TABLE authors (id BIGSERIAL PRIMARY KEY, name TEXT)`,
	`CREATE TABLE profiles (id BIGSERIAL PRIMARY KEY, bio TEXT, author_id BIGINT)`,
	`CREATE TABLE posts (id BIGSERIAL PRIMARY KEY, title TEXT, body TEXT, meta TEXT,
		author_id BIGINT, cover_type TEXT, cover_id BIGINT)`,
	`CREATE TABLE comments (id BIGSERIAL PRIMARY KEY, text TEXT, post_id BIGINT, author_id BIGINT)`,
	`CREATE TABLE tags (id BIGSERIAL PRIMARY KEY, label TEXT)`,
	`CREATE TABLE images (id BIGSERIAL PRIMARY KEY, url TEXT)`,
	`CREATE TABLE post_tag (post_id BIGINT, tag_id BIGINT)`,
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testenv.Postgres(t, blogDDL...)
	st := gormstore.New(db, mock.Schema(), gormstore.WithJSONColumns(mock.Post, "meta"))

	blog, err := mock.Seed(ctx, st)
	require.NoError(t, err)

	t.Run("Related", func(t *testing.T) {
		posts, err := st.Related(ctx, blog.Author, "posts")
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "First", posts[0].Get("title"))

		tags, err := st.Related(ctx, posts[0], "tags")
		require.NoError(t, err)
		assert.Len(t, tags, 2)

		cover, err := st.Related(ctx, posts[0], "cover")
		require.NoError(t, err)
		require.Len(t, cover, 1)
		assert.Equal(t, blog.Cover.ID(), cover[0].ID())

		profile, err := st.Related(ctx, blog.Author, "profile")
		require.NoError(t, err)
		assert.Len(t, profile, 1)
	})

	t.Run("ExportImport", func(t *testing.T) {
		p := surrealport.New(st, mock.Blueprints())
		g, err := p.Export(ctx, blog.Author)
		require.NoError(t, err)

		res, err := p.Import(ctx, g)
		require.NoError(t, err)
		assert.Equal(t, g.Len(), res.Created)

		var n int64
		require.NoError(t, db.Table("posts").Count(&n).Error)
		assert.Equal(t, int64(4), n)
	})

	t.Run("FindMissing", func(t *testing.T) {
		rec, err := st.Find(ctx, mock.Tag, int64(999999))
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}
