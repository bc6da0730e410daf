package redisbind_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealport/internal/mock"
	"github.com/surrealdb/surrealport/pkg/bindings/redisbind"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/deserializer"
	"github.com/surrealdb/surrealport/pkg/linker"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/serializer"
)

func setup(t *testing.T, ttl time.Duration) (*redisbind.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := redisbind.Connect(redisbind.Options{
		URL: fmt.Sprintf("redis://%s", mr.Addr()),
		TTL: ttl,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestTable(t *testing.T) {
	ctx := context.Background()
	c, mr := setup(t, 0)
	table := c.Table("t1")

	require.NoError(t, table.Bind(ctx, "@1", int64(10)))
	require.NoError(t, table.Bind(ctx, "@2", "author:ada"))

	t.Run("Lookup", func(t *testing.T) {
		got, ok, err := table.Lookup(ctx, "@1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(10), got)

		got, ok, err = table.Lookup(ctx, "@2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "author:ada", got)
	})

	t.Run("Unbound", func(t *testing.T) {
		_, ok, err := table.Lookup(ctx, "@3")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Collision", func(t *testing.T) {
		err := table.Bind(ctx, "@1", int64(11))
		assert.ErrorIs(t, err, constants.ErrBindCollision)

		got, _, err := table.Lookup(ctx, "@1")
		require.NoError(t, err)
		assert.Equal(t, int64(10), got)
	})

	t.Run("SharedAcrossClients", func(t *testing.T) {
		other, err := redisbind.Connect(redisbind.Options{URL: fmt.Sprintf("redis://%s", mr.Addr())})
		require.NoError(t, err)
		defer other.Close()

		err = other.Table("t1").Bind(ctx, "@2", "author:grace")
		assert.ErrorIs(t, err, constants.ErrBindCollision)
	})

	t.Run("Snapshot", func(t *testing.T) {
		snap, err := table.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[models.SurrogateID]any{"@1": int64(10), "@2": "author:ada"}, snap)

		n, err := table.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("Drop", func(t *testing.T) {
		require.NoError(t, table.Drop(ctx))
		assert.False(t, mr.Exists(table.Key()))
	})
}

func TestTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := setup(t, time.Minute)
	table := c.Table("ttl")

	require.NoError(t, table.Bind(ctx, "@1", int64(1)))
	assert.Equal(t, time.Minute, mr.TTL(table.Key()))

	mr.FastForward(2 * time.Minute)
	_, ok, err := table.Lookup(ctx, "@1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnect(t *testing.T) {
	t.Run("InvalidURL", func(t *testing.T) {
		_, err := redisbind.Connect(redisbind.Options{URL: "invalid://url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})

	t.Run("Unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := redisbind.Connect(redisbind.Options{
			URL:            fmt.Sprintf("redis://%s", addr),
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})
}

func TestImportWithRedisBindings(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, 0)

	src := mock.Store()
	blog, err := mock.Seed(ctx, src)
	require.NoError(t, err)
	g, err := serializer.New(src, mock.Blueprints()).Serialize(ctx, blog.Author)
	require.NoError(t, err)

	var tables []*redisbind.Table
	n := 0
	factory := func() linker.Bindings {
		n++
		table := c.Table(fmt.Sprintf("import-%d", n))
		tables = append(tables, table)
		return table
	}

	dst := mock.Store()
	res, err := deserializer.New(dst, mock.Blueprints(), deserializer.WithBindings(factory)).Import(ctx, deserializer.FromGraph(g))
	require.NoError(t, err)
	assert.Equal(t, g.Len(), res.Created)
	require.Len(t, tables, 1)

	snap, err := tables[0].Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Bindings, snap)
	assert.Equal(t, 2, dst.Count(mock.Post))
}
