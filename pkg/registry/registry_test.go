package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/registry"
)

func TestRegistry_ID(t *testing.T) {
	t.Run("Idempotent", func(t *testing.T) {
		r := registry.New("")
		first := r.ID("posts", 10)
		second := r.ID("posts", 10)

		assert.Equal(t, models.SurrogateID("@1"), first)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("MonotonicAcrossTypes", func(t *testing.T) {
		r := registry.New("")
		assert.Equal(t, models.SurrogateID("@1"), r.ID("posts", 10))
		assert.Equal(t, models.SurrogateID("@2"), r.ID("users", 10))
		assert.Equal(t, models.SurrogateID("@3"), r.ID("posts", 11))
		assert.Equal(t, models.SurrogateID("@2"), r.ID("users", 10))
	})

	t.Run("CustomPrefix", func(t *testing.T) {
		r := registry.New("#")
		id := r.ID("posts", "abc")
		assert.Equal(t, models.SurrogateID("#1"), id)
		assert.True(t, models.IsSurrogateID("#", id.String()))
		assert.Equal(t, "#", r.Prefix())
	})
}

func TestRegistry_Has(t *testing.T) {
	r := registry.New("")
	require.False(t, r.Has("posts", 1))

	r.ID("posts", 1)
	assert.True(t, r.Has("posts", 1))
	assert.False(t, r.Has("users", 1))
	assert.False(t, r.Has("posts", 2))
}

func TestRegistry_Concurrent(t *testing.T) {
	r := registry.New("")
	var wg sync.WaitGroup
	ids := make([][]models.SurrogateID, 8)
	for w := range ids {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 1; n <= 100; n++ {
				ids[w] = append(ids[w], r.ID("posts", n))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
	for w := 1; w < len(ids); w++ {
		assert.Equal(t, ids[0], ids[w], fmt.Sprintf("worker %d", w))
	}
}
