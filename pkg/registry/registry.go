// Package registry issues surrogate ids for records discovered during
// serialization.
//
// A Registry hands out <prefix><n> tokens keyed by (type, natural key). Asking
// twice for the same pair returns the same token; the counter only advances
// for pairs it has not seen. A Registry lives for one serialize call.
package registry

import (
	"fmt"
	"sync"

	"github.com/surrealdb/surrealport/pkg/models"
)

type key struct {
	typ     models.TypeTag
	natural string
}

// Registry maps (type, natural key) pairs to surrogate ids.
// It is safe for concurrent use.
type Registry struct {
	prefix string

	mu   sync.Mutex
	next uint64
	ids  map[key]models.SurrogateID
}

// New returns an empty registry issuing ids with prefix.
// An empty prefix falls back to models.DefaultPrefix.
func New(prefix string) *Registry {
	if prefix == "" {
		prefix = models.DefaultPrefix
	}
	return &Registry{
		prefix: prefix,
		ids:    make(map[key]models.SurrogateID),
	}
}

// Prefix returns the prefix ids are issued with.
func (r *Registry) Prefix() string {
	return r.prefix
}

// ID returns the surrogate id for (t, naturalKey), allocating the next one
// when the pair is new.
func (r *Registry) ID(t models.TypeTag, naturalKey any) models.SurrogateID {
	k := key{typ: t, natural: fmt.Sprint(naturalKey)}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[k]; ok {
		return id
	}
	r.next++
	id := models.NewSurrogateID(r.prefix, r.next)
	r.ids[k] = id
	return id
}

// Has reports whether an id was already issued for (t, naturalKey).
func (r *Registry) Has(t models.TypeTag, naturalKey any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[key{typ: t, natural: fmt.Sprint(naturalKey)}]
	return ok
}

// Len returns the number of issued ids.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}
