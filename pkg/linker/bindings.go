package linker

import (
	"context"
	"fmt"
	"sync"

	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
)

// Bindings is a write-once map from surrogate id to real id. It is the only
// record of whether a surrogate has been created yet.
type Bindings interface {
	// Bind fails with constants.ErrBindCollision when id is already bound.
	Bind(ctx context.Context, id models.SurrogateID, realID any) error
	Lookup(ctx context.Context, id models.SurrogateID) (any, bool, error)
	Snapshot(ctx context.Context) (map[models.SurrogateID]any, error)
}

// Table is the in-memory Bindings.
type Table struct {
	mu  sync.RWMutex
	ids map[models.SurrogateID]any
}

var _ Bindings = (*Table)(nil)

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{ids: make(map[models.SurrogateID]any)}
}

func (t *Table) Bind(_ context.Context, id models.SurrogateID, realID any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.ids[id]; ok {
		return fmt.Errorf("%w: %s already bound to %v", constants.ErrBindCollision, id, prev)
	}
	t.ids[id] = realID
	return nil
}

func (t *Table) Lookup(_ context.Context, id models.SurrogateID) (any, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	realID, ok := t.ids[id]
	return realID, ok, nil
}

func (t *Table) Snapshot(context.Context) (map[models.SurrogateID]any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[models.SurrogateID]any, len(t.ids))
	for k, v := range t.ids {
		out[k] = v
	}
	return out, nil
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}
