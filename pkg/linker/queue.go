package linker

import (
	"sort"

	"github.com/surrealdb/surrealport/pkg/models"
)

type ownerQueue struct {
	order   []models.SurrogateID
	actions map[models.SurrogateID][]Action
}

// Queue holds deferred actions grouped by type, then by owning surrogate id.
// Types and owners come back in the order they were first queued.
type Queue struct {
	order  []models.TypeTag
	owners map[models.TypeTag]*ownerQueue
	n      int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{owners: make(map[models.TypeTag]*ownerQueue)}
}

// Push appends a.
func (q *Queue) Push(a Action) {
	oq, ok := q.owners[a.Type]
	if !ok {
		oq = &ownerQueue{actions: make(map[models.SurrogateID][]Action)}
		q.owners[a.Type] = oq
		q.order = append(q.order, a.Type)
	}
	if _, ok := oq.actions[a.Owner]; !ok {
		oq.order = append(oq.order, a.Owner)
	}
	oq.actions[a.Owner] = append(oq.actions[a.Owner], a)
	q.n++
}

// Len returns the number of queued actions.
func (q *Queue) Len() int {
	return q.n
}

// Types returns the types with queued actions.
func (q *Queue) Types() []models.TypeTag {
	out := make([]models.TypeTag, len(q.order))
	copy(out, q.order)
	return out
}

// Owners returns the owners of type t with queued actions.
func (q *Queue) Owners(t models.TypeTag) []models.SurrogateID {
	oq, ok := q.owners[t]
	if !ok {
		return nil
	}
	out := make([]models.SurrogateID, len(oq.order))
	copy(out, oq.order)
	return out
}

// Actions returns the actions of one owner in resolve order: grouped by kind
// as listed in Kinds, queue order within a kind.
func (q *Queue) Actions(t models.TypeTag, owner models.SurrogateID) []Action {
	oq, ok := q.owners[t]
	if !ok {
		return nil
	}
	out := make([]Action, len(oq.actions[owner]))
	copy(out, oq.actions[owner])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Reset drops every queued action.
func (q *Queue) Reset() {
	q.order = nil
	q.owners = make(map[models.TypeTag]*ownerQueue)
	q.n = 0
}
