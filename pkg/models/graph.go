package models

import "fmt"

// Entity is one anonymized record: field name to scalar, nested container
// or relation value, plus the reserved id key.
type Entity map[string]any

// ID returns the surrogate id stored under the reserved key for prefix.
func (e Entity) ID(prefix string) (SurrogateID, bool) {
	return ParseSurrogateID(prefix, e[IDField(prefix)])
}

// Fragment is one chunk of an anonymized graph: records of a single type.
// Fragments are the unit of streamed input and output.
type Fragment struct {
	Type    TypeTag  `json:"type" cbor:"type"`
	Records []Entity `json:"records" cbor:"records"`
}

// Graph is the anonymized forest: records grouped by type, in insertion
// order of types and of records within a type.
//
// A Graph deduplicates by (type, surrogate id).
type Graph struct {
	order   []TypeTag
	records map[TypeTag][]Entity
	index   map[TypeTag]map[SurrogateID]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		records: make(map[TypeTag][]Entity),
		index:   make(map[TypeTag]map[SurrogateID]int),
	}
}

// Types returns the type tags in insertion order.
func (g *Graph) Types() []TypeTag {
	out := make([]TypeTag, len(g.order))
	copy(out, g.order)
	return out
}

// Records returns the records of type t in insertion order.
func (g *Graph) Records(t TypeTag) []Entity {
	return g.records[t]
}

// Has reports whether a record of type t with the given id is present.
func (g *Graph) Has(t TypeTag, id SurrogateID) bool {
	_, ok := g.index[t][id]
	return ok
}

// Get returns the record of type t with the given id.
func (g *Graph) Get(t TypeTag, id SurrogateID) (Entity, bool) {
	i, ok := g.index[t][id]
	if !ok {
		return nil, false
	}
	return g.records[t][i], true
}

// Add appends e under type t. It returns false without modifying the graph
// when a record with the same id is already present for t.
func (g *Graph) Add(t TypeTag, id SurrogateID, e Entity) bool {
	if g.Has(t, id) {
		return false
	}
	if _, ok := g.records[t]; !ok {
		g.order = append(g.order, t)
		g.index[t] = make(map[SurrogateID]int)
	}
	g.index[t][id] = len(g.records[t])
	g.records[t] = append(g.records[t], e)
	return true
}

// AddFragment appends every record of f, reading ids with prefix.
func (g *Graph) AddFragment(prefix string, f Fragment) error {
	for i, e := range f.Records {
		id, ok := e.ID(prefix)
		if !ok {
			return fmt.Errorf("record %d of type %s has no valid %s", i, f.Type, IDField(prefix))
		}
		g.Add(f.Type, id, e)
	}
	return nil
}

// Len returns the total number of records.
func (g *Graph) Len() int {
	n := 0
	for _, rs := range g.records {
		n += len(rs)
	}
	return n
}

// Counts returns the number of records per type.
func (g *Graph) Counts() map[TypeTag]int {
	out := make(map[TypeTag]int, len(g.records))
	for t, rs := range g.records {
		out[t] = len(rs)
	}
	return out
}

// Fragments splits the graph into one fragment per type, in type order.
func (g *Graph) Fragments() []Fragment {
	out := make([]Fragment, 0, len(g.order))
	for _, t := range g.order {
		out = append(out, Fragment{Type: t, Records: g.records[t]})
	}
	return out
}

// Reorder rearranges the type order. Types missing from order keep their
// relative position after the listed ones; unknown types are ignored.
func (g *Graph) Reorder(order []TypeTag) {
	seen := make(map[TypeTag]bool, len(g.order))
	next := make([]TypeTag, 0, len(g.order))
	for _, t := range order {
		if _, ok := g.records[t]; ok && !seen[t] {
			seen[t] = true
			next = append(next, t)
		}
	}
	for _, t := range g.order {
		if !seen[t] {
			next = append(next, t)
		}
	}
	g.order = next
}
