package serializer

import (
	"context"
	"errors"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/surrealdb/surrealport/pkg/models"
)

// dependencies records "type A must be created before type B" edges found
// during the walk.
type dependencies struct {
	edges map[[2]models.TypeTag]bool
	list  [][2]models.TypeTag
}

func newDependencies() *dependencies {
	return &dependencies{edges: make(map[[2]models.TypeTag]bool)}
}

func (d *dependencies) add(before, after models.TypeTag) {
	if before == after {
		return
	}
	k := [2]models.TypeTag{before, after}
	if d.edges[k] {
		return
	}
	d.edges[k] = true
	d.list = append(d.list, k)
}

// order sorts types topologically. A cycle is not an error: the discovery
// order is returned unchanged and the resolve pass handles the references.
func (d *dependencies) order(ctx context.Context, types []models.TypeTag) ([]models.TypeTag, error) {
	g := core.NewGraph(core.WithDirected(true))
	for _, t := range types {
		if err := g.AddVertex(string(t)); err != nil {
			return nil, err
		}
	}
	for _, e := range d.list {
		if !g.HasVertex(string(e[0])) || !g.HasVertex(string(e[1])) {
			continue
		}
		if g.HasEdge(string(e[0]), string(e[1])) {
			continue
		}
		if _, err := g.AddEdge(string(e[0]), string(e[1]), 0); err != nil {
			return nil, err
		}
	}

	sorted, err := dfs.TopologicalSort(g, dfs.WithCancelContext(ctx))
	if errors.Is(err, dfs.ErrCycleDetected) {
		return types, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.TypeTag, len(sorted))
	for i, id := range sorted {
		out[i] = models.TypeTag(id)
	}
	return out, nil
}
