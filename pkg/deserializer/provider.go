package deserializer

import (
	"context"

	"github.com/surrealdb/surrealport/pkg/models"
)

// Provider yields the fragments of an anonymized graph in order. Next
// returns ok == false once the input is drained. A Provider is consumed
// once.
type Provider interface {
	Next(ctx context.Context) (f models.Fragment, ok bool, err error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (models.Fragment, bool, error)

func (fn ProviderFunc) Next(ctx context.Context) (models.Fragment, bool, error) {
	return fn(ctx)
}

type sliceProvider struct {
	fragments []models.Fragment
	pos       int
}

func (p *sliceProvider) Next(context.Context) (models.Fragment, bool, error) {
	if p.pos >= len(p.fragments) {
		return models.Fragment{}, false, nil
	}
	f := p.fragments[p.pos]
	p.pos++
	return f, true, nil
}

// FromGraph returns a Provider yielding one fragment per type of g, in type
// order.
func FromGraph(g *models.Graph) Provider {
	return &sliceProvider{fragments: g.Fragments()}
}

// FromFragments returns a Provider yielding fragments as given.
func FromFragments(fragments ...models.Fragment) Provider {
	return &sliceProvider{fragments: fragments}
}
