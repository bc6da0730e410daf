package store

import (
	"context"

	"github.com/surrealdb/surrealport/pkg/models"
)

// MorphFactory is the default Factory: it creates records through a Store
// and translates public discriminator names through an alias table.
type MorphFactory struct {
	store   Store
	aliases map[string]models.TypeTag
	names   map[models.TypeTag]string
}

// NewFactory returns a factory over s. aliases maps public names, as they
// appear in polymorphic type columns and on the wire, to concrete types.
func NewFactory(s Store, aliases map[string]models.TypeTag) *MorphFactory {
	f := &MorphFactory{
		store:   s,
		aliases: make(map[string]models.TypeTag, len(aliases)),
		names:   make(map[models.TypeTag]string, len(aliases)),
	}
	for name, t := range aliases {
		f.aliases[name] = t
		f.names[t] = name
	}
	return f
}

func (f *MorphFactory) Make(ctx context.Context, t models.TypeTag) (Record, error) {
	return f.store.Create(ctx, f.Resolve(string(t)))
}

func (f *MorphFactory) Resolve(name string) models.TypeTag {
	if t, ok := f.aliases[name]; ok {
		return t
	}
	return models.TypeTag(name)
}

func (f *MorphFactory) MorphName(t models.TypeTag) string {
	if name, ok := f.names[t]; ok {
		return name
	}
	return string(t)
}
