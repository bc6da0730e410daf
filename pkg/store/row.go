package store

import (
	"github.com/surrealdb/surrealport/pkg/models"
)

// Row is a map-backed Record shared by the bundled stores.
type Row struct {
	typ    models.TypeTag
	id     any
	fields map[string]any
}

// NewRow returns an unsaved row of type t.
func NewRow(t models.TypeTag) *Row {
	return &Row{typ: t, fields: make(map[string]any)}
}

// LoadedRow returns a saved row with the given real id and columns.
func LoadedRow(t models.TypeTag, id any, fields map[string]any) *Row {
	r := &Row{typ: t, id: id, fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

func (r *Row) Type() models.TypeTag { return r.typ }
func (r *Row) ID() any              { return r.id }

func (r *Row) Get(field string) any {
	return r.fields[field]
}

func (r *Row) Set(field string, value any) {
	r.fields[field] = value
}

// SetID records the real id assigned by a store on save.
func (r *Row) SetID(id any) {
	r.id = id
}

// Fields returns a shallow copy of the columns.
func (r *Row) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}
