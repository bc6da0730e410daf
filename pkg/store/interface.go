// Package store defines what the serializer, deserializer and linker need
// from a record store.
//
// The [Store] interface is deliberately small: create a blank record, find a
// record by its real id, save it, describe how a field relates to other
// records and load those related records. Three implementations ship with
// this module:
//
//   - [github.com/surrealdb/surrealport/pkg/store/memstore.Store]: in-memory, used by tests and dry runs
//   - [github.com/surrealdb/surrealport/pkg/store/gormstore.Store]: relational tables through GORM
//   - [github.com/surrealdb/surrealport/pkg/store/surrealstore.Store]: SurrealDB tables through SurrealQL
//
// All of them describe their tables with a [Schema], usually loaded from the
// YAML file read by [github.com/surrealdb/surrealport/pkg/config].
//
// # Relation kinds
//
// Every relation field resolves to exactly one [RelationKind]:
//
//   - [SingularOwned]: this record holds the foreign key (belongs-to)
//   - [SingularOwning]: one child holds a foreign key back to this record (has-one)
//   - [Plural]: many children hold a foreign key back to this record (has-many)
//   - [PluralPivot]: many-to-many through a pivot table
//   - [PolymorphicSingular]: a discriminator column plus a key column (morph-to)
package store

import (
	"context"

	"github.com/surrealdb/surrealport/pkg/models"
)

// Record is one stored (or about to be stored) row.
type Record interface {
	// Type returns the record's type tag.
	Type() models.TypeTag
	// ID returns the real id, or nil while the record has never been saved.
	ID() any
	// Get returns the value of a column, nil when unset.
	Get(field string) any
	// Set writes a column in memory; Store.Save persists it.
	Set(field string, value any)
}

// Store is the record store collaborator.
//
// Find returns nil without error for a missing record. Related returns an
// empty slice, never nil, when nothing is related.
type Store interface {
	Create(ctx context.Context, t models.TypeTag) (Record, error)
	Find(ctx context.Context, t models.TypeTag, id any) (Record, error)
	Save(ctx context.Context, r Record) error

	// Relation describes field of type t, false when field is a plain column.
	Relation(t models.TypeTag, field string) (Relation, bool)
	// Related loads the records reachable from r through a relation field.
	Related(ctx context.Context, r Record, field string) ([]Record, error)
	// Attach links a saved record to the record with real id through a
	// PluralPivot relation.
	Attach(ctx context.Context, r Record, field string, id any) error
}

// Factory instantiates records by public type name.
type Factory interface {
	// Make returns a new, unsaved record of type t (or of the type t aliases).
	Make(ctx context.Context, t models.TypeTag) (Record, error)
	// Resolve maps a public discriminator name to a concrete type.
	Resolve(name string) models.TypeTag
	// MorphName maps a concrete type to the discriminator value stored in
	// polymorphic type columns.
	MorphName(t models.TypeTag) string
}
