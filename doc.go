// The [surrealport] package exports a connected set of records as an
// anonymized graph and imports such a graph into another store.
//
// # Anonymized graphs
//
// An export starts at one or more root records and follows the fields their
// blueprints name. Every record reached gets a surrogate id such as "@17"
// that is only meaningful inside the graph. Real ids never leave the source
// store: relations become surrogate ids, [type, id] tuples or id lists, and
// ids embedded in nested values or text are rewritten by match rules.
//
// # Importing
//
// [Port.Import] creates records in input order and binds each surrogate id
// to the real id the target store issues. A write that needs a record not
// created yet is deferred and resolved once the whole input is consumed, so
// a graph can be imported in any type order, including one streamed in
// fragments.
//
// # Blueprints
//
// A blueprint lists the fields of a type taking part in the traversal. See
// [github.com/surrealdb/surrealport/pkg/blueprint] for rule shapes and
// [github.com/surrealdb/surrealport/pkg/config] for loading schemas and
// blueprints from YAML.
//
// # Stores
//
// Records are read and written through [store.Store]. The module ships an
// in-memory store, a GORM store and a SurrealDB store under pkg/store.
package surrealport
