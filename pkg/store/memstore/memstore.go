// Package memstore is an in-memory store.Store.
//
// Rows get int64 ids from a per-type autoincrement counter starting at 1.
// Find and Save copy column values, so callers never share state with the
// store. Pivot tables live next to the row tables and are keyed by the
// relation's Pivot name.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

type table struct {
	next int64
	rows map[int64]map[string]any
}

type pivotRow struct {
	owner  any
	target any
}

// Store keeps rows in maps guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	schema  store.Schema
	morphs  map[string]models.TypeTag
	tables  map[models.TypeTag]*table
	pivots  map[string][]pivotRow
	saves   int
	creates int
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithMorphMap maps discriminator values found in polymorphic type columns
// to record types. Unmapped values are used as type tags verbatim.
func WithMorphMap(m map[string]models.TypeTag) Option {
	return func(s *Store) {
		for k, v := range m {
			s.morphs[k] = v
		}
	}
}

// New returns an empty store described by schema.
func New(schema store.Schema, opts ...Option) *Store {
	s := &Store{
		schema: schema,
		morphs: make(map[string]models.TypeTag),
		tables: make(map[models.TypeTag]*table),
		pivots: make(map[string][]pivotRow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) table(t models.TypeTag) *table {
	tb, ok := s.tables[t]
	if !ok {
		tb = &table{rows: make(map[int64]map[string]any)}
		s.tables[t] = tb
	}
	return tb
}

func (s *Store) Create(_ context.Context, t models.TypeTag) (store.Record, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return store.NewRow(t), nil
}

func (s *Store) Find(_ context.Context, t models.TypeTag, id any) (store.Record, error) {
	n, ok := models.Int64(id)
	if !ok {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tb, ok := s.tables[t]
	if !ok {
		return nil, nil
	}
	row, ok := tb.rows[n]
	if !ok {
		return nil, nil
	}
	return store.LoadedRow(t, n, cloneRow(row)), nil
}

func (s *Store) Save(_ context.Context, r store.Record) error {
	row, ok := r.(*store.Row)
	if !ok {
		return fmt.Errorf("memstore: unsupported record type %T", r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tb := s.table(row.Type())
	var id int64
	if row.ID() == nil {
		tb.next++
		id = tb.next
		row.SetID(id)
	} else {
		n, ok := models.Int64(row.ID())
		if !ok {
			return fmt.Errorf("memstore: invalid id %v for %s", row.ID(), row.Type())
		}
		id = n
		if id > tb.next {
			tb.next = id
		}
	}

	fields := cloneRow(row.Fields())
	fields[s.schema.PrimaryKey(row.Type())] = id
	row.Set(s.schema.PrimaryKey(row.Type()), id)
	tb.rows[id] = fields
	s.saves++
	return nil
}

func (s *Store) Relation(t models.TypeTag, field string) (store.Relation, bool) {
	return s.schema.Relation(t, field)
}

func (s *Store) Related(ctx context.Context, r store.Record, field string) ([]store.Record, error) {
	rel, ok := s.schema.Relation(r.Type(), field)
	if !ok {
		return nil, fmt.Errorf("memstore: %s.%s is not a relation", r.Type(), field)
	}

	switch rel.Kind {
	case store.SingularOwned:
		return s.findOne(ctx, rel.Target, r.Get(rel.ForeignKey))
	case store.PolymorphicSingular:
		name, _ := r.Get(rel.MorphType).(string)
		if name == "" {
			return []store.Record{}, nil
		}
		return s.findOne(ctx, s.morphType(name), r.Get(rel.MorphKey))
	case store.SingularOwning:
		out := s.scan(rel.Target, rel.ForeignKey, r.ID())
		if len(out) > 1 {
			out = out[:1]
		}
		return out, nil
	case store.Plural:
		return s.scan(rel.Target, rel.ForeignKey, r.ID()), nil
	case store.PluralPivot:
		return s.pivotTargets(ctx, rel, r.ID())
	}
	return nil, fmt.Errorf("memstore: unsupported relation kind %s", rel.Kind)
}

func (s *Store) Attach(_ context.Context, r store.Record, field string, id any) error {
	rel, ok := s.schema.Relation(r.Type(), field)
	if !ok || rel.Kind != store.PluralPivot {
		return fmt.Errorf("memstore: %s.%s is not a pivot relation", r.Type(), field)
	}
	if r.ID() == nil {
		return fmt.Errorf("memstore: attach on unsaved %s", r.Type())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pivots[rel.Pivot] {
		if models.SameID(p.owner, r.ID()) && models.SameID(p.target, id) {
			return nil
		}
	}
	s.pivots[rel.Pivot] = append(s.pivots[rel.Pivot], pivotRow{owner: r.ID(), target: id})
	return nil
}

func (s *Store) morphType(name string) models.TypeTag {
	if t, ok := s.morphs[name]; ok {
		return t
	}
	return models.TypeTag(name)
}

func (s *Store) findOne(ctx context.Context, t models.TypeTag, id any) ([]store.Record, error) {
	if id == nil {
		return []store.Record{}, nil
	}
	rec, err := s.Find(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []store.Record{}, nil
	}
	return []store.Record{rec}, nil
}

func (s *Store) scan(t models.TypeTag, column string, owner any) []store.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Record{}
	tb, ok := s.tables[t]
	if !ok || owner == nil {
		return out
	}
	for _, id := range sortedIDs(tb) {
		row := tb.rows[id]
		if models.SameID(row[column], owner) {
			out = append(out, store.LoadedRow(t, id, cloneRow(row)))
		}
	}
	return out
}

func (s *Store) pivotTargets(ctx context.Context, rel store.Relation, owner any) ([]store.Record, error) {
	s.mu.RLock()
	var ids []any
	for _, p := range s.pivots[rel.Pivot] {
		if models.SameID(p.owner, owner) {
			ids = append(ids, p.target)
		}
	}
	s.mu.RUnlock()

	out := []store.Record{}
	for _, id := range ids {
		rec, err := s.Find(ctx, rel.Target, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// All returns every row of type t ordered by id.
func (s *Store) All(t models.TypeTag) []store.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Record{}
	tb, ok := s.tables[t]
	if !ok {
		return out
	}
	for _, id := range sortedIDs(tb) {
		out = append(out, store.LoadedRow(t, id, cloneRow(tb.rows[id])))
	}
	return out
}

// Count returns the number of rows of type t.
func (s *Store) Count(t models.TypeTag) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tb, ok := s.tables[t]; ok {
		return len(tb.rows)
	}
	return 0
}

// Pivot returns the (owner, target) id pairs stored in pivot table name.
func (s *Store) Pivot(name string) [][2]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][2]any, 0, len(s.pivots[name]))
	for _, p := range s.pivots[name] {
		out = append(out, [2]any{p.owner, p.target})
	}
	return out
}

// Saves returns how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Creates returns how many blank records Create handed out.
func (s *Store) Creates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creates
}

func sortedIDs(tb *table) []int64 {
	ids := make([]int64, 0, len(tb.rows))
	for id := range tb.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = models.Clone(v)
	}
	return out
}
