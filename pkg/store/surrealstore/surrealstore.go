// Package surrealstore implements store.Store on SurrealDB tables through
// SurrealQL.
//
// Real ids are the id part of SurrealDB record ids: a record created in
// table posts as posts:8h2k is known by "8h2k". Foreign key, morph key and
// pivot columns hold those id parts as well, exactly like the relational
// stores, so graphs move between backends unchanged.
package surrealstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	surrealdb "github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
)

// Querier runs one SurrealQL statement and returns the rows of its result.
type Querier interface {
	Query(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error)
}

// DB adapts a surrealdb.go connection to Querier.
type DB struct {
	db *surrealdb.DB
}

func NewDB(db *surrealdb.DB) *DB {
	return &DB{db: db}
}

func (d *DB) Query(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error) {
	res, err := surrealdb.Query[[]map[string]any](ctx, d.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	last := (*res)[len(*res)-1]
	if last.Status != "OK" {
		return nil, fmt.Errorf("query %q: status %s", sql, last.Status)
	}
	return last.Result, nil
}

// Store keeps records in SurrealDB tables.
type Store struct {
	q      Querier
	schema store.Schema
	morphs map[string]models.TypeTag
	log    logger.Logger
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithMorphMap maps discriminator values found in polymorphic type columns
// to record types.
func WithMorphMap(m map[string]models.TypeTag) Option {
	return func(s *Store) {
		for k, v := range m {
			s.morphs[k] = v
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

func New(q Querier, schema store.Schema, opts ...Option) *Store {
	s := &Store{
		q:      q,
		schema: schema,
		morphs: make(map[string]models.TypeTag),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	findSQL   = "SELECT * FROM type::thing($tb, $id)"
	createSQL = "CREATE type::table($tb) CONTENT $data"
	upsertSQL = "UPSERT type::thing($tb, $id) CONTENT $data"
)

func (s *Store) Create(_ context.Context, t models.TypeTag) (store.Record, error) {
	if _, ok := s.schema[t]; !ok {
		return nil, fmt.Errorf("surrealstore: unknown type %s", t)
	}
	return store.NewRow(t), nil
}

func (s *Store) Find(ctx context.Context, t models.TypeTag, id any) (store.Record, error) {
	if id == nil {
		return nil, nil
	}
	rows, err := s.q.Query(ctx, findSQL, map[string]any{"tb": s.schema.Table(t), "id": id})
	if err != nil {
		return nil, fmt.Errorf("surrealstore: find %s %v: %w", t, id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return s.load(t, rows[0]), nil
}

func (s *Store) Save(ctx context.Context, r store.Record) error {
	row, ok := r.(*store.Row)
	if !ok {
		return fmt.Errorf("surrealstore: unsupported record type %T", r)
	}
	t := row.Type()
	pk := s.schema.PrimaryKey(t)

	data := row.Fields()
	delete(data, pk)
	delete(data, "id")

	vars := map[string]any{"tb": s.schema.Table(t), "data": data}
	sql := createSQL
	if row.ID() != nil {
		vars["id"] = row.ID()
		sql = upsertSQL
	}

	rows, err := s.q.Query(ctx, sql, vars)
	if err != nil {
		return fmt.Errorf("surrealstore: save %s: %w", t, err)
	}
	if row.ID() != nil {
		return nil
	}
	if len(rows) == 0 {
		return fmt.Errorf("surrealstore: save %s: no record returned", t)
	}
	id := idPart(rows[0]["id"])
	if id == nil {
		return fmt.Errorf("surrealstore: save %s: record without id", t)
	}
	row.SetID(id)
	row.Set(pk, id)
	s.log.Debug("created record", "type", t, "id", id)
	return nil
}

func (s *Store) Relation(t models.TypeTag, field string) (store.Relation, bool) {
	return s.schema.Relation(t, field)
}

func (s *Store) Related(ctx context.Context, r store.Record, field string) ([]store.Record, error) {
	rel, ok := s.schema.Relation(r.Type(), field)
	if !ok {
		return nil, fmt.Errorf("surrealstore: %s.%s is not a relation", r.Type(), field)
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
		return s.scan(ctx, rel.Target, rel.ForeignKey, r.ID(), 1)
	case store.Plural:
		return s.scan(ctx, rel.Target, rel.ForeignKey, r.ID(), 0)
	case store.PluralPivot:
		return s.pivotTargets(ctx, rel, r.ID())
	}
	return nil, fmt.Errorf("surrealstore: unsupported relation kind %s", rel.Kind)
}

func (s *Store) Attach(ctx context.Context, r store.Record, field string, id any) error {
	rel, ok := s.schema.Relation(r.Type(), field)
	if !ok || rel.Kind != store.PluralPivot {
		return fmt.Errorf("surrealstore: %s.%s is not a pivot relation", r.Type(), field)
	}
	if r.ID() == nil {
		return fmt.Errorf("surrealstore: attach on unsaved %s", r.Type())
	}

	vars := map[string]any{"tb": rel.Pivot, "owner": r.ID(), "target": id}
	rows, err := s.q.Query(ctx, fmt.Sprintf(
		"SELECT * FROM type::table($tb) WHERE %s = $owner AND %s = $target LIMIT 1",
		ident(rel.PivotOwnerKey), ident(rel.PivotTargetKey)), vars)
	if err != nil {
		return fmt.Errorf("surrealstore: attach %s.%s: %w", r.Type(), field, err)
	}
	if len(rows) > 0 {
		return nil
	}

	vars["data"] = map[string]any{rel.PivotOwnerKey: r.ID(), rel.PivotTargetKey: id}
	if _, err := s.q.Query(ctx, createSQL, vars); err != nil {
		return fmt.Errorf("surrealstore: attach %s.%s: %w", r.Type(), field, err)
	}
	return nil
}

func (s *Store) morphType(name string) models.TypeTag {
	if t, ok := s.morphs[name]; ok {
		return t
	}
	return models.TypeTag(name)
}

func (s *Store) findOne(ctx context.Context, t models.TypeTag, id any) ([]store.Record, error) {
	rec, err := s.Find(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []store.Record{}, nil
	}
	return []store.Record{rec}, nil
}

func (s *Store) scan(ctx context.Context, t models.TypeTag, column string, owner any, limit int) ([]store.Record, error) {
	out := []store.Record{}
	if owner == nil {
		return out, nil
	}

	sql := fmt.Sprintf("SELECT * FROM type::table($tb) WHERE %s = $owner ORDER BY id", ident(column))
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.q.Query(ctx, sql, map[string]any{"tb": s.schema.Table(t), "owner": owner})
	if err != nil {
		return nil, fmt.Errorf("surrealstore: scan %s.%s: %w", t, column, err)
	}
	for _, row := range rows {
		out = append(out, s.load(t, row))
	}
	return out, nil
}

func (s *Store) pivotTargets(ctx context.Context, rel store.Relation, owner any) ([]store.Record, error) {
	out := []store.Record{}
	if owner == nil {
		return out, nil
	}

	rows, err := s.q.Query(ctx, fmt.Sprintf("SELECT * FROM type::table($tb) WHERE %s = $owner",
		ident(rel.PivotOwnerKey)), map[string]any{"tb": rel.Pivot, "owner": owner})
	if err != nil {
		return nil, fmt.Errorf("surrealstore: pivot %s: %w", rel.Pivot, err)
	}
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row[rel.PivotTargetKey])
	}
	sort.SliceStable(ids, func(i, j int) bool { return fmt.Sprint(ids[i]) < fmt.Sprint(ids[j]) })

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

func (s *Store) load(t models.TypeTag, row map[string]any) store.Record {
	fields := make(map[string]any, len(row))
	for k, v := range row {
		fields[k] = v
	}
	id := idPart(row["id"])
	fields[s.schema.PrimaryKey(t)] = id
	return store.LoadedRow(t, id, fields)
}

// idPart returns the id part of a record id.
func idPart(v any) any {
	switch id := v.(type) {
	case sdbmodels.RecordID:
		return id.ID
	case *sdbmodels.RecordID:
		if id == nil {
			return nil
		}
		return id.ID
	case string:
		if _, rest, ok := strings.Cut(id, ":"); ok {
			return strings.Trim(rest, "`⟨⟩")
		}
		return id
	}
	return v
}

func ident(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}
