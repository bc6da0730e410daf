// Package backend opens the store a command line tool works on.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/surrealdb/surrealport/pkg/config"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
	"github.com/surrealdb/surrealport/pkg/store/gormstore"
	"github.com/surrealdb/surrealport/pkg/store/memstore"
	"github.com/surrealdb/surrealport/pkg/store/surrealstore"
)

// Store kinds
const (
	Memory    = "memory"
	Postgres  = "postgres"
	SurrealDB = "surrealdb"
)

var (
	ErrUnknownKind = errors.New("unknown store kind")
	ErrNoDSN       = errors.New("store endpoint is required")
)

// Options selects and addresses a store.
type Options struct {
	// Kind is one of Memory, Postgres or SurrealDB.
	Kind string
	// DSN is the Postgres connection string or the SurrealDB endpoint URL.
	DSN string

	Namespace string
	Database  string
	Username  string
	Password  string

	// JSONColumns lists, per type, the columns a relational store keeps as
	// JSON text.
	JSONColumns map[string][]string

	Logger logger.Logger
}

// Validate checks that o names a known kind with the settings it needs.
func (o *Options) Validate() error {
	switch o.Kind {
	case Memory:
		return nil
	case Postgres:
		if o.DSN == "" {
			return fmt.Errorf("%w: %s", ErrNoDSN, o.Kind)
		}
	case SurrealDB:
		if o.DSN == "" {
			return fmt.Errorf("%w: %s", ErrNoDSN, o.Kind)
		}
		if o.Namespace == "" || o.Database == "" {
			return fmt.Errorf("%s store needs a namespace and a database", o.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, o.Kind)
	}
	return nil
}

// Open opens the store described by o over the schema of cfg. The returned
// cleanup function releases the connection and is never nil.
func Open(ctx context.Context, cfg *config.Config, o Options) (store.Store, func(), error) {
	if err := o.Validate(); err != nil {
		return nil, nil, err
	}
	log := o.Logger
	if log == nil {
		log = logger.Nop()
	}

	switch o.Kind {
	case Postgres:
		opts := []gormstore.Option{
			gormstore.WithMorphMap(cfg.Morphs),
			gormstore.WithLogger(log),
		}
		for t, cols := range o.JSONColumns {
			opts = append(opts, gormstore.WithJSONColumns(models.TypeTag(t), cols...))
		}
		st, err := gormstore.Open(o.DSN, cfg.Schema, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		cleanup := func() {
			if err := st.Close(); err != nil {
				log.Warn("failed to close Postgres connection", "error", err)
			}
		}
		return st, cleanup, nil

	case SurrealDB:
		db, err := surrealdb.FromEndpointURLString(ctx, o.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		cleanup := func() {
			if err := db.Close(ctx); err != nil {
				log.Warn("failed to close SurrealDB connection", "error", err)
			}
		}
		if o.Username != "" {
			token, err := db.SignIn(ctx, surrealdb.Auth{Username: o.Username, Password: o.Password})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("failed to authenticate: %w", err)
			}
			if err := db.Authenticate(ctx, token); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("failed to authenticate: %w", err)
			}
		}
		if err := db.Use(ctx, o.Namespace, o.Database); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to select %s/%s: %w", o.Namespace, o.Database, err)
		}
		st := surrealstore.New(surrealstore.NewDB(db), cfg.Schema,
			surrealstore.WithMorphMap(cfg.Morphs),
			surrealstore.WithLogger(log),
		)
		return st, cleanup, nil
	}

	return memstore.New(cfg.Schema, memstore.WithMorphMap(cfg.Morphs)), func() {}, nil
}

// ParseID turns a real id given as text into the value handed to a store:
// integral ids become int64, anything else stays a string.
func ParseID(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
