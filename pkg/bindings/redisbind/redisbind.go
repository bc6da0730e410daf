// Package redisbind keeps the binding table of an import in a Redis hash, so
// imports too large for memory, or spread over several processes, share one
// write-once surrogate to real id map.
//
// Each table is a single hash; fields are surrogate ids and values the real
// ids encoded as CBOR. Bind uses HSETNX, so a second bind of the same id
// fails with constants.ErrBindCollision even across processes.
package redisbind

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surrealdb/surrealport/pkg/codec"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/linker"
	"github.com/surrealdb/surrealport/pkg/models"
)

// DefaultKeyPrefix namespaces binding hashes.
const DefaultKeyPrefix = "surrealport:bindings:"

// Options configures the Redis connection.
type Options struct {
	// URL is the Redis connection string, e.g. "redis://localhost:6379".
	URL string
	TLS *tls.Config

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// TTL expires a table after the last bind. Zero keeps it forever.
	TTL time.Duration
}

// Client opens binding tables on one Redis server.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses opts.URL and pings the server.
func Connect(opts Options) (*Client, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	rdb := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: opts.TTL}, nil
}

// NewClient wraps an existing go-redis client.
func NewClient(rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{rdb: rdb, ttl: ttl}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Table returns the binding table stored under DefaultKeyPrefix+name.
func (c *Client) Table(name string) *Table {
	return &Table{c: c, key: DefaultKeyPrefix + name}
}

// Factory returns a function yielding a fresh table per call, suitable for
// deserializer.WithBindings. Tables are named by newName.
func (c *Client) Factory(newName func() string) func() linker.Bindings {
	return func() linker.Bindings {
		return c.Table(newName())
	}
}

// Table is one binding table.
type Table struct {
	c   *Client
	key string
}

var _ linker.Bindings = (*Table)(nil)

// Key returns the Redis key of the hash.
func (t *Table) Key() string {
	return t.key
}

func (t *Table) Bind(ctx context.Context, id models.SurrogateID, realID any) error {
	data, err := codec.CborMarshaler{}.Marshal(realID)
	if err != nil {
		return fmt.Errorf("failed to encode real id of %s: %w", id, err)
	}

	set, err := t.c.rdb.HSetNX(ctx, t.key, string(id), data).Result()
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", id, err)
	}
	if !set {
		prev, _, _ := t.Lookup(ctx, id)
		return fmt.Errorf("%w: %s already bound to %v", constants.ErrBindCollision, id, prev)
	}

	if t.c.ttl > 0 {
		if err := t.c.rdb.Expire(ctx, t.key, t.c.ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh ttl of %s: %w", t.key, err)
		}
	}
	return nil
}

func (t *Table) Lookup(ctx context.Context, id models.SurrogateID) (any, bool, error) {
	data, err := t.c.rdb.HGet(ctx, t.key, string(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up %s: %w", id, err)
	}
	realID, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode real id of %s: %w", id, err)
	}
	return realID, true, nil
}

func (t *Table) Snapshot(ctx context.Context) (map[models.SurrogateID]any, error) {
	all, err := t.c.rdb.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.key, err)
	}
	out := make(map[models.SurrogateID]any, len(all))
	for field, raw := range all {
		realID, err := decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode real id of %s: %w", field, err)
		}
		out[models.SurrogateID(field)] = realID
	}
	return out, nil
}

// Len returns the number of bindings.
func (t *Table) Len(ctx context.Context) (int64, error) {
	return t.c.rdb.HLen(ctx, t.key).Result()
}

// Drop deletes the table.
func (t *Table) Drop(ctx context.Context) error {
	return t.c.rdb.Del(ctx, t.key).Err()
}

func decode(data []byte) (any, error) {
	var v any
	if err := (codec.CborUnmarshaler{}).Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
