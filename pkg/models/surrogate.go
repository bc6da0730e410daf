package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix is the sentinel that starts every surrogate id and every
// reserved entity key unless a different prefix is configured.
const DefaultPrefix = "@"

// TypeTag names a record type. It is an opaque key: a table name, a model
// name or anything else the store uses to tell record types apart.
type TypeTag string

func (t TypeTag) String() string {
	return string(t)
}

// SurrogateID is the anonymized, serialization-local identifier of a record,
// textually <prefix><n>.
type SurrogateID string

func (s SurrogateID) String() string {
	return string(s)
}

// NewSurrogateID formats the n-th surrogate id for the given prefix.
func NewSurrogateID(prefix string, n uint64) SurrogateID {
	return SurrogateID(prefix + strconv.FormatUint(n, 10))
}

// ParseSurrogateID reports whether v is a surrogate id string for the given
// prefix and returns it.
func ParseSurrogateID(prefix string, v any) (SurrogateID, bool) {
	s, ok := v.(string)
	if !ok || !IsSurrogateID(prefix, s) {
		return "", false
	}
	return SurrogateID(s), true
}

// IsSurrogateID reports whether s is exactly <prefix><digits>.
func IsSurrogateID(prefix, s string) bool {
	if !strings.HasPrefix(s, prefix) || len(s) == len(prefix) {
		return false
	}
	for _, c := range s[len(prefix):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// IDField returns the reserved entity key holding the surrogate id.
func IDField(prefix string) string {
	return prefix + "id"
}

// KeyField returns the reserved entity key holding an explicit real key.
// An entity carrying it refers to a record that already exists in the
// target store.
func KeyField(prefix string) string {
	return prefix + "key"
}

// Ref is the two-element [type, id] tuple used for polymorphic and has-one
// references on the wire.
type Ref struct {
	Type TypeTag
	ID   SurrogateID
}

// Tuple returns the wire shape of the reference.
func (r Ref) Tuple() []any {
	return []any{string(r.Type), string(r.ID)}
}

// ParseRef decodes a [type, id] tuple.
func ParseRef(prefix string, v any) (Ref, error) {
	var parts []any
	switch t := v.(type) {
	case []any:
		parts = t
	case []string:
		for _, s := range t {
			parts = append(parts, s)
		}
	default:
		return Ref{}, fmt.Errorf("expected [type, id] tuple, got %T", v)
	}

	if len(parts) != 2 {
		return Ref{}, fmt.Errorf("expected [type, id] tuple, got %d elements", len(parts))
	}

	typ, ok := parts[0].(string)
	if !ok || typ == "" {
		return Ref{}, fmt.Errorf("invalid type tag in tuple: %v", parts[0])
	}

	id, ok := ParseSurrogateID(prefix, parts[1])
	if !ok {
		return Ref{}, fmt.Errorf("invalid surrogate id in tuple: %v", parts[1])
	}

	return Ref{Type: TypeTag(typ), ID: id}, nil
}
