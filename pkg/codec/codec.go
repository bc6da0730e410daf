// Package codec reads and writes anonymized graphs.
//
// Two wire forms are supported: a JSON object mapping each type to its
// records, in graph type order, and a CBOR sequence of fragments behind a
// magic header, suited to dumps and streams too large to hold at once.
// Both sides of each form can work fragment by fragment.
package codec

import (
	"errors"
	"io"
)

var ErrBadMagic = errors.New("not a surrealport dump")

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
	NewDecoder(r io.Reader) Decoder
}
