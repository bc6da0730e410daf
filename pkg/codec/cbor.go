package codec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
)

// Magic starts every CBOR dump.
var Magic = []byte(constants.DumpFormat)

type CborMarshaler struct{}

func (CborMarshaler) Marshal(v any) ([]byte, error) {
	return getCborEncoder().Marshal(v)
}

func (CborMarshaler) NewEncoder(w io.Writer) Encoder {
	return getCborEncoder().NewEncoder(w)
}

type CborUnmarshaler struct{}

func (CborUnmarshaler) Unmarshal(data []byte, dst any) error {
	return getCborDecoder().Unmarshal(data, dst)
}

func (CborUnmarshaler) NewDecoder(r io.Reader) Decoder {
	return getCborDecoder().NewDecoder(r)
}

// getCborEncoder sorts map keys canonically so equal graphs encode to equal
// bytes.
func getCborEncoder() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:    cbor.SortCanonical,
		Time:    cbor.TimeRFC3339,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// MaxContainerSize bounds the arrays and maps a dump may hold. Writers chunk
// fragments well below it.
const MaxContainerSize = 1 << 24

// DefaultChunkSize is the number of records per fragment a CBORWriter emits.
const DefaultChunkSize = 10000

// getCborDecoder decodes integers as int64, matching the JSON codec.
func getCborDecoder() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxArrayElements: MaxContainerSize,
		MaxMapPairs:      MaxContainerSize,
		IntDec:         cbor.IntDecConvertSigned,
		TimeTagToAny:   cbor.TimeTagToTime,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// CBORWriter writes a dump: the magic header followed by one CBOR item per
// fragment. Fragments larger than the chunk size are split into several
// fragments of the same type.
type CBORWriter struct {
	w       io.Writer
	enc     Encoder
	chunk   int
	written int
	started bool
}

type WriterOption func(*CBORWriter)

// WithChunkSize sets the maximum number of records per written fragment.
// Zero or less writes fragments whole.
func WithChunkSize(n int) WriterOption {
	return func(w *CBORWriter) {
		w.chunk = n
	}
}

func NewCBORWriter(w io.Writer, opts ...WriterOption) *CBORWriter {
	cw := &CBORWriter{w: w, enc: CborMarshaler{}.NewEncoder(w), chunk: DefaultChunkSize}
	for _, opt := range opts {
		opt(cw)
	}
	return cw
}

func (w *CBORWriter) start() error {
	if w.started {
		return nil
	}
	if _, err := w.w.Write(Magic); err != nil {
		return err
	}
	w.started = true
	return nil
}

func (w *CBORWriter) WriteFragment(f models.Fragment) error {
	if err := w.start(); err != nil {
		return err
	}
	if w.chunk <= 0 || len(f.Records) <= w.chunk {
		return w.encode(f)
	}
	for lo := 0; lo < len(f.Records); lo += w.chunk {
		hi := min(lo+w.chunk, len(f.Records))
		if err := w.encode(models.Fragment{Type: f.Type, Records: f.Records[lo:hi]}); err != nil {
			return err
		}
	}
	return nil
}

func (w *CBORWriter) encode(f models.Fragment) error {
	if err := w.enc.Encode(f); err != nil {
		return err
	}
	w.written++
	return nil
}

// WriteGraph writes every fragment of g.
func (w *CBORWriter) WriteGraph(g *models.Graph) error {
	if err := w.start(); err != nil {
		return err
	}
	for _, f := range g.Fragments() {
		if err := w.WriteFragment(f); err != nil {
			return fmt.Errorf("encode %s: %w", f.Type, err)
		}
	}
	return nil
}

// Written returns the number of fragments written so far.
func (w *CBORWriter) Written() int {
	return w.written
}

// CBORStream reads a dump fragment by fragment. It implements
// deserializer.Provider.
type CBORStream struct {
	r       *bufio.Reader
	dec     Decoder
	checked bool
}

func NewCBORStream(r io.Reader) *CBORStream {
	br := bufio.NewReader(r)
	return &CBORStream{r: br, dec: CborUnmarshaler{}.NewDecoder(br)}
}

func (s *CBORStream) checkMagic() error {
	if s.checked {
		return nil
	}
	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(s.r, head); err != nil {
		return fmt.Errorf("%w: %w: %v", constants.ErrMalformedInput, ErrBadMagic, err)
	}
	if !bytes.Equal(head, Magic) {
		return fmt.Errorf("%w: %w", constants.ErrMalformedInput, ErrBadMagic)
	}
	s.checked = true
	return nil
}

func (s *CBORStream) Next(ctx context.Context) (models.Fragment, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Fragment{}, false, err
	}
	if err := s.checkMagic(); err != nil {
		return models.Fragment{}, false, err
	}
	var f models.Fragment
	err := s.dec.Decode(&f)
	if errors.Is(err, io.EOF) {
		return models.Fragment{}, false, nil
	}
	if err != nil {
		return models.Fragment{}, false, fmt.Errorf("%w: %v", constants.ErrMalformedInput, err)
	}
	if f.Type == "" {
		return models.Fragment{}, false, fmt.Errorf("%w: fragment without type", constants.ErrMalformedInput)
	}
	return f, true, nil
}

// ReadGraph drains a dump into a graph.
func ReadGraph(ctx context.Context, r io.Reader, prefix string) (*models.Graph, error) {
	s := NewCBORStream(r)
	g := models.NewGraph()
	for {
		f, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return g, nil
		}
		if err := g.AddFragment(prefix, f); err != nil {
			return nil, fmt.Errorf("%w: %v", constants.ErrMalformedInput, err)
		}
	}
}
