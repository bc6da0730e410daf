package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/models"
)

type JSONMarshaler struct{}

func (JSONMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONMarshaler) NewEncoder(w io.Writer) Encoder {
	return json.NewEncoder(w)
}

type JSONUnmarshaler struct{}

// Unmarshal decodes numbers as int64 when integral, float64 otherwise.
func (JSONUnmarshaler) Unmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	normalizeInto(dst)
	return nil
}

func (JSONUnmarshaler) NewDecoder(r io.Reader) Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return numberDecoder{dec}
}

type numberDecoder struct {
	dec *json.Decoder
}

func (d numberDecoder) Decode(v any) error {
	if err := d.dec.Decode(v); err != nil {
		return err
	}
	normalizeInto(v)
	return nil
}

// EncodeGraph writes g as one JSON object, keys in graph type order.
func EncodeGraph(w io.Writer, g *models.Graph) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range g.Types() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(t))
		if err != nil {
			return err
		}
		records, err := json.Marshal(g.Records(t))
		if err != nil {
			return fmt.Errorf("encode %s: %w", t, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(records)
	}
	buf.WriteByte('}')
	_, err := w.Write(buf.Bytes())
	return err
}

// MarshalGraph returns the JSON form of g.
func MarshalGraph(g *models.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeGraph(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGraph parses the JSON form of a graph, keeping the type order of the
// document. Every record must carry a surrogate id with prefix.
func DecodeGraph(data []byte, prefix string) (*models.Graph, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", constants.ErrMalformedInput)
	}

	g := models.NewGraph()
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		t := models.TypeTag(key)
		if dataType != jsonparser.Array {
			return fmt.Errorf("%w: records of %s are not an array", constants.ErrMalformedInput, t)
		}
		var records []models.Entity
		if err := (JSONUnmarshaler{}).Unmarshal(value, &records); err != nil {
			return fmt.Errorf("%w: records of %s: %v", constants.ErrMalformedInput, t, err)
		}
		if err := g.AddFragment(prefix, models.Fragment{Type: t, Records: records}); err != nil {
			return fmt.Errorf("%w: %v", constants.ErrMalformedInput, err)
		}
		return nil
	})
	if errors.Is(err, constants.ErrMalformedInput) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constants.ErrMalformedInput, err)
	}
	return g, nil
}

// JSONStream reads a sequence of JSON fragment objects, as written by
// JSONWriter. It implements deserializer.Provider.
type JSONStream struct {
	dec Decoder
}

func NewJSONStream(r io.Reader) *JSONStream {
	return &JSONStream{dec: JSONUnmarshaler{}.NewDecoder(r)}
}

func (s *JSONStream) Next(ctx context.Context) (models.Fragment, bool, error) {
	if err := ctx.Err(); err != nil {
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

// JSONWriter writes fragments as newline separated JSON objects.
type JSONWriter struct {
	enc Encoder
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: JSONMarshaler{}.NewEncoder(w)}
}

func (w *JSONWriter) WriteFragment(f models.Fragment) error {
	return w.enc.Encode(f)
}

// normalizeInto rewrites json.Number leaves found under v, which must be a
// pointer to a decoded value.
func normalizeInto(v any) {
	switch p := v.(type) {
	case *any:
		*p = normalize(*p)
	case *map[string]any:
		*p, _ = normalize(*p).(map[string]any)
	case *[]any:
		*p, _ = normalize(*p).([]any)
	case *models.Entity:
		for k, child := range *p {
			(*p)[k] = normalize(child)
		}
	case *[]models.Entity:
		for _, e := range *p {
			for k, child := range e {
				e[k] = normalize(child)
			}
		}
	case *models.Fragment:
		normalizeInto(&p.Records)
	case *[]models.Fragment:
		for i := range *p {
			normalizeInto(&(*p)[i].Records)
		}
	}
}

func normalize(v any) any {
	switch c := v.(type) {
	case json.Number:
		if n, err := c.Int64(); err == nil {
			return n
		}
		if f, err := c.Float64(); err == nil {
			return f
		}
		return c.String()
	case map[string]any:
		for k, child := range c {
			c[k] = normalize(child)
		}
		return c
	case []any:
		for i, child := range c {
			c[i] = normalize(child)
		}
		return c
	}
	return v
}
