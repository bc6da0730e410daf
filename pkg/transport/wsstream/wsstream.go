// Package wsstream carries fragments over a websocket.
//
// The sender writes one binary message per fragment, each a CBOR encoded
// models.Fragment, then an empty binary message marking the end of the
// stream. The receiver may answer with one JSON text message before either
// side closes the connection.
package wsstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/surrealdb/surrealport/pkg/codec"
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
)

const (
	// CloseMessageCode is the normal closure code sent by Close.
	CloseMessageCode = 1000
	// DefaultTimeout bounds every read and write without a context deadline.
	DefaultTimeout = 30 * time.Second
	// DefaultReadLimit caps the size of one received message.
	DefaultReadLimit = 64 << 20
)

var (
	ErrClosed     = errors.New("stream closed before end marker")
	ErrNoReply    = errors.New("peer sent no reply")
	ErrUnexpected = errors.New("unexpected message type")
	ErrTooLarge   = errors.New("message exceeds read limit")
)

type Option func(c *Conn)

func WithTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.timeout = d
	}
}

// WithReadLimit caps the size of one received message. Zero or less
// removes the cap.
func WithReadLimit(n int64) Option {
	return func(c *Conn) {
		c.readLimit = n
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Conn) {
		c.log = log
	}
}

// Conn is one end of a fragment stream.
type Conn struct {
	conn      *gorilla.Conn
	connLock  sync.Mutex
	timeout   time.Duration
	readLimit int64
	log       logger.Logger
	enc       codec.Marshaler
	dec       codec.Unmarshaler
	ended     bool
}

func newConn(conn *gorilla.Conn, opts ...Option) *Conn {
	c := &Conn{
		conn:    conn,
		timeout:   DefaultTimeout,
		readLimit: DefaultReadLimit,
		log:       logger.Nop(),
		enc:       codec.CborMarshaler{},
		dec:       codec.CborUnmarshaler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.readLimit > 0 {
		conn.SetReadLimit(c.readLimit)
	}
	return c
}

// Dial connects to a websocket endpoint serving Upgrade.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	dialer := *gorilla.DefaultDialer
	dialer.EnableCompression = true

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return newConn(conn, opts...), nil
}

var upgrader = gorilla.Upgrader{
	EnableCompression: true,
	CheckOrigin:       func(*http.Request) bool { return true },
}

// Upgrade turns an HTTP request into the receiving end of a stream.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...Option) (*Conn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newConn(conn, opts...), nil
}

func (c *Conn) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(c.timeout)
}

func (c *Conn) write(ctx context.Context, messageType int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.connLock.Lock()
	defer c.connLock.Unlock()

	if err := c.conn.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Conn) read(ctx context.Context) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return 0, nil, err
	}
	return c.conn.ReadMessage()
}

// Send writes one fragment.
func (c *Conn) Send(ctx context.Context, f models.Fragment) error {
	data, err := c.enc.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.Type, err)
	}
	c.log.Debug("sending fragment", "type", f.Type, "records", len(f.Records))
	return c.write(ctx, gorilla.BinaryMessage, data)
}

// End writes the end of stream marker.
func (c *Conn) End(ctx context.Context) error {
	return c.write(ctx, gorilla.BinaryMessage, nil)
}

// SendGraph writes every fragment of g followed by the end marker.
func (c *Conn) SendGraph(ctx context.Context, g *models.Graph) error {
	for _, f := range g.Fragments() {
		if err := c.Send(ctx, f); err != nil {
			return err
		}
	}
	return c.End(ctx)
}

// Next reads the next fragment. It implements deserializer.Provider.
func (c *Conn) Next(ctx context.Context) (models.Fragment, bool, error) {
	if c.ended {
		return models.Fragment{}, false, nil
	}
	mt, data, err := c.read(ctx)
	if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		return models.Fragment{}, false, ErrClosed
	}
	if errors.Is(err, gorilla.ErrReadLimit) {
		return models.Fragment{}, false, fmt.Errorf("%w: %w", constants.ErrMalformedInput, ErrTooLarge)
	}
	if err != nil {
		return models.Fragment{}, false, err
	}
	if mt != gorilla.BinaryMessage {
		return models.Fragment{}, false, fmt.Errorf("%w: %w %d", constants.ErrMalformedInput, ErrUnexpected, mt)
	}
	if len(data) == 0 {
		c.ended = true
		return models.Fragment{}, false, nil
	}

	var f models.Fragment
	if err := c.dec.Unmarshal(data, &f); err != nil {
		return models.Fragment{}, false, fmt.Errorf("%w: %v", constants.ErrMalformedInput, err)
	}
	if f.Type == "" {
		return models.Fragment{}, false, fmt.Errorf("%w: fragment without type", constants.ErrMalformedInput)
	}
	c.log.Debug("received fragment", "type", f.Type, "records", len(f.Records))
	return f, true, nil
}

// Reply sends v as a JSON text message.
func (c *Conn) Reply(ctx context.Context, v any) error {
	data, err := codec.JSONMarshaler{}.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(ctx, gorilla.TextMessage, data)
}

// Await reads the peer's JSON reply into v.
func (c *Conn) Await(ctx context.Context, v any) error {
	mt, data, err := c.read(ctx)
	if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		return ErrNoReply
	}
	if err != nil {
		return err
	}
	if mt != gorilla.TextMessage {
		return fmt.Errorf("%w %d", ErrUnexpected, mt)
	}
	return codec.JSONUnmarshaler{}.Unmarshal(data, v)
}

// Close sends a normal close frame and closes the connection.
func (c *Conn) Close() error {
	c.connLock.Lock()
	err := c.conn.WriteControl(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(CloseMessageCode, ""), time.Now().Add(time.Second))
	c.connLock.Unlock()
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, gorilla.ErrCloseSent) {
		return nil
	}
	return err
}
