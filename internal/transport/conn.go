package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
)

// compressThreshold is the payload size above which an outgoing message is
// gzipped before being written to the socket (spec §4.7/§6.2 leave codec
// and framing to the implementation).
const compressThreshold = 4096

// gzipMagicByte prefixes a gzip-compressed frame so the reader can tell it
// apart from a plain JSON frame without a side channel.
const gzipMagicByte = 0x1f // matches gzip's own magic number, reused as the marker

// Handler processes one decoded Envelope read from the connection.
type Handler func(Envelope)

// Conn wraps a *websocket.Conn with a read-loop-plus-outgoing-queue shape:
// a single goroutine drains Outgoing and writes, while Run blocks reading
// and dispatching to Handler.
type Conn struct {
	ws       *websocket.Conn
	Outgoing chan Envelope

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// NewConn wraps an already-established websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:       ws,
		Outgoing: make(chan Envelope, 256),
		closed:   make(chan struct{}),
	}
}

// Send enqueues an event for the writer goroutine. It never blocks
// indefinitely on a slow peer beyond the channel's buffer (spec §5: "no
// operation blocks indefinitely") — a full queue is treated as backpressure
// and the caller should drop the connection rather than block the whole
// service.
func (c *Conn) Send(env Envelope) error {
	select {
	case c.Outgoing <- env:
		return nil
	case <-c.closed:
		return fmt.Errorf("send on closed connection")
	default:
		return fmt.Errorf("outgoing queue full, backpressure")
	}
}

// Run starts the writer goroutine and blocks reading frames, invoking
// handler for each decoded Envelope, until the socket errors or ctx is
// canceled. It returns the terminal error, mirroring ConnectAndStart's
// "for { ReadPacket(); dispatch }" loop.
func (c *Conn) Run(ctx context.Context, handler Handler) error {
	go c.writeLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		default:
		}

		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.Close()
			return fmt.Errorf("read message: %w", err)
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		env, err := decodeFrame(data)
		if err != nil {
			// Malformed frame: isolate and continue, matching the
			// "Decode" error class (spec §7) rather than killing the
			// connection over one bad message.
			continue
		}
		handler(env)
	}
}

func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case env, ok := <-c.Outgoing:
			if !ok {
				return
			}
			if err := c.writeFrame(env); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) writeFrame(env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if len(raw) < compressThreshold {
		return c.ws.WriteMessage(websocket.TextMessage, raw)
	}

	var buf bytes.Buffer
	buf.WriteByte(gzipMagicByte)
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return fmt.Errorf("gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func decodeFrame(data []byte) (Envelope, error) {
	var env Envelope
	if len(data) > 0 && data[0] == gzipMagicByte {
		gz, err := gzip.NewReader(bytes.NewReader(data[1:]))
		if err != nil {
			return env, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		plain, err := io.ReadAll(gz)
		if err != nil {
			return env, fmt.Errorf("gzip read: %w", err)
		}
		data = plain
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// Close idempotently shuts down the connection and its writer goroutine.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.ws.Close()
}

// SetReadDeadline arms the socket-level read timeout spec §5 relies on to
// trigger a reconnect: "Ingest read timeouts trigger a reconnect."
func (c *Conn) SetReadDeadline(d time.Duration) error {
	return c.ws.SetReadDeadline(time.Now().Add(d))
}
