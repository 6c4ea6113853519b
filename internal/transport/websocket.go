package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message or ping from the server
	pingWait = 60 * time.Second

	// Maximum message size allowed from the server
	maxMessageSize = 64 * 1024
)

// Websocket is the preferred, low-latency transport.
type Websocket struct {
	Dialer *websocket.Dialer
	Logger *slog.Logger
	// ReadWait is how long the connection may stay silent, data and pings
	// alike, before it is considered dead. 0 means 60s.
	ReadWait time.Duration
}

// NewWebsocket returns a websocket transport with a bounded handshake.
func NewWebsocket(logger *slog.Logger) *Websocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Websocket{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		Logger: logger,
	}
}

func (w *Websocket) Name() string { return NameWebsocket }

func (w *Websocket) Dial(ctx context.Context, endpoint string, p Params) (Conn, error) {
	target := httpToWS(endpoint) + "/ws?" + p.query().Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.Token)

	conn, resp, err := w.Dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	readWait := w.ReadWait
	if readWait <= 0 {
		readWait = pingWait
	}
	c := &wsConn{conn: conn, logger: w.Logger, readWait: readWait}
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	w.Logger.Debug("Websocket connection established", "endpoint", endpoint, "userID", p.UserID)
	return c, nil
}

type wsConn struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	readWait time.Duration

	writeMu sync.Mutex
	closed  int32 // atomic flag to track if the connection is closed

	// frames batched into one websocket message, not yet returned by Read
	pending [][]byte
}

func (c *wsConn) Transport() string { return NameWebsocket }

func (c *wsConn) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *wsConn) Read(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if len(c.pending) > 0 {
			raw := c.pending[0]
			c.pending = c.pending[1:]
			if len(bytes.TrimSpace(raw)) == 0 {
				continue
			}
			var f Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				c.logger.Warn("Dropping malformed frame", "error", err)
				continue
			}
			return f, nil
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return Frame{}, ErrClosed
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return Frame{}, fmt.Errorf("%w: %v", ErrServerClosed, err)
			}
			return Frame{}, fmt.Errorf("websocket read: %w", err)
		}
		c.conn.SetReadDeadline(time.Now().Add(c.readWait))
		// The server batches queued frames into one message, newline separated
		c.pending = bytes.Split(data, []byte{'\n'})
	}
}

func (c *wsConn) Write(ctx context.Context, f Frame) error {
	if c.isClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (c *wsConn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
