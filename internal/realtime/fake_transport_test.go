package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"notify-realtime/internal/models"
	"notify-realtime/internal/transport"
)

var errDialRefused = errors.New("dial refused")

// fakeTransport fails the first `failures` dials (all of them when
// failures < 0) and hands every successful connection to the test.
type fakeTransport struct {
	name     string
	failures int
	// kick makes every accepted connection end with a server close at once
	kick bool

	mu    sync.Mutex
	dials int
	conns chan *fakeConn
}

func newFakeTransport(name string, failures int) *fakeTransport {
	return &fakeTransport{name: name, failures: failures, conns: make(chan *fakeConn, 16)}
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Dial(ctx context.Context, endpoint string, p transport.Params) (transport.Conn, error) {
	t.mu.Lock()
	t.dials++
	n := t.dials
	t.mu.Unlock()

	if t.failures < 0 || n <= t.failures {
		return nil, errDialRefused
	}
	c := newFakeConn(t.name, p)
	if t.kick {
		c.readErr <- transport.ErrServerClosed
	}
	t.conns <- c
	return c, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *fakeTransport) nextConn(tb testing.TB) *fakeConn {
	tb.Helper()
	select {
	case c := <-t.conns:
		return c
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for a connection")
		return nil
	}
}

type fakeConn struct {
	name    string
	params  transport.Params
	inbound chan transport.Frame
	readErr chan error
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written []transport.Frame
}

func newFakeConn(name string, p transport.Params) *fakeConn {
	return &fakeConn{
		name:    name,
		params:  p,
		inbound: make(chan transport.Frame, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Transport() string { return c.name }

// Read drains queued frames before it reports a pending read error.
func (c *fakeConn) Read(ctx context.Context) (transport.Frame, error) {
	select {
	case f := <-c.inbound:
		return f, nil
	default:
	}
	select {
	case f := <-c.inbound:
		return f, nil
	case err := <-c.readErr:
		return transport.Frame{}, err
	case <-c.closed:
		return transport.Frame{}, transport.ErrClosed
	case <-ctx.Done():
		return transport.Frame{}, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, f transport.Frame) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// sent returns the frames written for event, decoded room ids included.
func (c *fakeConn) sent(event transport.Event) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rooms []string
	for _, f := range c.written {
		if f.Event != event {
			continue
		}
		var d transport.RoomData
		json.Unmarshal(f.Data, &d)
		rooms = append(rooms, d.RoomID)
	}
	return rooms
}

func (c *fakeConn) push(tb testing.TB, event transport.Event, data any) {
	tb.Helper()
	f, err := transport.NewFrame(event, data)
	require.NoError(tb, err)
	c.inbound <- f
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testToken(tb testing.TB, userID string) string {
	tb.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(tb, err)
	return token
}

func newTestManager(tb testing.TB, transports ...transport.Transport) *Manager {
	tb.Helper()
	m := New(Config{
		Endpoint:             "http://push.test/realtime",
		Transports:           transports,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Millisecond,
		ReconnectDelayMax:    5 * time.Millisecond,
		Logger:               quietLogger(),
	})
	tb.Cleanup(m.Close)
	return m
}

// recordChanges subscribes a buffered channel to connection changes.
func recordChanges(m *Manager) chan models.ConnectionChange {
	ch := make(chan models.ConnectionChange, 64)
	m.OnConnectionChange(func(c models.ConnectionChange) { ch <- c })
	return ch
}

func waitForState(tb testing.TB, ch chan models.ConnectionChange, state models.ConnectionState) models.ConnectionChange {
	tb.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-ch:
			if c.State == state {
				return c
			}
		case <-deadline:
			tb.Fatalf("timed out waiting for state %s", state)
			return models.ConnectionChange{}
		}
	}
}
