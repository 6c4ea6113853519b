// Package realtime owns the single push-channel connection: its lifecycle,
// reconnection, room membership and inbound event dispatch.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"notify-realtime/internal/auth"
	"notify-realtime/internal/errs"
	"notify-realtime/internal/events"
	"notify-realtime/internal/models"
	"notify-realtime/internal/transport"
)

var ErrNotConnected = errors.New("push channel not connected")

// ConnectParams are the connect-time parameters of the push channel.
type ConnectParams struct {
	RoomID string
	UserID string
	Token  string
}

// Manager owns one push-channel connection and its state machine. Create it
// with New; the zero value is not usable.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	registry *events.Registry

	mu    sync.Mutex
	state models.ConnectionState
	// room is the desired room; it is joined on every transition to Connected
	room   string
	userID string
	conn   transport.Conn
	cancel context.CancelFunc
	// gen identifies the current connection loop; stale loops compare and bail
	gen      uint64
	attempts int

	wg sync.WaitGroup
}

// New creates a disconnected manager.
func New(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		registry: events.NewRegistry(cfg.Logger),
		state:    models.StateDisconnected,
	}
}

func (m *Manager) OnMessage(fn func(models.Message)) events.Subscription {
	return m.registry.OnMessage(fn)
}

func (m *Manager) OnTyping(fn func(models.TypingStatus)) events.Subscription {
	return m.registry.OnTyping(fn)
}

func (m *Manager) OnConnectionChange(fn func(models.ConnectionChange)) events.Subscription {
	return m.registry.OnConnectionChange(fn)
}

func (m *Manager) OnError(fn func(error)) events.Subscription {
	return m.registry.OnError(fn)
}

func (m *Manager) OnPresence(fn func(models.PresenceEvent)) events.Subscription {
	return m.registry.OnPresence(fn)
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the push channel is live.
func (m *Manager) IsConnected() bool {
	return m.State() == models.StateConnected
}

// CurrentRoom returns the room the manager is in or will join on connect.
func (m *Manager) CurrentRoom() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.room
}

// Connect tears down any existing connection and starts a new one in the
// background. It returns an error only when the parameters or the token are
// unusable; connection progress is reported through OnConnectionChange.
func (m *Manager) Connect(ctx context.Context, p ConnectParams) error {
	if p.UserID == "" {
		err := errs.New(errs.KindConnection, "connect", errors.New("user id is required"))
		m.registry.EmitError(err)
		return err
	}
	if _, err := auth.CheckToken(p.Token, m.cfg.Now()); err != nil {
		connErr := errs.New(errs.KindConnection, "connect", err)
		m.registry.EmitError(connErr)
		return connErr
	}

	m.mu.Lock()
	prev := m.state
	oldConn := m.conn
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	gen := m.gen
	if p.RoomID != "" {
		m.room = p.RoomID
	}
	m.userID = p.UserID
	m.conn = nil
	m.attempts = 0
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.state = models.StateConnecting
	params := transport.Params{RoomID: m.room, UserID: p.UserID, Token: p.Token}
	m.mu.Unlock()

	if oldConn != nil {
		m.logger.Info("Replacing existing push-channel connection", "userID", p.UserID)
		m.closeConn(oldConn)
	}

	m.registry.EmitConnectionChange(models.ConnectionChange{State: models.StateConnecting, Previous: prev})

	m.wg.Add(1)
	go m.run(loopCtx, gen, params)
	return nil
}

// Disconnect leaves the current room (best effort), closes the connection
// and clears room and connection state. It never reconnects.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn, room, connected := m.conn, m.room, m.state == models.StateConnected
	m.mu.Unlock()

	if connected && conn != nil && room != "" {
		if err := m.write(conn, transport.EventLeaveRoom, transport.RoomData{RoomID: room}); err != nil {
			m.logger.Debug("Leave on disconnect failed", "roomID", room, "error", err)
		}
	}

	m.mu.Lock()
	prev := m.state
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn = m.conn
	m.conn = nil
	m.room = ""
	m.gen++
	m.attempts = 0
	m.state = models.StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		m.closeConn(conn)
	}
	if prev != models.StateDisconnected {
		m.logger.Info("Push channel disconnected", "previous", prev.String())
		m.registry.EmitConnectionChange(models.ConnectionChange{
			State:    models.StateDisconnected,
			Previous: prev,
			Reason:   "client disconnect",
		})
	}
}

// Close disconnects and waits for the background loop to exit. Do not call
// it from an event handler.
func (m *Manager) Close() {
	m.Disconnect()
	m.wg.Wait()
}

// Emit sends an ephemeral event on the push channel.
func (m *Manager) Emit(event transport.Event, data any) error {
	if !event.IsOutbound() {
		return fmt.Errorf("event %q cannot be emitted by clients", event)
	}
	m.mu.Lock()
	conn, connected := m.conn, m.state == models.StateConnected
	m.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	return m.write(conn, event, data)
}

func (m *Manager) write(conn transport.Conn, event transport.Event, data any) error {
	f, err := transport.NewFrame(event, data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, f)
}

func (m *Manager) closeConn(conn transport.Conn) {
	if err := conn.Close(); err != nil {
		m.logger.Debug("Error closing connection", "transport", conn.Transport(), "error", err)
	}
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// run is the connection loop of one Connect call.
func (m *Manager) run(ctx context.Context, gen uint64, params transport.Params) {
	defer m.wg.Done()

	delays := newReconnectDelays(m.cfg)
	for {
		conn, err := transport.Negotiate(ctx, m.cfg.Endpoint, params, m.cfg.Transports)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !m.connectFailed(gen, err) {
				return
			}
			if !sleep(ctx, delays.next()) {
				return
			}
			continue
		}

		if !m.connected(gen, conn) {
			m.closeConn(conn)
			return
		}
		connectedAt := m.cfg.Now()

		serverClosed, reason, err := m.readLoop(ctx, gen, conn)
		m.closeConn(conn)
		if ctx.Err() != nil {
			return
		}
		stable := m.cfg.Now().Sub(connectedAt) >= m.cfg.StableAfter
		if stable {
			delays.reset()
		}
		if !m.dropped(gen, reason, err, stable) {
			return
		}
		// A server close of a stable connection is answered with one
		// immediate reconnect; everything else waits out the backoff.
		if stable && serverClosed {
			continue
		}
		if !sleep(ctx, delays.next()) {
			return
		}
	}
}

// connectFailed records a failed attempt and reports whether to retry.
func (m *Manager) connectFailed(gen uint64, cause error) bool {
	connErr := errs.New(errs.KindConnection, "connect", cause)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.attempts++
	attempts := m.attempts
	prev := m.state
	exhausted := attempts >= m.cfg.MaxReconnectAttempts
	if exhausted {
		m.failLocked()
	} else {
		m.state = models.StateReconnecting
	}
	m.mu.Unlock()

	if exhausted {
		m.giveUp(prev, attempts, connErr)
		return false
	}

	m.logger.Warn("Push channel connect error", "attempt", attempts, "max", m.cfg.MaxReconnectAttempts, "error", cause)
	m.registry.EmitConnectionChange(models.ConnectionChange{
		State:    models.StateReconnecting,
		Previous: prev,
		Attempt:  attempts,
		Err:      connErr,
	})
	return true
}

// connected installs conn and replays the desired room join.
func (m *Manager) connected(gen uint64, conn transport.Conn) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	prev := m.state
	attempts := m.attempts
	m.conn = conn
	m.state = models.StateConnected
	room, userID := m.room, m.userID
	m.mu.Unlock()

	m.logger.Info("Push channel connected", "transport", conn.Transport(), "userID", userID, "roomID", room, "afterAttempts", attempts)

	if room != "" {
		if err := m.write(conn, transport.EventJoinRoom, transport.RoomData{RoomID: room}); err != nil {
			m.logger.Warn("Failed to rejoin room", "roomID", room, "error", err)
		}
	}

	m.registry.EmitConnectionChange(models.ConnectionChange{
		State:    models.StateConnected,
		Previous: prev,
		Attempt:  attempts,
	})
	return true
}

// giveUp publishes the Failed transition and ReconnectExhausted. The caller
// has already set StateFailed.
func (m *Manager) giveUp(prev models.ConnectionState, attempts int, cause error) {
	failure := errs.New(errs.KindReconnectExhausted, "connect",
		fmt.Errorf("gave up after %d attempts: %w", attempts, cause))
	m.logger.Error("Push channel connection failed", "attempts", attempts, "error", cause)
	m.registry.EmitConnectionChange(models.ConnectionChange{
		State:    models.StateFailed,
		Previous: prev,
		Attempt:  attempts,
		Err:      failure,
	})
	m.registry.EmitError(failure)
}

// failLocked moves to StateFailed and stops the connection loop.
func (m *Manager) failLocked() {
	m.state = models.StateFailed
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// dropped handles an unexpected end of the read loop and reports whether
// the loop should reconnect. A connection that died before it became stable
// counts as a failed attempt.
func (m *Manager) dropped(gen uint64, reason string, cause error, stable bool) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	prev := m.state
	m.conn = nil
	if stable {
		m.attempts = 0
	} else {
		m.attempts++
	}
	attempts := m.attempts
	exhausted := !stable && attempts >= m.cfg.MaxReconnectAttempts
	if exhausted {
		m.failLocked()
	} else {
		m.state = models.StateReconnecting
	}
	m.mu.Unlock()

	if reason == "" && cause != nil {
		reason = cause.Error()
	}
	if exhausted {
		m.giveUp(prev, attempts, errs.New(errs.KindConnection, "connect", fmt.Errorf("dropped before stable: %s: %w", reason, cause)))
		return false
	}

	m.logger.Warn("Push channel dropped", "reason", reason, "stable", stable, "attempt", attempts)
	m.registry.EmitConnectionChange(models.ConnectionChange{
		State:    models.StateReconnecting,
		Previous: prev,
		Attempt:  attempts,
		Reason:   reason,
		Err:      cause,
	})
	return true
}

// readLoop dispatches inbound frames until the connection ends.
func (m *Manager) readLoop(ctx context.Context, gen uint64, conn transport.Conn) (serverClosed bool, reason string, err error) {
	for {
		f, err := conn.Read(ctx)
		if err != nil {
			serverClosed = errors.Is(err, transport.ErrServerClosed) || reason == transport.ReasonServerDisconnect
			return serverClosed, reason, err
		}
		if !m.isCurrent(gen) {
			return false, reason, transport.ErrClosed
		}
		if f.Event == transport.EventDisconnect {
			var d transport.DisconnectData
			if err := f.Decode(&d); err == nil {
				reason = d.Reason
			}
			continue
		}
		m.dispatch(f)
	}
}
