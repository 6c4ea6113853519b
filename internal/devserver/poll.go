package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"notify-realtime/internal/transport"
)

// pollClient is a peer connected over HTTP long-polling. Frames queue up
// between polls.
type pollClient struct {
	id     string
	userID string

	mu       sync.Mutex
	queue    []transport.Frame
	closed   bool
	lastSeen time.Time
	notify   chan struct{}
}

func newPollClient(userID string) *pollClient {
	return &pollClient{
		id:       uuid.New().String(),
		userID:   userID,
		lastSeen: time.Now(),
		notify:   make(chan struct{}, 1),
	}
}

func (c *pollClient) ID() string     { return c.id }
func (c *pollClient) UserID() string { return c.userID }

func (c *pollClient) Send(f transport.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.queue = append(c.queue, f)
	c.wake()
	return true
}

// Close queues the disconnect frame; the poll after it answers 410.
func (c *pollClient) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, newFrame(transport.EventDisconnect, transport.DisconnectData{Reason: reason}))
	c.closed = true
	c.wake()
}

func (c *pollClient) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// drain waits up to hold for queued frames. gone is true once the session
// was closed and everything queued before the close has been delivered.
func (c *pollClient) drain(ctx context.Context, hold time.Duration) (frames []transport.Frame, gone bool) {
	timer := time.NewTimer(hold)
	defer timer.Stop()
	for {
		c.mu.Lock()
		c.lastSeen = time.Now()
		if len(c.queue) > 0 {
			frames, c.queue = c.queue, nil
			c.mu.Unlock()
			return frames, false
		}
		if c.closed {
			c.mu.Unlock()
			return nil, true
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-timer.C:
			return []transport.Frame{}, false
		case <-ctx.Done():
			return []transport.Frame{}, false
		}
	}
}

func (c *pollClient) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// pollSessions indexes polling clients by session id.
type pollSessions struct {
	mu       sync.Mutex
	sessions map[string]*pollClient
}

func newPollSessions() *pollSessions {
	return &pollSessions{sessions: make(map[string]*pollClient)}
}

func (s *pollSessions) add(c *pollClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[c.id] = c
}

// get returns the session sid if it belongs to userID.
func (s *pollSessions) get(sid, userID string) (*pollClient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[sid]
	if !ok || c.userID != userID {
		return nil, false
	}
	return c, true
}

func (s *pollSessions) remove(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
}

// expired removes and returns sessions not polled since cutoff.
func (s *pollSessions) expired(cutoff time.Time) []*pollClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*pollClient
	for sid, c := range s.sessions {
		if c.idleSince().Before(cutoff) {
			out = append(out, c)
			delete(s.sessions, sid)
		}
	}
	return out
}
