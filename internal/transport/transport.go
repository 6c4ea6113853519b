package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Params are the connect-time parameters of the push channel.
type Params struct {
	RoomID string
	UserID string
	Token  string
}

func (p Params) query() url.Values {
	q := url.Values{}
	if p.RoomID != "" {
		q.Set("roomId", p.RoomID)
	}
	q.Set("userId", p.UserID)
	return q
}

// Conn is one established push-channel connection. Read is called from a
// single goroutine; Write and Close may be called concurrently with it.
type Conn interface {
	Transport() string
	Read(ctx context.Context) (Frame, error)
	Write(ctx context.Context, f Frame) error
	Close() error
}

// Transport dials a Conn to a push-channel endpoint.
type Transport interface {
	Name() string
	Dial(ctx context.Context, endpoint string, p Params) (Conn, error)
}

// Names of the built-in transports
const (
	NameWebsocket = "websocket"
	NamePolling   = "polling"
)

// Negotiate dials each transport in order and returns the first connection
// that succeeds. The error joins every attempt's failure.
func Negotiate(ctx context.Context, endpoint string, p Params, transports []Transport) (Conn, error) {
	if len(transports) == 0 {
		return nil, fmt.Errorf("no transports configured")
	}
	var failures []error
	for _, t := range transports {
		conn, err := t.Dial(ctx, endpoint, p)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failures = append(failures, fmt.Errorf("%s: %w", t.Name(), err))
	}
	return nil, fmt.Errorf("all transports failed: %w", errors.Join(failures...))
}

// httpToWS rewrites an http(s) endpoint to ws(s).
func httpToWS(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

func wsToHTTP(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimPrefix(endpoint, "ws://")
	default:
		return endpoint
	}
}
