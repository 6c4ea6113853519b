package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenResponse is returned by the server when a polling session is opened.
type OpenResponse struct {
	SID string `json:"sid"`
}

// PollResponse carries the frames queued for a polling session.
type PollResponse struct {
	Frames []Frame `json:"frames"`
}

// Polling is the HTTP long-polling fallback transport. It works wherever
// plain HTTP does, at the cost of latency.
type Polling struct {
	Client *resty.Client
	Logger *slog.Logger
}

// NewPolling returns a polling transport. pollTimeout must exceed the
// server's long-poll hold time.
func NewPolling(pollTimeout time.Duration, logger *slog.Logger) *Polling {
	if logger == nil {
		logger = slog.Default()
	}
	if pollTimeout <= 0 {
		pollTimeout = 35 * time.Second
	}
	return &Polling{
		Client: resty.New().SetTimeout(pollTimeout),
		Logger: logger,
	}
}

func (p *Polling) Name() string { return NamePolling }

func (p *Polling) Dial(ctx context.Context, endpoint string, params Params) (Conn, error) {
	base := wsToHTTP(endpoint) + "/poll"

	var open OpenResponse
	resp, err := p.Client.R().
		SetContext(ctx).
		SetAuthToken(params.Token).
		SetQueryParamsFromValues(params.query()).
		SetResult(&open).
		Post(base)
	if err != nil {
		return nil, fmt.Errorf("polling open: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("polling open: unexpected status %s", resp.Status())
	}
	if open.SID == "" {
		return nil, fmt.Errorf("polling open: server returned no session id")
	}

	closeCtx, cancel := context.WithCancel(context.Background())
	p.Logger.Debug("Polling session opened", "endpoint", endpoint, "sid", open.SID, "userID", params.UserID)
	return &pollConn{
		client:   p.Client,
		base:     base,
		sid:      open.SID,
		token:    params.Token,
		closeCtx: closeCtx,
		cancel:   cancel,
	}, nil
}

type pollConn struct {
	client *resty.Client
	base   string
	sid    string
	token  string

	closeCtx  context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	queue []Frame
}

func (c *pollConn) Transport() string { return NamePolling }

func (c *pollConn) Read(ctx context.Context) (Frame, error) {
	for len(c.queue) == 0 {
		if c.closeCtx.Err() != nil {
			return Frame{}, ErrClosed
		}
		frames, err := c.poll(ctx)
		if err != nil {
			return Frame{}, err
		}
		c.queue = frames
	}
	f := c.queue[0]
	c.queue = c.queue[1:]
	return f, nil
}

func (c *pollConn) poll(ctx context.Context) ([]Frame, error) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.closeCtx, cancel)
	defer stop()

	var out PollResponse
	resp, err := c.client.R().
		SetContext(rctx).
		SetAuthToken(c.token).
		SetQueryParam("sid", c.sid).
		SetResult(&out).
		Get(c.base)
	if err != nil {
		if c.closeCtx.Err() != nil {
			return nil, ErrClosed
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("polling read: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return out.Frames, nil
	case http.StatusGone:
		return nil, ErrServerClosed
	default:
		return nil, fmt.Errorf("polling read: unexpected status %s", resp.Status())
	}
}

func (c *pollConn) Write(ctx context.Context, f Frame) error {
	if c.closeCtx.Err() != nil {
		return ErrClosed
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetQueryParam("sid", c.sid).
		SetBody(f).
		Post(c.base + "/emit")
	if err != nil {
		return fmt.Errorf("polling write: %w", err)
	}
	if resp.StatusCode() == http.StatusGone {
		return ErrServerClosed
	}
	if resp.IsError() {
		return fmt.Errorf("polling write: unexpected status %s", resp.Status())
	}
	return nil
}

func (c *pollConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err = c.client.R().
			SetContext(ctx).
			SetAuthToken(c.token).
			SetQueryParam("sid", c.sid).
			Delete(c.base)
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	})
	return err
}
