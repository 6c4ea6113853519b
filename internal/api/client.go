// Package api is the client of the durable request/response API used for
// message sends and notification mutations.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"notify-realtime/internal/auth"
	"notify-realtime/internal/models"
)

// StatusError is a non-2xx answer from the durable API.
type StatusError struct {
	Status  int
	Message string
	Details string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api status %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// Client calls the durable API with a bearer token taken from tokens on
// every request.
type Client struct {
	http   *resty.Client
	tokens auth.TokenSource
	logger *slog.Logger
}

// New creates a client for baseURL (for example http://host/api/v1).
func New(baseURL string, tokens auth.TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		tokens: tokens,
		logger: logger,
	}
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("load auth token: %w", err)
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetError(&models.ErrorResponse{}), nil
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Debug("API call failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}
	statusErr := &StatusError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if body, ok := resp.Error().(*models.ErrorResponse); ok && body.Message != "" {
		statusErr.Message = body.Message
		statusErr.Details = body.Details
	}
	c.logger.Debug("API call rejected", "op", op, "status", resp.StatusCode())
	return fmt.Errorf("%s: %w", op, statusErr)
}

// Login exchanges a user id for a token. It is the only call made without
// a bearer token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var out models.LoginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&models.ErrorResponse{}).
		SetBody(req).
		SetResult(&out).
		Post("/auth/login")
	if err := c.check("login", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage persists a chat message and returns the server record. The
// record is delivered again through the push channel.
func (c *Client) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out models.Message
	resp, err := r.SetBody(req).SetResult(&out).Post("/messages")
	if err := c.check("send message", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out models.NotificationListResponse
	resp, err := r.SetResult(&out).Get("/notifications")
	if err := c.check("list notifications", resp, err); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.Notification{}
	}
	return out.Items, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	r, err := c.request(ctx)
	if err != nil {
		return 0, err
	}
	var out models.UnreadCountResponse
	resp, err := r.SetResult(&out).Get("/notifications/unread-count")
	if err := c.check("unread count", resp, err); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) MarkRead(ctx context.Context, id uint) error {
	r, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := r.SetPathParam("id", strconv.FormatUint(uint64(id), 10)).Patch("/notifications/{id}/read")
	return c.check("mark read", resp, err)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	r, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := r.Patch("/notifications/read-all")
	return c.check("mark all read", resp, err)
}

func (c *Client) DeleteNotification(ctx context.Context, id uint) error {
	r, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := r.SetPathParam("id", strconv.FormatUint(uint64(id), 10)).Delete("/notifications/{id}")
	return c.check("delete notification", resp, err)
}

// SendNotification creates a notification for another user (admin only).
func (c *Client) SendNotification(ctx context.Context, req models.SendNotificationRequest) (*models.Notification, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out models.Notification
	resp, err := r.SetBody(req).SetResult(&out).Post("/notifications")
	if err := c.check("send notification", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
