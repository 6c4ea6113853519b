package realtime

import (
	"log/slog"
	"time"

	"notify-realtime/internal/transport"
)

// Config configures a Manager. Zero values fall back to the defaults below.
type Config struct {
	// Endpoint is the push-channel base URL, for example http://host/realtime.
	Endpoint string

	// Transports are tried in order on every connection attempt.
	Transports []transport.Transport

	// MaxReconnectAttempts is the number of consecutive failed attempts after
	// which the manager gives up and enters StateFailed.
	MaxReconnectAttempts int

	// ReconnectDelay is the first delay; it doubles per failure up to
	// ReconnectDelayMax.
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration

	// StableAfter is how long a connection must stay up before its drop
	// resets the backoff and the attempt count. Shorter-lived connections
	// count as failed attempts. Defaults to ReconnectDelay.
	StableAfter time.Duration

	// ReconnectJitter randomizes each delay by ±factor. 0 disables it.
	ReconnectJitter float64

	WriteTimeout time.Duration

	Logger *slog.Logger

	// Now is used to check token expiry.
	Now func() time.Time
}

const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 1 * time.Second
	DefaultReconnectDelayMax    = 5 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
)

func (c *Config) defaults() {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.ReconnectDelayMax <= 0 {
		c.ReconnectDelayMax = DefaultReconnectDelayMax
	}
	if c.ReconnectDelayMax < c.ReconnectDelay {
		c.ReconnectDelayMax = c.ReconnectDelay
	}
	if c.StableAfter <= 0 {
		c.StableAfter = c.ReconnectDelay
	}
	if c.ReconnectJitter < 0 || c.ReconnectJitter >= 1 {
		c.ReconnectJitter = 0
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if len(c.Transports) == 0 {
		c.Transports = []transport.Transport{
			transport.NewWebsocket(c.Logger),
			transport.NewPolling(0, c.Logger),
		}
	}
}
