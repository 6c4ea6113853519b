package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"notify-realtime/internal/transport"
)

type Config struct {
	Client    ClientConfig
	Auth      AuthConfig
	Log       LogConfig
	DevServer DevServerConfig
}

type ClientConfig struct {
	// ServerURL is the push-channel endpoint, APIURL the durable API base.
	ServerURL string
	APIURL    string

	Transports        []string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	PollInterval      time.Duration
	TypingTimeout     time.Duration
	HTTPTimeout       time.Duration
}

type AuthConfig struct {
	// TokenStore is "file" or "redis".
	TokenStore string
	TokenFile  string
	RedisURL   string
	Profile    string
}

type LogConfig struct {
	Level  string
	Format string
}

type DevServerConfig struct {
	Host         string
	Port         string
	JWTSecret    string
	JWTExpire    time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Addr is the dev server listen address.
func (c DevServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// LoadConfig reads a local .env if present and then NOTIFY_* environment
// variables over the defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	v := viper.New()
	v.SetDefault("NOTIFY_SERVER_URL", "http://localhost:8080/realtime")
	v.SetDefault("NOTIFY_API_URL", "http://localhost:8080/api/v1")
	v.SetDefault("NOTIFY_TRANSPORTS", "websocket,polling")
	v.SetDefault("NOTIFY_RECONNECT_ATTEMPTS", 5)
	v.SetDefault("NOTIFY_RECONNECT_DELAY", 1*time.Second)
	v.SetDefault("NOTIFY_RECONNECT_DELAY_MAX", 5*time.Second)
	v.SetDefault("NOTIFY_POLL_INTERVAL", 30*time.Second)
	v.SetDefault("NOTIFY_TYPING_TIMEOUT", 0)
	v.SetDefault("NOTIFY_HTTP_TIMEOUT", 10*time.Second)
	v.SetDefault("NOTIFY_TOKEN_STORE", "file")
	v.SetDefault("NOTIFY_TOKEN_FILE", defaultTokenFile())
	v.SetDefault("NOTIFY_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("NOTIFY_PROFILE", "default")
	v.SetDefault("NOTIFY_LOG_LEVEL", "info")
	v.SetDefault("NOTIFY_LOG_FORMAT", "text")
	v.SetDefault("NOTIFY_DEVSERVER_HOST", "")
	v.SetDefault("NOTIFY_DEVSERVER_PORT", "8080")
	v.SetDefault("NOTIFY_JWT_SECRET", "secret")
	v.SetDefault("NOTIFY_JWT_EXPIRE", "24h")
	v.SetDefault("NOTIFY_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_IDLE_TIMEOUT", 120*time.Second)
	v.AutomaticEnv()

	cfg := &Config{
		Client: ClientConfig{
			ServerURL:         v.GetString("NOTIFY_SERVER_URL"),
			APIURL:            v.GetString("NOTIFY_API_URL"),
			Transports:        splitList(v.GetString("NOTIFY_TRANSPORTS")),
			ReconnectAttempts: v.GetInt("NOTIFY_RECONNECT_ATTEMPTS"),
			ReconnectDelay:    v.GetDuration("NOTIFY_RECONNECT_DELAY"),
			ReconnectDelayMax: v.GetDuration("NOTIFY_RECONNECT_DELAY_MAX"),
			PollInterval:      v.GetDuration("NOTIFY_POLL_INTERVAL"),
			TypingTimeout:     v.GetDuration("NOTIFY_TYPING_TIMEOUT"),
			HTTPTimeout:       v.GetDuration("NOTIFY_HTTP_TIMEOUT"),
		},
		Auth: AuthConfig{
			TokenStore: v.GetString("NOTIFY_TOKEN_STORE"),
			TokenFile:  v.GetString("NOTIFY_TOKEN_FILE"),
			RedisURL:   v.GetString("NOTIFY_REDIS_URL"),
			Profile:    v.GetString("NOTIFY_PROFILE"),
		},
		Log: LogConfig{
			Level:  v.GetString("NOTIFY_LOG_LEVEL"),
			Format: v.GetString("NOTIFY_LOG_FORMAT"),
		},
		DevServer: DevServerConfig{
			Host:         v.GetString("NOTIFY_DEVSERVER_HOST"),
			Port:         v.GetString("NOTIFY_DEVSERVER_PORT"),
			JWTSecret:    v.GetString("NOTIFY_JWT_SECRET"),
			JWTExpire:    v.GetDuration("NOTIFY_JWT_EXPIRE"),
			ReadTimeout:  v.GetDuration("NOTIFY_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("NOTIFY_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("NOTIFY_IDLE_TIMEOUT"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	var problems []error
	if c.Client.ReconnectAttempts <= 0 {
		problems = append(problems, fmt.Errorf("NOTIFY_RECONNECT_ATTEMPTS must be positive, got %d", c.Client.ReconnectAttempts))
	}
	if c.Client.ReconnectDelay <= 0 {
		problems = append(problems, errors.New("NOTIFY_RECONNECT_DELAY must be positive"))
	}
	if c.Client.ReconnectDelayMax < c.Client.ReconnectDelay {
		problems = append(problems, errors.New("NOTIFY_RECONNECT_DELAY_MAX must not be below NOTIFY_RECONNECT_DELAY"))
	}
	if c.Client.PollInterval <= 0 {
		problems = append(problems, errors.New("NOTIFY_POLL_INTERVAL must be positive"))
	}
	if c.Client.TypingTimeout < 0 {
		problems = append(problems, errors.New("NOTIFY_TYPING_TIMEOUT must not be negative"))
	}
	if len(c.Client.Transports) == 0 {
		problems = append(problems, errors.New("NOTIFY_TRANSPORTS must name at least one transport"))
	}
	for _, name := range c.Client.Transports {
		if name != transport.NameWebsocket && name != transport.NamePolling {
			problems = append(problems, fmt.Errorf("unknown transport %q", name))
		}
	}
	switch c.Auth.TokenStore {
	case "file", "redis":
	default:
		problems = append(problems, fmt.Errorf("NOTIFY_TOKEN_STORE must be file or redis, got %q", c.Auth.TokenStore))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(problems...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".notify-token.json"
	}
	return filepath.Join(dir, "notify-realtime", "token.json")
}
