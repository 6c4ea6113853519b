package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"websocket", "polling"}, cfg.Client.Transports)
	assert.Equal(t, 5, cfg.Client.ReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Client.ReconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.Client.ReconnectDelayMax)
	assert.Equal(t, 30*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.Client.TypingTimeout)
	assert.Equal(t, "file", cfg.Auth.TokenStore)
	assert.Equal(t, 24*time.Hour, cfg.DevServer.JWTExpire)
	assert.Equal(t, ":8080", cfg.DevServer.Addr())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("NOTIFY_TRANSPORTS", " polling ")
	t.Setenv("NOTIFY_RECONNECT_ATTEMPTS", "3")
	t.Setenv("NOTIFY_POLL_INTERVAL", "5s")
	t.Setenv("NOTIFY_TYPING_TIMEOUT", "4s")
	t.Setenv("NOTIFY_DEVSERVER_PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"polling"}, cfg.Client.Transports)
	assert.Equal(t, 3, cfg.Client.ReconnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 4*time.Second, cfg.Client.TypingTimeout)
	assert.Equal(t, ":9090", cfg.DevServer.Addr())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	t.Setenv("NOTIFY_TRANSPORTS", "websocket,carrier-pigeon")
	t.Setenv("NOTIFY_RECONNECT_ATTEMPTS", "0")
	t.Setenv("NOTIFY_TOKEN_STORE", "vault")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Contains(t, err.Error(), "NOTIFY_RECONNECT_ATTEMPTS")
	assert.Contains(t, err.Error(), "NOTIFY_TOKEN_STORE")
}
