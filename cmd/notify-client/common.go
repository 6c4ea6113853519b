package main

import (
	"context"
	"fmt"
	"time"

	"notify-realtime/internal/api"
	"notify-realtime/internal/auth"
	"notify-realtime/internal/realtime"
	"notify-realtime/internal/transport"
)

// tokenTTL bounds how long a shared Redis login is kept.
const tokenTTL = 24 * time.Hour

// openStore returns the configured credential store and a close func.
func openStore(ctx context.Context) (auth.Store, func(), error) {
	switch cfg.Auth.TokenStore {
	case "redis":
		s, err := auth.NewRedisStore(ctx, cfg.Auth.RedisURL, cfg.Auth.Profile, tokenTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return auth.NewFileStore(cfg.Auth.TokenFile), func() {}, nil
	}
}

func newAPIClient(tokens auth.TokenSource) *api.Client {
	return api.New(cfg.Client.APIURL, tokens, cfg.Client.HTTPTimeout, logr)
}

func newManager() *realtime.Manager {
	return realtime.New(realtime.Config{
		Endpoint:             cfg.Client.ServerURL,
		Transports:           buildTransports(cfg.Client.Transports),
		MaxReconnectAttempts: cfg.Client.ReconnectAttempts,
		ReconnectDelay:       cfg.Client.ReconnectDelay,
		ReconnectDelayMax:    cfg.Client.ReconnectDelayMax,
		Logger:               logr,
	})
}

func buildTransports(names []string) []transport.Transport {
	out := make([]transport.Transport, 0, len(names))
	for _, name := range names {
		switch name {
		case transport.NameWebsocket:
			out = append(out, transport.NewWebsocket(logr))
		case transport.NamePolling:
			out = append(out, transport.NewPolling(0, logr))
		}
	}
	return out
}

// requireLogin loads the stored credentials or explains how to get them.
func requireLogin(ctx context.Context, store auth.Store) (*auth.Credentials, error) {
	creds, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("not logged in (run notify-client login): %w", err)
	}
	return creds, nil
}
