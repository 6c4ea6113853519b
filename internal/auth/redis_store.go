package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps Credentials in a Redis hash so several client processes
// (bots, workers) can share one login.
type RedisStore struct {
	client  *redis.Client
	profile string
	ttl     time.Duration
}

// NewRedisStore connects using a redis:// URL and pings the server.
func NewRedisStore(ctx context.Context, redisURL, profile string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Redis connection established successfully", "profile", profile)
	return NewRedisStoreWithClient(rdb, profile, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, profile string, ttl time.Duration) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{client: client, profile: profile, ttl: ttl}
}

func (s *RedisStore) key() string {
	return fmt.Sprintf("auth:%s:credentials", s.profile)
}

func (s *RedisStore) Load(ctx context.Context) (*Credentials, error) {
	values, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if values["token"] == "" {
		return nil, ErrNoToken
	}
	return &Credentials{Token: values["token"], UserID: values["user_id"]}, nil
}

func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.key(), map[string]interface{}{
		"token":      creds.Token,
		"user_id":    creds.UserID,
		"updated_at": time.Now().Unix(),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to save credentials", "profile", s.profile, "error", err)
		return err
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key()).Err()
}

func (s *RedisStore) Token(ctx context.Context) (string, error) {
	creds, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
