// Package auth reads the bearer token from the user's persisted auth state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no auth token stored")
	ErrTokenExpired = errors.New("auth token expired")
	ErrTokenInvalid = errors.New("auth token malformed")
)

// Credentials is the persisted auth state.
type Credentials struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// TokenSource yields the current bearer token for durable calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Claims is what the client can learn from a token without the signing key.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// ParseClaims decodes the token payload without verifying the signature;
// verification is the server's job. The user id claim may be a string or a
// number.
func ParseClaims(token string) (*Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	out := &Claims{}
	switch v := claims["user_id"].(type) {
	case string:
		out.UserID = v
	case float64:
		out.UserID = strconv.FormatInt(int64(v), 10)
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// CheckToken rejects empty, malformed and expired tokens.
func CheckToken(token string, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims, err := ParseClaims(token)
	if err != nil {
		return nil, err
	}
	if !claims.ExpiresAt.IsZero() && !now.Before(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// Store persists Credentials between runs.
type Store interface {
	TokenSource
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}
