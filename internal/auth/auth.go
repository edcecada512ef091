package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rampart-ai/rampart/internal/engine"
)

var (
	ErrMissingAPIKey   = errors.New("missing authorization header")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrAuthUnavailable = errors.New("authentication backend unavailable")
)

// ClientContext holds the authenticated client's configuration.
type ClientContext struct {
	ClientID string
	Name     string
	Mode     string // "enforce" or "shadow"
	Policy   *engine.PolicyConfig
}

// Authenticator validates an API key and returns client context.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*ClientContext, error)
}

// BearerToken extracts the token from an Authorization header value.
// RFC 6750: the "Bearer" scheme is case-insensitive.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAPIKey
	}
	token := header
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingAPIKey
	}
	return token, nil
}

// StaticAuthenticator validates key format only, with no database
// lookup. Used for local development when no Postgres DSN is set.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, apiKey string) (*ClientContext, error) {
	if !strings.HasPrefix(apiKey, "rk_") {
		return nil, ErrInvalidAPIKey
	}
	return &ClientContext{
		ClientID: "dev",
		Name:     "development",
		Mode:     "enforce",
	}, nil
}
