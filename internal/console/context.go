package console

import (
	"context"

	"github.com/maraudr/console/internal/auth"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	claimsKey  contextKey = "claims"
)

// WithSession stores an authenticated session in ctx.
func WithSession(ctx context.Context, s *Session, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, sessionKey, s)
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// ClaimsFromContext returns the session cookie claims.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}
