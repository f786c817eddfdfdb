// Package httpx carries the request-scoped authentication plumbing shared by
// all handlers: bearer-token resolution and principal context access.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/acme/storefront/internal/domain"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	tokenKey
)

// TokenResolver resolves a bearer token to its principal. Implemented by
// accounts.SessionStore.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (domain.Principal, error)
}

type Authenticator struct {
	sessions TokenResolver
	logger   *slog.Logger
}

func NewAuthenticator(sessions TokenResolver, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		logger:   logger,
	}
}

// Require wraps a handler that needs an authenticated principal. Requests
// without a valid bearer token never reach next.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		principal, err := a.sessions.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			a.logger.ErrorContext(r.Context(), "failed to resolve session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := WithPrincipal(r.Context(), principal)
		ctx = context.WithValue(ctx, tokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

// WithPrincipal returns ctx carrying p as the authenticated principal.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated principal stored by Require.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// TokenFrom returns the raw bearer token for the current request, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
