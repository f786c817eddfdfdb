package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acme/storefront/internal/domain"
)

type fakeResolver struct {
	tokens map[string]domain.Principal
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (domain.Principal, error) {
	p, ok := f.tokens[token]
	if !ok {
		return domain.Principal{}, domain.ErrInvalidToken
	}
	return p, nil
}

func TestAuthenticator_Require(t *testing.T) {
	resolver := &fakeResolver{tokens: map[string]domain.Principal{
		"good-token": {ID: "u1", Email: "u1@example.com", Role: domain.RoleCustomer},
	}}
	auth := NewAuthenticator(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))

	handler := auth.Require(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			t.Error("expected principal in context")
		}
		if p.ID != "u1" {
			t.Errorf("expected principal u1, got %s", p.ID)
		}
		if TokenFrom(r.Context()) != "good-token" {
			t.Errorf("expected token in context, got %q", TokenFrom(r.Context()))
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token reaches handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "authentication required" {
			t.Errorf("unexpected error message: %s", resp["error"])
		}
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("non-bearer scheme is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})
}
