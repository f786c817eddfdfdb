package accounts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/acme/storefront/internal/domain"
	"github.com/acme/storefront/internal/httpx"
)

type Handler struct {
	repo     *UserRepository
	sessions *SessionStore
	logger   *slog.Logger
}

func NewHandler(repo *UserRepository, sessions *SessionStore, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type authResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) HandleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, domain.RoleCustomer)
}

func (h *Handler) HandleRegisterSeller(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, domain.RoleSeller)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, role domain.Role) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "invalid email: required")
		return
	}
	if len(req.Password) < 8 {
		h.writeError(w, http.StatusBadRequest, "invalid password: must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.repo.Create(r.Context(), NewUser{
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			h.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.sessions.Issue(r.Context(), domain.Principal{ID: user.ID, Email: user.Email, Role: role})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue session", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "user registered", "user_id", user.ID, "role", role)
	h.writeJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal, hash, err := h.repo.GetCredentials(r.Context(), req.Email)
	if err != nil && !errors.Is(err, domain.ErrInvalidCredentials) {
		h.logger.ErrorContext(r.Context(), "failed to load credentials", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.sessions.Issue(r.Context(), principal)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue session", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", "user_id", principal.ID)
	h.writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// HandleLogout revokes the presented bearer token. The token is gone from
// the session store immediately; other sessions of the same user survive.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	token := httpx.TokenFrom(r.Context())
	if token == "" {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to revoke session", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "user logged out", "user_id", principal.ID)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.repo.Delete(r.Context(), principal.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete account", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if token := httpx.TokenFrom(r.Context()); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to revoke session", "error", err, "user_id", principal.ID)
		}
	}

	h.logger.InfoContext(r.Context(), "account deleted", "user_id", principal.ID)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get profile", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.repo.UpdateProfile(r.Context(), principal.ID, req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to update profile", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "profile updated", "user_id", principal.ID)
	h.writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
