package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/acme/storefront/internal/domain"
	"github.com/acme/storefront/internal/httpx"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleListCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	entries, err := h.repo.ListEntries(r.Context(), principal)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list cart", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid product_id: required")
		return
	}
	if req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid quantity: must be positive")
		return
	}

	entry, err := h.repo.Upsert(r.Context(), principal, req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to add to cart", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "cart entry saved", "customer_id", principal.ID, "product_id", req.ProductID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) HandleGetCartEntry(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	entry, err := h.repo.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "cart entry not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get cart entry", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, entry)
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateCartEntry(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid quantity: must be positive")
		return
	}

	entry, err := h.repo.UpdateQuantity(r.Context(), principal, r.PathValue("id"), req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "cart entry not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to update cart entry", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "cart entry updated", "customer_id", principal.ID, "entry_id", entry.ID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) HandleDeleteCartEntry(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), principal, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "cart entry not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete cart entry", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "cart entry deleted", "customer_id", principal.ID, "entry_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListWishlist(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	entries, err := h.repo.ListWishlist(r.Context(), principal)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list wishlist", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

type addToWishlistRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handler) HandleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req addToWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid product_id: required")
		return
	}

	entry, err := h.repo.AddToWishlist(r.Context(), principal, req.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to add to wishlist", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "wishlist entry saved", "customer_id", principal.ID, "product_id", req.ProductID)
	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) HandleGetWishlistEntry(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	entry, err := h.repo.GetWishlistEntry(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "wishlist entry not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get wishlist entry", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) HandleDeleteWishlistEntry(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if err := h.repo.DeleteWishlistEntry(r.Context(), principal, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "wishlist entry not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete wishlist entry", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "wishlist entry deleted", "customer_id", principal.ID, "entry_id", id)
	w.WriteHeader(http.StatusNoContent)
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
