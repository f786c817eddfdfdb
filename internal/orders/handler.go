package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/acme/storefront/internal/domain"
	"github.com/acme/storefront/internal/httpx"
	"github.com/acme/storefront/internal/messaging"
)

type Handler struct {
	repo     *OrderRepository
	producer *messaging.Producer
	logger   *slog.Logger
}

func NewHandler(repo *OrderRepository, producer *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.repo.List(r.Context(), principal)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list orders", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.repo.GetByID(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get order", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type createOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items []createOrderItem `json:"items"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid items: at least one item required")
		return
	}

	items := make([]NewOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" {
			h.writeError(w, http.StatusBadRequest, "invalid product_id: required")
			return
		}
		if item.Quantity <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid quantity: must be positive")
			return
		}
		items = append(items, NewOrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.repo.Create(r.Context(), principal, items)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create order", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publishOrderPlaced(r, principal, order)

	h.logger.InfoContext(r.Context(), "order created", "order_id", order.ID, "customer_id", order.CustomerID)
	h.writeJSON(w, http.StatusCreated, order)
}

type checkoutResponse struct {
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

// HandleCheckout converts the authenticated customer's cart into an order.
// The endpoint takes no body and is deliberately not idempotent: a retry
// against a re-populated cart places a second order.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.repo.Checkout(r.Context(), principal)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			h.writeError(w, http.StatusBadRequest, "Cart is empty")
			return
		}
		h.logger.ErrorContext(r.Context(), "checkout failed", "error", err, "customer_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publishOrderPlaced(r, principal, order)

	h.logger.InfoContext(r.Context(), "checkout complete", "order_id", order.ID, "customer_id", principal.ID, "items", len(order.Items))
	h.writeJSON(w, http.StatusCreated, checkoutResponse{
		Message: "Checkout successful",
		OrderID: order.ID,
	})
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status: unknown value")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), principal, r.PathValue("id"), req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to update order status", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), principal, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete order", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "order deleted", "order_id", id, "customer_id", principal.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publishOrderPlaced(r *http.Request, principal domain.Principal, order *domain.Order) {
	if h.producer == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Email:      principal.Email,
		Items:      order.Items,
		Timestamp:  time.Now().UTC(),
	}
	if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to publish order placed event", "error", err, "order_id", order.ID)
	}
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
