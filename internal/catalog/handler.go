package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/acme/storefront/internal/authz"
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

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok || !authz.CanWriteCatalog(principal) {
		h.writeError(w, http.StatusForbidden, "only sellers may modify the catalog")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid name: required")
		return
	}

	category, err := h.repo.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "category created", "category_id", category.ID, "seller_id", principal.ID)
	h.writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.repo.GetCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "category not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, category)
}

func (h *Handler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok || !authz.CanWriteCatalog(principal) {
		h.writeError(w, http.StatusForbidden, "only sellers may modify the catalog")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid name: required")
		return
	}

	category, err := h.repo.UpdateCategory(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "category not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to update category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "category updated", "category_id", category.ID, "seller_id", principal.ID)
	h.writeJSON(w, http.StatusOK, category)
}

func (h *Handler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok || !authz.CanWriteCatalog(principal) {
		h.writeError(w, http.StatusForbidden, "only sellers may modify the catalog")
		return
	}

	id := r.PathValue("id")
	if err := h.repo.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "category not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete category", "error", err, "category_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "category deleted", "category_id", id, "seller_id", principal.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	filter := ProductFilter{
		CategoryID: r.URL.Query().Get("category"),
		Search:     r.URL.Query().Get("search"),
		Ordering:   r.URL.Query().Get("ordering"),
	}

	products, err := h.repo.ListProducts(r.Context(), filter)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			h.writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleListOwnProducts(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok || !principal.IsSeller() {
		h.writeError(w, http.StatusForbidden, "only sellers have a product management view")
		return
	}

	products, err := h.repo.ListSellerProducts(r.Context(), principal)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list seller products", "error", err, "seller_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	CategoryID  string `json:"category_id"`
}

func (req *productRequest) validate() error {
	if req.Name == "" {
		return domain.Invalid("name", "required")
	}
	if req.PriceCents < 0 {
		return domain.Invalid("price_cents", "must not be negative")
	}
	return nil
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok || !authz.CanWriteCatalog(principal) {
		h.writeError(w, http.StatusForbidden, "only sellers may modify the catalog")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Seller comes from the authenticated principal, never from the payload.
	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		CategoryID:  req.CategoryID,
		SellerID:    principal.ID,
	}

	if err := h.repo.CreateProduct(r.Context(), product); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			h.writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create product", "error", err, "seller_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "product created", "product_id", product.ID, "seller_id", principal.ID)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.repo.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	product, err := h.repo.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !authz.CanModifyProduct(principal, product.SellerID) {
		h.writeError(w, http.StatusForbidden, "only the owning seller may modify this product")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product.Name = req.Name
	product.Description = req.Description
	product.PriceCents = req.PriceCents
	product.CategoryID = req.CategoryID

	if err := h.repo.UpdateProduct(r.Context(), product); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			h.writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to update product", "error", err, "product_id", product.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "product updated", "product_id", product.ID, "seller_id", principal.ID)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	product, err := h.repo.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !authz.CanModifyProduct(principal, product.SellerID) {
		h.writeError(w, http.StatusForbidden, "only the owning seller may modify this product")
		return
	}

	if err := h.repo.DeleteProduct(r.Context(), product.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.logger.ErrorContext(r.Context(), "failed to delete product", "error", err, "product_id", product.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "product deleted", "product_id", product.ID, "seller_id", principal.ID)
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
