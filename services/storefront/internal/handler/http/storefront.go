package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/akaushop/storefront/pkg/httputil"
	"github.com/akaushop/storefront/pkg/validator"
	"github.com/akaushop/storefront/services/storefront/internal/service"
)

// StorefrontHandler handles HTTP requests for catalog and cart endpoints.
type StorefrontHandler struct {
	service *service.StorefrontService
	logger  *slog.Logger
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(svc *service.StorefrontService, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Shared helpers ---

// requireSession returns the request's session or writes a 500 if the
// Sessions middleware is not mounted.
func requireSession(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, ok := sessionFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INTERNAL_ERROR", Message: "session unavailable"},
		})
		return nil, false
	}
	return s, true
}

// decodeBody decodes and validates a JSON body into dst, writing 400 for a
// malformed body and 422 for a failed validation.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var categoryID *int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid category_id: " + raw},
			})
			return
		}
		categoryID = &id
	}

	products, err := h.service.ListProducts(r.Context(), s, categoryID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, products)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *StorefrontHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), s, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// ListCategories handles GET /api/v1/categories
func (h *StorefrontHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, cats)
}

// GetCart handles GET /api/v1/cart
func (h *StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, h.service.Cart(s))
}

// RefreshCart handles POST /api/v1/cart/refresh
func (h *StorefrontHandler) RefreshCart(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, h.service.RefreshCart(r.Context(), s))
}

// ClearCart handles DELETE /api/v1/cart
func (h *StorefrontHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, h.service.Clear(s))
}

// AddItem handles POST /api/v1/cart/items
func (h *StorefrontHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req service.AddItemInput
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.AddItem(r.Context(), s, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, cart)
}

// SetQuantity handles PUT /api/v1/cart/items/{id}
func (h *StorefrontHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req service.SetQuantityInput
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.SetQuantity(s, id, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, cart)
}

// Increment handles POST /api/v1/cart/items/{id}/increment
func (h *StorefrontHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.service.Increment)
}

// Decrement handles POST /api/v1/cart/items/{id}/decrement
func (h *StorefrontHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.service.Decrement)
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}
func (h *StorefrontHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.service.Remove)
}

func (h *StorefrontHandler) lineOp(
	w http.ResponseWriter,
	r *http.Request,
	op func(*service.Session, int64) (service.CartView, error),
) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	cart, err := op(s, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, cart)
}
