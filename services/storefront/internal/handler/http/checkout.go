package http

import (
	"log/slog"
	"net/http"

	"github.com/akaushop/storefront/pkg/httputil"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
	"github.com/akaushop/storefront/services/storefront/internal/service"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// GetCheckout handles GET /api/v1/checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, h.service.View(s))
}

// UpdateDraft handles PUT /api/v1/checkout/draft
func (h *CheckoutHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var patch domain.DraftPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	view, err := h.service.UpdateDraft(s, patch)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, view)
}

// SelectShipping handles PUT /api/v1/checkout/shipping
func (h *CheckoutHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req service.SelectShippingInput
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.service.SelectShipping(s, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, view)
}

// Submit handles POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	result, err := h.service.Submit(r.Context(), s)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, result)
}

// NewDraft handles POST /api/v1/checkout/new
func (h *CheckoutHandler) NewDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	view, err := h.service.NewDraft(s)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, view)
}
