package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/akaushop/storefront/pkg/errors"
	"github.com/akaushop/storefront/pkg/logger"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
	"github.com/akaushop/storefront/services/storefront/internal/repository"
)

// SelectShippingInput holds the buyer's chosen shipping method.
type SelectShippingInput struct {
	Method string `json:"method" validate:"required,shipping_method"`
}

// CheckoutView is the checkout page state.
type CheckoutView struct {
	Phase       CheckoutPhase           `json:"phase"`
	Draft       domain.Draft            `json:"draft"`
	Cart        CartView                `json:"cart"`
	Ready       bool                    `json:"ready"`
	Validation  *domain.ValidationError `json:"validation,omitempty"`
	LastFailure *domain.SubmitFailure   `json:"last_failure,omitempty"`
	Result      *domain.OrderResult     `json:"result,omitempty"`
}

// CheckoutService runs the checkout state machine for a session:
// Editing, Validating, Submitting, then Succeeded or back to Editing.
type CheckoutService struct {
	orders        repository.OrderRepository
	storefront    *StorefrontService
	requirePhone  bool
	submitTimeout time.Duration
	logger        *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orders repository.OrderRepository,
	storefront *StorefrontService,
	requirePhone bool,
	submitTimeout time.Duration,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:        orders,
		storefront:    storefront,
		requirePhone:  requirePhone,
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

func (svc *CheckoutService) viewLocked(s *Session) CheckoutView {
	snap := s.snapshotLocked(svc.requirePhone)
	v := CheckoutView{
		Phase:       s.phase,
		Draft:       s.draft,
		Cart:        s.cartViewLocked(true),
		LastFailure: s.lastFailure,
		Result:      s.lastResult,
	}
	if s.phase != PhaseSucceeded {
		v.Validation = snap.draft.Validate(snap.state)
		v.Ready = v.Validation == nil
	}
	return v
}

// View returns the checkout state, including the first rule the draft
// currently fails, if any.
func (svc *CheckoutService) View(s *Session) CheckoutView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return svc.viewLocked(s)
}

// editableLocked rejects draft changes while a submission is in flight or
// after the draft has been submitted.
func editableLocked(s *Session) error {
	switch s.phase {
	case PhaseValidating, PhaseSubmitting:
		return apperrors.Conflict("SUBMIT_IN_PROGRESS", "an order is being submitted")
	case PhaseSucceeded:
		return apperrors.Conflict("DRAFT_COMPLETED", "this checkout is complete; start a new checkout")
	}
	return nil
}

// UpdateDraft applies patch to the draft.
func (svc *CheckoutService) UpdateDraft(s *Session, patch domain.DraftPatch) (CheckoutView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := editableLocked(s); err != nil {
		return CheckoutView{}, err
	}
	s.draft = s.draft.Apply(patch)
	return svc.viewLocked(s), nil
}

// SelectShipping sets the shipping method if every cart line supports it.
func (svc *CheckoutService) SelectShipping(s *Session, input SelectShippingInput) (CheckoutView, error) {
	m, ok := domain.ParseShippingMethod(input.Method)
	if !ok {
		return CheckoutView{}, apperrors.ValidationFailed("shipping_method", "invalid shipping method")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := editableLocked(s); err != nil {
		return CheckoutView{}, err
	}
	res := domain.ResolveShipping(s.cart.Lines(), s.catalog)
	if !res.Allows(m) {
		return CheckoutView{}, apperrors.ValidationFailed("shipping_method",
			fmt.Sprintf("%s is not available for every item in your cart", m.Label()))
	}
	s.draft.ShippingMethod = m
	s.methodConfirmed = true
	return svc.viewLocked(s), nil
}

// NewDraft discards the current draft and starts a fresh checkout.
func (svc *CheckoutService) NewDraft(s *Session) (CheckoutView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseValidating || s.phase == PhaseSubmitting {
		return CheckoutView{}, apperrors.Conflict("SUBMIT_IN_PROGRESS", "an order is being submitted")
	}
	s.draft = domain.Draft{}
	s.methodConfirmed = false
	s.phase = PhaseEditing
	s.lastFailure = nil
	s.lastResult = nil
	s.reconcileShippingLocked()
	return svc.viewLocked(s), nil
}

// Submit validates the draft and, if it passes, posts the order. Only one
// submission per session may be in flight; a second call while one is
// pending is rejected without reaching the backend. The order request is not
// cancelled when the caller goes away, since the backend may already have
// created the order.
func (svc *CheckoutService) Submit(ctx context.Context, s *Session) (*domain.OrderResult, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		checkoutSubmissions.WithLabelValues("duplicate").Inc()
		return nil, apperrors.Conflict("SUBMIT_IN_PROGRESS", "an order is already being submitted")
	}
	defer s.submitting.Store(false)

	log := logger.WithContext(ctx, svc.logger).With(slog.String("session_id", s.ID()))

	s.mu.Lock()
	if s.phase == PhaseSucceeded {
		s.mu.Unlock()
		return nil, apperrors.Conflict("DRAFT_COMPLETED", "this checkout is complete; start a new checkout")
	}

	s.phase = PhaseValidating
	snap := s.snapshotLocked(svc.requirePhone)
	if verr := snap.draft.Validate(snap.state); verr != nil {
		s.phase = PhaseEditing
		s.lastFailure = &domain.SubmitFailure{Kind: domain.FailureValidation, Message: verr.Message, Field: verr.Field}
		s.mu.Unlock()
		checkoutSubmissions.WithLabelValues(string(domain.FailureValidation)).Inc()
		return nil, apperrors.ValidationFailed(verr.Field, verr.Message)
	}

	req := domain.BuildOrderRequest(snap.draft, snap.state.Lines)
	quote := domain.NewQuote(snap.state.Lines, snap.state.Shipping, snap.draft.ShippingMethod)
	s.phase = PhaseSubmitting
	s.lastFailure = nil
	s.mu.Unlock()

	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), svc.submitTimeout)
	defer cancel()

	result, err := svc.orders.CreateOrder(submitCtx, req)
	if err != nil {
		failure := domain.ClassifySubmitError(err, s.productName)
		svc.recordFailure(s, failure)
		checkoutSubmissions.WithLabelValues(string(failure.Kind)).Inc()
		log.Warn("order submission failed",
			slog.String("kind", string(failure.Kind)),
			slog.String("error", err.Error()),
		)
		svc.followUp(ctx, s, failure)
		return nil, failureError(failure)
	}

	s.mu.Lock()
	if !s.closed {
		// Lines added while the order was in flight stay in the cart.
		s.cart.Settle(snap.state.Lines)
		s.draft = domain.Draft{}
		s.methodConfirmed = false
		s.phase = PhaseSucceeded
		s.lastResult = result
		s.reconcileShippingLocked()
	}
	s.mu.Unlock()

	checkoutSubmissions.WithLabelValues("succeeded").Inc()
	if result.TotalAmount != quote.Total {
		log.Warn("order total differs from quote",
			slog.Int64("order_id", result.OrderID),
			slog.Int64("quoted", quote.Total),
			slog.Int64("charged", result.TotalAmount),
		)
	}
	log.Info("order submitted",
		slog.Int64("order_id", result.OrderID),
		slog.Int64("total_amount", result.TotalAmount),
	)
	return result, nil
}

func (svc *CheckoutService) recordFailure(s *Session, f *domain.SubmitFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.phase = PhaseEditing
	s.lastFailure = f
}

// followUp refreshes the catalog data a conflict proved stale so bounds and
// shipping options are re-derived before the buyer retries.
func (svc *CheckoutService) followUp(ctx context.Context, s *Session, f *domain.SubmitFailure) {
	switch f.Kind {
	case domain.FailureStockConflict:
		if _, err := svc.storefront.refreshProduct(ctx, s, f.ProductID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			svc.logger.Warn("refresh after stock conflict failed",
				slog.Int64("product_id", f.ProductID),
				slog.String("error", err.Error()),
			)
		}
	case domain.FailureShippingConflict:
		svc.storefront.refreshCart(ctx, s)
	}
}

// failureError maps a classified failure to the error returned to the buyer.
func failureError(f *domain.SubmitFailure) error {
	switch f.Kind {
	case domain.FailureValidation:
		return apperrors.ValidationFailed(f.Field, f.Message)
	case domain.FailureStockConflict:
		e := apperrors.Conflict("STOCK_CONFLICT", f.Message)
		e.Fields = map[string]string{f.Field: f.Message}
		e.Err = fmt.Errorf("%w: %w", apperrors.ErrConflict, f)
		return e
	case domain.FailureShippingConflict:
		e := apperrors.Conflict("SHIPPING_CONFLICT", f.Message)
		e.Fields = map[string]string{f.Field: f.Message}
		e.Err = fmt.Errorf("%w: %w", apperrors.ErrConflict, f)
		return e
	case domain.FailureAuth:
		return &apperrors.AppError{
			Code:    "SESSION_INVALID",
			Message: f.Message,
			Status:  http.StatusUnauthorized,
			Err:     fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, f),
		}
	case domain.FailureTransport:
		return apperrors.ServiceUnavailable(f.Message, f)
	case domain.FailureOutcomeUnknown:
		return &apperrors.AppError{
			Code:    "ORDER_OUTCOME_UNKNOWN",
			Message: f.Message,
			Status:  http.StatusBadGateway,
			Err:     fmt.Errorf("%w: %w", apperrors.ErrInternal, f),
		}
	default:
		return &apperrors.AppError{
			Code:    "ORDER_REJECTED",
			Message: f.Message,
			Status:  http.StatusBadRequest,
			Err:     fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, f),
		}
	}
}
