package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/akaushop/storefront/pkg/errors"
	"github.com/akaushop/storefront/pkg/pagination"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
	"github.com/akaushop/storefront/services/storefront/internal/repository"
)

// LoginInput holds the admin password.
type LoginInput struct {
	Password string `json:"password" validate:"required,max=200"`
}

// SetActiveInput lists or delists a product.
type SetActiveInput struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// UpdateStatusInput moves an order to a new status.
type UpdateStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending paid shipped done cancelled"`
}

// AdminStatus tells the console whether it is unlocked.
type AdminStatus struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func sessionInvalid(message string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "SESSION_INVALID",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, domain.ErrAdminSessionInvalid),
	}
}

// AdminService wraps the shop's admin endpoints behind the session's admin
// unlock. Expiry is checked locally before every call, and any upstream 401
// signs the session out.
type AdminService struct {
	repo   repository.AdminRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(repo repository.AdminRepository, ttl time.Duration, logger *slog.Logger) *AdminService {
	return &AdminService{
		repo:   repo,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Login exchanges the password for a token and unlocks the session.
func (svc *AdminService) Login(ctx context.Context, s *Session, input LoginInput) (AdminStatus, error) {
	token, err := svc.repo.Login(ctx, input.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return AdminStatus{}, apperrors.Unauthorized("incorrect password")
		}
		return AdminStatus{}, fmt.Errorf("admin login: %w", err)
	}

	a := domain.NewAdminSession(token, svc.now(), svc.ttl)
	s.setAdmin(a)
	svc.logger.Info("admin session started",
		slog.String("session_id", s.ID()),
		slog.Time("expires_at", a.ExpiresAt),
	)
	return svc.Status(s), nil
}

// Logout signs the session out.
func (svc *AdminService) Logout(s *Session) {
	s.setAdmin(domain.AdminSession{})
}

// Status reports whether the session is unlocked.
func (svc *AdminService) Status(s *Session) AdminStatus {
	a := s.adminSession()
	if !a.Valid(svc.now()) {
		return AdminStatus{}
	}
	exp := a.ExpiresAt
	return AdminStatus{Authenticated: true, ExpiresAt: &exp}
}

// Authorize returns the admin token, or SESSION_INVALID when the session is
// signed out or expired. An expired session is cleared.
func (svc *AdminService) Authorize(s *Session) (string, error) {
	a := s.adminSession()
	if a.Valid(svc.now()) {
		return a.Token, nil
	}
	if a.Token != "" {
		s.invalidateAdmin(a.Token)
		return "", sessionInvalid("admin session expired; please sign in again")
	}
	return "", sessionInvalid("admin sign-in required")
}

// check signs the session out when the backend rejected token.
func (svc *AdminService) check(s *Session, token string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrUnauthorized) {
		s.invalidateAdmin(token)
		svc.logger.Info("admin session rejected upstream", slog.String("session_id", s.ID()))
		return sessionInvalid("admin session is no longer valid; please sign in again")
	}
	return err
}

func checkOptions(opts []domain.ShippingOption) error {
	if err := domain.CheckShippingOptions(opts); err != nil {
		return apperrors.ValidationFailed("shipping_options", err.Error())
	}
	return nil
}

// ListProducts returns every product, active or not.
func (svc *AdminService) ListProducts(ctx context.Context, s *Session) ([]domain.Product, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	products, err := svc.repo.ListProducts(ctx, token)
	return products, svc.check(s, token, err)
}

// CreateProduct creates a product.
func (svc *AdminService) CreateProduct(ctx context.Context, s *Session, in domain.ProductInput) (*domain.Product, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	if err := checkOptions(in.ShippingOptions); err != nil {
		return nil, err
	}
	p, err := svc.repo.CreateProduct(ctx, token, in)
	return p, svc.check(s, token, err)
}

// UpdateProduct patches a product.
func (svc *AdminService) UpdateProduct(ctx context.Context, s *Session, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	if patch.ShippingOptions != nil {
		if err := checkOptions(*patch.ShippingOptions); err != nil {
			return nil, err
		}
	}
	p, err := svc.repo.UpdateProduct(ctx, token, id, patch)
	return p, svc.check(s, token, err)
}

// SetProductActive lists or delists a product.
func (svc *AdminService) SetProductActive(ctx context.Context, s *Session, id int64, input SetActiveInput) (*domain.Product, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	p, err := svc.repo.SetProductActive(ctx, token, id, *input.IsActive)
	return p, svc.check(s, token, err)
}

// DeleteProduct deletes a product. Products already on orders cannot be
// deleted; the caller is told to deactivate them instead.
func (svc *AdminService) DeleteProduct(ctx context.Context, s *Session, id int64) error {
	token, err := svc.Authorize(s)
	if err != nil {
		return err
	}
	err = svc.check(s, token, svc.repo.DeleteProduct(ctx, token, id))
	if errors.Is(err, apperrors.ErrConflict) {
		return apperrors.Conflict("PRODUCT_IN_USE",
			"this product appears on existing orders and cannot be deleted; deactivate it instead")
	}
	return err
}

// ListCategories returns all categories.
func (svc *AdminService) ListCategories(ctx context.Context, s *Session) ([]domain.AdminCategory, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	cats, err := svc.repo.ListCategories(ctx, token)
	return cats, svc.check(s, token, err)
}

// CreateCategory creates a category.
func (svc *AdminService) CreateCategory(ctx context.Context, s *Session, in domain.CategoryInput) (*domain.AdminCategory, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	cat, err := svc.repo.CreateCategory(ctx, token, in)
	return cat, svc.check(s, token, err)
}

// UpdateCategory patches a category.
func (svc *AdminService) UpdateCategory(ctx context.Context, s *Session, id int64, patch domain.CategoryPatch) (*domain.AdminCategory, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	cat, err := svc.repo.UpdateCategory(ctx, token, id, patch)
	return cat, svc.check(s, token, err)
}

// ListOrders returns one page of orders. The backend reports no total, so
// one extra row is requested to tell whether a next page exists.
func (svc *AdminService) ListOrders(ctx context.Context, s *Session, params pagination.Params) (pagination.Result[domain.AdminOrder], error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return pagination.Result[domain.AdminOrder]{}, err
	}
	orders, err := svc.repo.ListOrders(ctx, token, params.ProbeLimit(), params.Offset)
	if err = svc.check(s, token, err); err != nil {
		return pagination.Result[domain.AdminOrder]{}, err
	}
	return pagination.NewProbedResult(orders, params), nil
}

// GetOrder returns an order with its lines.
func (svc *AdminService) GetOrder(ctx context.Context, s *Session, id int64) (*domain.AdminOrderDetail, error) {
	token, err := svc.Authorize(s)
	if err != nil {
		return nil, err
	}
	detail, err := svc.repo.GetOrder(ctx, token, id)
	return detail, svc.check(s, token, err)
}

// UpdateOrderStatus moves an order to a new status.
func (svc *AdminService) UpdateOrderStatus(ctx context.Context, s *Session, id int64, input UpdateStatusInput) error {
	status, err := domain.ParseOrderStatus(input.Status)
	if err != nil {
		return apperrors.ValidationFailed("status", err.Error())
	}
	token, err := svc.Authorize(s)
	if err != nil {
		return err
	}
	return svc.check(s, token, svc.repo.UpdateOrderStatus(ctx, token, id, status))
}
