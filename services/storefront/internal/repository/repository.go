package repository

import (
	"context"

	"github.com/akaushop/storefront/services/storefront/internal/domain"
)

// CatalogRepository reads the public catalog from the shop backend.
type CatalogRepository interface {
	// ListProducts returns the catalog snapshot.
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// GetProduct returns a single product. A missing product yields an error
	// wrapping apperrors.ErrNotFound.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// ListCategories returns all categories.
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// OrderRepository submits orders.
type OrderRepository interface {
	// CreateOrder posts an order. It is never retried.
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
}

// AdminRepository wraps the admin endpoints. Every call except Login needs a
// token; an upstream 401 is returned as an error wrapping apperrors.ErrUnauthorized.
type AdminRepository interface {
	Login(ctx context.Context, password string) (string, error)

	ListProducts(ctx context.Context, token string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, token string, in domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, token string, id int64, patch domain.ProductPatch) (*domain.Product, error)
	SetProductActive(ctx context.Context, token string, id int64, active bool) (*domain.Product, error)
	DeleteProduct(ctx context.Context, token string, id int64) error

	ListCategories(ctx context.Context, token string) ([]domain.AdminCategory, error)
	CreateCategory(ctx context.Context, token string, in domain.CategoryInput) (*domain.AdminCategory, error)
	UpdateCategory(ctx context.Context, token string, id int64, patch domain.CategoryPatch) (*domain.AdminCategory, error)

	ListOrders(ctx context.Context, token string, limit, offset int) ([]domain.AdminOrder, error)
	GetOrder(ctx context.Context, token string, id int64) (*domain.AdminOrderDetail, error)
	UpdateOrderStatus(ctx context.Context, token string, id int64, status domain.OrderStatus) error
}
