package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/akaushop/storefront/services/storefront/internal/domain"
	"github.com/akaushop/storefront/services/storefront/internal/repository"
)

// --- Mock Catalog Repository ---

type mockCatalogRepository struct {
	mock.Mock
}

var _ repository.CatalogRepository = (*mockCatalogRepository)(nil)

func (m *mockCatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

// --- Mock Order Repository ---

type mockOrderRepository struct {
	mock.Mock
}

var _ repository.OrderRepository = (*mockOrderRepository)(nil)

func (m *mockOrderRepository) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderResult), args.Error(1)
}

// --- Mock Admin Repository ---

type mockAdminRepository struct {
	mock.Mock
}

var _ repository.AdminRepository = (*mockAdminRepository)(nil)

func (m *mockAdminRepository) Login(ctx context.Context, password string) (string, error) {
	args := m.Called(ctx, password)
	return args.String(0), args.Error(1)
}

func (m *mockAdminRepository) ListProducts(ctx context.Context, token string) ([]domain.Product, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockAdminRepository) CreateProduct(ctx context.Context, token string, in domain.ProductInput) (*domain.Product, error) {
	args := m.Called(ctx, token, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockAdminRepository) UpdateProduct(ctx context.Context, token string, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	args := m.Called(ctx, token, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockAdminRepository) SetProductActive(ctx context.Context, token string, id int64, active bool) (*domain.Product, error) {
	args := m.Called(ctx, token, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockAdminRepository) DeleteProduct(ctx context.Context, token string, id int64) error {
	args := m.Called(ctx, token, id)
	return args.Error(0)
}

func (m *mockAdminRepository) ListCategories(ctx context.Context, token string) ([]domain.AdminCategory, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AdminCategory), args.Error(1)
}

func (m *mockAdminRepository) CreateCategory(ctx context.Context, token string, in domain.CategoryInput) (*domain.AdminCategory, error) {
	args := m.Called(ctx, token, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminCategory), args.Error(1)
}

func (m *mockAdminRepository) UpdateCategory(ctx context.Context, token string, id int64, patch domain.CategoryPatch) (*domain.AdminCategory, error) {
	args := m.Called(ctx, token, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminCategory), args.Error(1)
}

func (m *mockAdminRepository) ListOrders(ctx context.Context, token string, limit, offset int) ([]domain.AdminOrder, error) {
	args := m.Called(ctx, token, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AdminOrder), args.Error(1)
}

func (m *mockAdminRepository) GetOrder(ctx context.Context, token string, id int64) (*domain.AdminOrderDetail, error) {
	args := m.Called(ctx, token, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminOrderDetail), args.Error(1)
}

func (m *mockAdminRepository) UpdateOrderStatus(ctx context.Context, token string, id int64, status domain.OrderStatus) error {
	args := m.Called(ctx, token, id, status)
	return args.Error(0)
}
