package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/akaushop/storefront/pkg/httpclient"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
)

// AdminRepository implements repository.AdminRepository over REST.
type AdminRepository struct {
	*client
}

// NewAdminRepository creates an admin repository against baseURL.
func NewAdminRepository(baseURL string, doer httpclient.Doer, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{client: newClient(baseURL, doer, logger)}
}

func productPath(id int64) string {
	return "/admin/products/" + strconv.FormatInt(id, 10)
}

// Login exchanges the admin password for a token.
func (r *AdminRepository) Login(ctx context.Context, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := r.do(ctx, call{
		op:     "admin login",
		method: http.MethodPost,
		path:   "/admin/auth/login",
		body:   map[string]string{"password": password},
		out:    &out,
	})
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("admin login: empty token")
	}
	return out.Token, nil
}

// ListProducts returns every product including inactive ones.
func (r *AdminRepository) ListProducts(ctx context.Context, token string) ([]domain.Product, error) {
	var ws []wireProduct
	err := r.do(ctx, call{op: "admin list products", method: http.MethodGet, path: "/admin/products", token: token, out: &ws})
	if err != nil {
		return nil, err
	}
	return r.adaptProducts(ws), nil
}

// CreateProduct posts a new product.
func (r *AdminRepository) CreateProduct(ctx context.Context, token string, in domain.ProductInput) (*domain.Product, error) {
	var w wireProduct
	err := r.do(ctx, call{op: "admin create product", method: http.MethodPost, path: "/admin/products", token: token, body: in, out: &w})
	if err != nil {
		return nil, err
	}
	p := r.adaptProduct(w)
	return &p, nil
}

// UpdateProduct patches a product.
func (r *AdminRepository) UpdateProduct(ctx context.Context, token string, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	var w wireProduct
	err := r.do(ctx, call{op: "admin update product", method: http.MethodPatch, path: productPath(id), token: token, body: patch, out: &w})
	if err != nil {
		return nil, err
	}
	p := r.adaptProduct(w)
	return &p, nil
}

// SetProductActive lists or delists a product.
func (r *AdminRepository) SetProductActive(ctx context.Context, token string, id int64, active bool) (*domain.Product, error) {
	var w wireProduct
	err := r.do(ctx, call{
		op:     "admin set product active",
		method: http.MethodPatch,
		path:   productPath(id) + "/active",
		token:  token,
		body:   map[string]bool{"is_active": active},
		out:    &w,
	})
	if err != nil {
		return nil, err
	}
	p := r.adaptProduct(w)
	return &p, nil
}

// DeleteProduct removes a product. The backend answers 409 when the product
// appears on an order.
func (r *AdminRepository) DeleteProduct(ctx context.Context, token string, id int64) error {
	return r.do(ctx, call{op: "admin delete product", method: http.MethodDelete, path: productPath(id), token: token})
}

// ListCategories returns all categories including inactive ones.
func (r *AdminRepository) ListCategories(ctx context.Context, token string) ([]domain.AdminCategory, error) {
	var cats []domain.AdminCategory
	err := r.do(ctx, call{op: "admin list categories", method: http.MethodGet, path: "/admin/categories", token: token, out: &cats})
	if err != nil {
		return nil, err
	}
	return cats, nil
}

// CreateCategory posts a new category.
func (r *AdminRepository) CreateCategory(ctx context.Context, token string, in domain.CategoryInput) (*domain.AdminCategory, error) {
	var cat domain.AdminCategory
	err := r.do(ctx, call{op: "admin create category", method: http.MethodPost, path: "/admin/categories", token: token, body: in, out: &cat})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// UpdateCategory patches a category.
func (r *AdminRepository) UpdateCategory(ctx context.Context, token string, id int64, patch domain.CategoryPatch) (*domain.AdminCategory, error) {
	var cat domain.AdminCategory
	path := "/admin/categories/" + strconv.FormatInt(id, 10)
	err := r.do(ctx, call{op: "admin update category", method: http.MethodPatch, path: path, token: token, body: patch, out: &cat})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListOrders returns a page of orders, newest first.
func (r *AdminRepository) ListOrders(ctx context.Context, token string, limit, offset int) ([]domain.AdminOrder, error) {
	var orders []domain.AdminOrder
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	err := r.do(ctx, call{op: "admin list orders", method: http.MethodGet, path: "/admin/orders", query: q, token: token, out: &orders})
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i] = orders[i].WithLabels()
	}
	return orders, nil
}

// GetOrder returns an order with its lines.
func (r *AdminRepository) GetOrder(ctx context.Context, token string, id int64) (*domain.AdminOrderDetail, error) {
	var detail domain.AdminOrderDetail
	path := "/admin/orders/" + strconv.FormatInt(id, 10)
	err := r.do(ctx, call{op: "admin get order", method: http.MethodGet, path: path, token: token, out: &detail})
	if err != nil {
		return nil, err
	}
	detail.Order = detail.Order.WithLabels()
	return &detail, nil
}

// UpdateOrderStatus moves an order to status.
func (r *AdminRepository) UpdateOrderStatus(ctx context.Context, token string, id int64, status domain.OrderStatus) error {
	q := url.Values{}
	q.Set("status", string(status))
	path := "/admin/orders/" + strconv.FormatInt(id, 10) + "/status"
	return r.do(ctx, call{op: "admin update order status", method: http.MethodPatch, path: path, query: q, token: token})
}
