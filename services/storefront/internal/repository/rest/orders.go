package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/akaushop/storefront/pkg/httpclient"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
)

// OrderRepository implements repository.OrderRepository over REST.
type OrderRepository struct {
	*client
}

// NewOrderRepository creates an order repository against baseURL. The doer
// must not retry POSTs.
func NewOrderRepository(baseURL string, doer httpclient.Doer, logger *slog.Logger) *OrderRepository {
	return &OrderRepository{client: newClient(baseURL, doer, logger)}
}

// CreateOrder posts to /orders.
func (r *OrderRepository) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	var res domain.OrderResult
	if err := r.do(ctx, call{op: "create order", method: http.MethodPost, path: "/orders", body: req, out: &res, commits: true}); err != nil {
		return nil, err
	}
	return &res, nil
}
