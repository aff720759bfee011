package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/akaushop/storefront/pkg/httpclient"
	"github.com/akaushop/storefront/pkg/validator"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
)

// wireProduct is a product as the shop backend serialises it. Public and
// admin endpoints disagree on the stock field name, so both are accepted.
type wireProduct struct {
	ID              int64                `json:"id"`
	Name            string               `json:"name"`
	Price           int64                `json:"price"`
	StockQty        *int                 `json:"stock_qty"`
	Stock           *int                 `json:"stock"`
	CategoryID      *int64               `json:"category_id"`
	IsActive        *bool                `json:"is_active"`
	ShippingOptions []wireShippingOption `json:"shipping_options"`
	Description     string               `json:"description"`
	DescriptionText string               `json:"description_text"`
	ImageURL        string               `json:"image_url"`
}

type wireShippingOption struct {
	Method     string `json:"method"`
	Fee        int64  `json:"fee"`
	RegionNote string `json:"region_note"`
}

// adaptProduct canonicalises a wire product. Options with an unknown method
// or a negative fee are dropped.
func (c *client) adaptProduct(w wireProduct) domain.Product {
	p := domain.Product{
		ID:              w.ID,
		Name:            w.Name,
		Price:           w.Price,
		Stock:           w.StockQty,
		CategoryID:      w.CategoryID,
		IsActive:        w.IsActive == nil || *w.IsActive,
		Description:     w.Description,
		DescriptionText: w.DescriptionText,
		ImageURL:        c.absoluteURL(w.ImageURL),
	}
	if p.Stock == nil {
		p.Stock = w.Stock
	}

	p.ShippingOptions = make([]domain.ShippingOption, 0, len(w.ShippingOptions))
	for _, o := range w.ShippingOptions {
		opt := domain.ShippingOption{
			Method:     domain.ShippingMethod(o.Method),
			Fee:        o.Fee,
			RegionNote: o.RegionNote,
		}
		if err := validator.Validate(opt); err != nil {
			c.logger.Warn("dropping shipping option",
				slog.Int64("product_id", w.ID),
				slog.String("method", o.Method),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.ShippingOptions = append(p.ShippingOptions, opt)
	}
	return p
}

func (c *client) adaptProducts(ws []wireProduct) []domain.Product {
	out := make([]domain.Product, 0, len(ws))
	for _, w := range ws {
		out = append(out, c.adaptProduct(w))
	}
	return out
}

func (c *client) absoluteURL(u string) string {
	if strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") {
		return c.baseURL + u
	}
	return u
}

// CatalogRepository implements repository.CatalogRepository over REST.
type CatalogRepository struct {
	*client
}

// NewCatalogRepository creates a catalog repository against baseURL.
func NewCatalogRepository(baseURL string, doer httpclient.Doer, logger *slog.Logger) *CatalogRepository {
	return &CatalogRepository{client: newClient(baseURL, doer, logger)}
}

// ListProducts fetches GET /products.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var ws []wireProduct
	if err := r.do(ctx, call{op: "list products", method: http.MethodGet, path: "/products", out: &ws}); err != nil {
		return nil, err
	}
	return r.adaptProducts(ws), nil
}

// GetProduct fetches GET /products/{id}.
func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var w wireProduct
	path := "/products/" + strconv.FormatInt(id, 10)
	if err := r.do(ctx, call{op: "get product", method: http.MethodGet, path: path, out: &w}); err != nil {
		return nil, err
	}
	p := r.adaptProduct(w)
	return &p, nil
}

// ListCategories fetches GET /categories.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	if err := r.do(ctx, call{op: "list categories", method: http.MethodGet, path: "/categories", out: &cats}); err != nil {
		return nil, err
	}
	domain.SortCategories(cats)
	return cats, nil
}

// Ping checks that the backend answers a cheap read.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	return r.do(ctx, call{op: "ping", method: http.MethodGet, path: "/categories"})
}
