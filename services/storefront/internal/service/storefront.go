package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	apperrors "github.com/akaushop/storefront/pkg/errors"
	"github.com/akaushop/storefront/pkg/logger"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
	"github.com/akaushop/storefront/services/storefront/internal/repository"
)

// refreshConcurrency caps parallel product fetches during a cart refresh.
const refreshConcurrency = 4

// AddItemInput holds the parameters for adding a product to the cart.
type AddItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=0,lte=999999"`
}

// SetQuantityInput holds a new quantity for a cart line. Zero removes it.
type SetQuantityInput struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999999"`
}

// StorefrontService implements catalog browsing and the cart for a session.
type StorefrontService struct {
	catalog repository.CatalogRepository
	logger  *slog.Logger
}

// NewStorefrontService creates a new storefront service.
func NewStorefrontService(catalog repository.CatalogRepository, logger *slog.Logger) *StorefrontService {
	return &StorefrontService{
		catalog: catalog,
		logger:  logger,
	}
}

func (svc *StorefrontService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, svc.logger)
}

// ListProducts fetches the catalog, commits it to the session unless a newer
// listing was requested meanwhile, and returns the active products,
// optionally limited to one category.
func (svc *StorefrontService) ListProducts(ctx context.Context, s *Session, categoryID *int64) ([]domain.Product, error) {
	t := s.beginListFetch()
	ctx, cancel := s.bind(ctx)
	defer cancel()

	products, err := svc.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	if !s.commitList(t, products) {
		catalogStaleResults.WithLabelValues("list").Inc()
		svc.log(ctx).Debug("discarded stale product list", slog.String("session_id", s.ID()))
	}

	active := domain.NewCatalog(products...).Active()
	if categoryID == nil {
		return active, nil
	}
	filtered := make([]domain.Product, 0, len(active))
	for _, p := range active {
		if p.CategoryID != nil && *p.CategoryID == *categoryID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// GetProduct fetches a single product and commits it to the session.
// Inactive products are reported as not found to the buyer, but the snapshot
// still records them so cart lines reconcile against fresh data.
func (svc *StorefrontService) GetProduct(ctx context.Context, s *Session, id int64) (*domain.Product, error) {
	p, err := svc.refreshProduct(ctx, s, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return p, nil
}

// refreshProduct fetches one product under a fresh ticket. A not found answer
// drops the product from the snapshot so its lines become unknown.
func (svc *StorefrontService) refreshProduct(ctx context.Context, s *Session, id int64) (*domain.Product, error) {
	t := s.beginProductFetch(id)
	ctx, cancel := s.bind(ctx)
	defer cancel()

	p, err := svc.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.commitProduct(t, id, nil)
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	if !s.commitProduct(t, id, p) {
		catalogStaleResults.WithLabelValues("product").Inc()
		svc.log(ctx).Debug("discarded stale product",
			slog.String("session_id", s.ID()),
			slog.Int64("product_id", id),
		)
	}
	return p, nil
}

// ListCategories returns categories sorted for display.
func (svc *StorefrontService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := svc.catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Cart returns the session's cart view.
func (svc *StorefrontService) Cart(s *Session) CartView {
	return s.Cart()
}

// RefreshCart re-fetches every product in the cart so stock bounds and
// shipping options reflect the backend. Individual failures keep the previous
// snapshot for that product.
func (svc *StorefrontService) RefreshCart(ctx context.Context, s *Session) CartView {
	svc.refreshCart(ctx, s)
	return s.Cart()
}

func (svc *StorefrontService) refreshCart(ctx context.Context, s *Session) {
	ids := s.cartProductIDs()

	var wg sync.WaitGroup
	sem := make(chan struct{}, refreshConcurrency)
	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := svc.refreshProduct(ctx, s, id); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				svc.log(ctx).Warn("cart product refresh failed",
					slog.Int64("product_id", id),
					slog.String("error", err.Error()),
				)
			}
		}(id)
	}
	wg.Wait()
}

// AddItem adds a product to the cart, bounded by its latest known stock. A
// product not yet in the snapshot is fetched first.
func (svc *StorefrontService) AddItem(ctx context.Context, s *Session, input AddItemInput) (CartView, error) {
	p, ok := s.lookup(input.ProductID)
	if !ok {
		fetched, err := svc.refreshProduct(ctx, s, input.ProductID)
		if err != nil {
			return CartView{}, err
		}
		p = *fetched
	}

	if !p.IsActive {
		return CartView{}, apperrors.Conflict("PRODUCT_UNAVAILABLE", fmt.Sprintf("%s is no longer sold", p.Name))
	}

	if _, err := s.addItem(p, input.Quantity); err != nil {
		if errors.Is(err, domain.ErrSoldOut) {
			return CartView{}, apperrors.Conflict("SOLD_OUT", fmt.Sprintf("%s is sold out", p.Name))
		}
		return CartView{}, fmt.Errorf("add item: %w", err)
	}
	return s.Cart(), nil
}

func lineNotFound(id int64) error {
	return apperrors.NotFound("cart line", strconv.FormatInt(id, 10))
}

// Increment raises a line by one unless it is at its stock limit or its
// availability is unknown.
func (svc *StorefrontService) Increment(s *Session, productID int64) (CartView, error) {
	if _, err := s.increment(productID); err != nil {
		return CartView{}, lineNotFound(productID)
	}
	return s.Cart(), nil
}

// Decrement lowers a line by one, removing it at zero.
func (svc *StorefrontService) Decrement(s *Session, productID int64) (CartView, error) {
	if _, err := s.decrement(productID); err != nil {
		return CartView{}, lineNotFound(productID)
	}
	return s.Cart(), nil
}

// SetQuantity sets a line's quantity, clamped to its stock. Zero removes it.
func (svc *StorefrontService) SetQuantity(s *Session, productID int64, input SetQuantityInput) (CartView, error) {
	if _, err := s.setQuantity(productID, input.Quantity); err != nil {
		return CartView{}, lineNotFound(productID)
	}
	return s.Cart(), nil
}

// Remove deletes a line.
func (svc *StorefrontService) Remove(s *Session, productID int64) (CartView, error) {
	if _, err := s.removeItem(productID); err != nil {
		return CartView{}, lineNotFound(productID)
	}
	return s.Cart(), nil
}

// Clear empties the cart.
func (svc *StorefrontService) Clear(s *Session) CartView {
	s.clearCart()
	return s.Cart()
}
