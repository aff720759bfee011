package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/akaushop/storefront/pkg/errors"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
)

func newTestStorefront(repo *mockCatalogRepository) *StorefrontService {
	return NewStorefrontService(repo, newTestLogger())
}

func TestListProducts_FiltersActiveAndCategory(t *testing.T) {
	repo := new(mockCatalogRepository)
	svc := newTestStorefront(repo)
	s := NewSession("s1", time.Now())

	cat := int64(3)
	other := int64(4)
	a := product(1, "A", 100, nil)
	a.CategoryID = &cat
	b := product(2, "B", 100, nil)
	b.CategoryID = &other
	hidden := product(3, "C", 100, nil)
	hidden.CategoryID = &cat
	hidden.IsActive = false
	repo.On("ListProducts", mock.Anything).Return([]domain.Product{b, hidden, a}, nil)

	all, err := svc.ListProducts(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inCat, err := svc.ListProducts(context.Background(), s, &cat)
	require.NoError(t, err)
	require.Len(t, inCat, 1)
	assert.Equal(t, int64(1), inCat[0].ID)

	_, ok := s.lookup(3)
	assert.True(t, ok, "inactive products stay resolvable for cart lines")
}

func TestListProducts_StaleResponseNotCommitted(t *testing.T) {
	repo := new(mockCatalogRepository)
	svc := newTestStorefront(repo)
	s := NewSession("s1", time.Now())

	started := make(chan struct{})
	release := make(chan struct{})
	repo.On("ListProducts", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]domain.Product{product(1, "Old", 100, intPtr(1))}, nil).Once()
	repo.On("ListProducts", mock.Anything).
		Return([]domain.Product{product(1, "New", 100, intPtr(8))}, nil).Once()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.ListProducts(context.Background(), s, nil)
	}()
	<-started

	_, err := svc.ListProducts(context.Background(), s, nil)
	require.NoError(t, err)

	close(release)
	<-done

	p, ok := s.lookup(1)
	require.True(t, ok)
	assert.Equal(t, "New", p.Name)
	assert.Equal(t, 8, *p.Stock)
}

func TestGetProduct_InactiveIsNotFound(t *testing.T) {
	repo := new(mockCatalogRepository)
	svc := newTestStorefront(repo)
	s := NewSession("s1", time.Now())

	p := product(5, "Gone", 100, nil)
	p.IsActive = false
	repo.On("GetProduct", mock.Anything, int64(5)).Return(&p, nil)

	_, err := svc.GetProduct(context.Background(), s, 5)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, ok := s.lookup(5)
	assert.True(t, ok)
}

func TestAddItem_FetchesUnknownProduct(t *testing.T) {
	repo := new(mockCatalogRepository)
	svc := newTestStorefront(repo)
	s := NewSession("s1", time.Now())

	p := product(1, "A", 100, intPtr(3), opt(domain.ShippingPost, 60))
	repo.On("GetProduct", mock.Anything, int64(1)).Return(&p, nil).Once()

	v, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: 1, Quantity: 5})
	require.NoError(t, err)

	require.Len(t, v.Lines, 1)
	assert.Equal(t, 3, v.Lines[0].Quantity)
	assert.Equal(t, int64(300), v.Subtotal)
	require.Len(t, v.Notices, 1)
	assert.Contains(t, v.Notices[0].Message, "Only 3")

	_, err = svc.AddItem(context.Background(), s, AddItemInput{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetProduct", 1)
}

func TestAddItem_SoldOut(t *testing.T) {
	repo := new(mockCatalogRepository)
	svc := newTestStorefront(repo)
	s := seededSession(product(1, "A", 100, intPtr(0)))

	_, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: 1, Quantity: 1})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SOLD_OUT", appErr.Code)
	assert.Empty(t, s.Cart().Lines)
}

func TestAddItem_InactiveProduct(t *testing.T) {
	p := product(1, "A", 100, nil)
	p.IsActive = false
	svc := newTestStorefront(new(mockCatalogRepository))
	s := seededSession(p)

	_, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: 1})

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PRODUCT_UNAVAILABLE", appErr.Code)
}

func TestAddItem_UpstreamUnavailable(t *testing.T) {
	repo := new(mockCatalogRepository)
	svc := newTestStorefront(repo)
	s := NewSession("s1", time.Now())
	repo.On("GetProduct", mock.Anything, int64(1)).
		Return(nil, apperrors.ServiceUnavailable("shop unreachable", nil))

	_, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: 1, Quantity: 1})

	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Empty(t, s.Cart().Lines)
}

func TestCartOperations(t *testing.T) {
	svc := newTestStorefront(new(mockCatalogRepository))
	a := product(1, "A", 100, nil, opt(domain.ShippingPost, 60))
	s := seededSession(a)

	_, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	v, err := svc.Increment(s, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, v.TotalItems)

	v, err = svc.SetQuantity(s, 1, SetQuantityInput{Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, v.TotalItems)

	v, err = svc.Decrement(s, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, v.TotalItems)

	v, err = svc.SetQuantity(s, 1, SetQuantityInput{Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, v.Lines)

	_, err = svc.Remove(s, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.Increment(s, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDecrement_ToZeroRemovesEveryLine(t *testing.T) {
	svc := newTestStorefront(new(mockCatalogRepository))
	s := seededSession(product(1, "A", 100, nil), product(2, "B", 50, nil))

	for _, id := range []int64{1, 2} {
		_, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: id, Quantity: 1})
		require.NoError(t, err)
	}

	_, err := svc.Decrement(s, 1)
	require.NoError(t, err)
	v, err := svc.Decrement(s, 2)
	require.NoError(t, err)

	assert.Empty(t, v.Lines)
	assert.Zero(t, v.Subtotal)
}

func TestRefreshCart_UpdatesAndForgetsProducts(t *testing.T) {
	repo := new(mockCatalogRepository)
	svc := newTestStorefront(repo)
	a := product(1, "A", 100, intPtr(9))
	b := product(2, "B", 50, nil)
	s := seededSession(a, b)
	for _, id := range []int64{1, 2} {
		_, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: id, Quantity: 3})
		require.NoError(t, err)
	}

	fresh := product(1, "A", 100, intPtr(2))
	repo.On("GetProduct", mock.Anything, int64(1)).Return(&fresh, nil)
	repo.On("GetProduct", mock.Anything, int64(2)).Return(nil, apperrors.NotFound("product", "2"))

	v := svc.RefreshCart(context.Background(), s)

	require.Len(t, v.Lines, 2)
	assert.True(t, v.Lines[0].OverStock)
	assert.Equal(t, domain.AvailabilityUnknown, v.Lines[1].Availability)
	assert.False(t, v.Lines[1].CanIncrement)
}

func TestClear(t *testing.T) {
	svc := newTestStorefront(new(mockCatalogRepository))
	s := seededSession(product(1, "A", 100, nil))
	_, err := svc.AddItem(context.Background(), s, AddItemInput{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	v := svc.Clear(s)

	assert.Empty(t, v.Lines)
	assert.Equal(t, domain.ResolutionOpen, v.Shipping.Status)
}
