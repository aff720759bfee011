package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	apperrors "github.com/akaushop/storefront/pkg/errors"
	"github.com/akaushop/storefront/pkg/health"
	"github.com/akaushop/storefront/pkg/middleware"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
	"github.com/akaushop/storefront/services/storefront/internal/service"
)

const testCookie = "sf_session"

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func intPtr(n int) *int { return &n }

func testProduct(id int64, name string, price int64, stock int) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     name,
		Price:    price,
		Stock:    intPtr(stock),
		IsActive: true,
		ShippingOptions: []domain.ShippingOption{
			{Method: domain.ShippingPost, Fee: 60},
			{Method: domain.ShippingCVS711, Fee: 45},
		},
	}
}

type testServer struct {
	handler  http.Handler
	catalog  *mockCatalogRepository
	orders   *mockOrderRepository
	admin    *mockAdminRepository
	registry *service.Registry
	cookie   *http.Cookie
}

func newTestServer(t *testing.T, submitLimiter *middleware.RateLimiter) *testServer {
	t.Helper()
	logger := newTestLogger()

	catalog := new(mockCatalogRepository)
	orders := new(mockOrderRepository)
	admin := new(mockAdminRepository)

	storefront := service.NewStorefrontService(catalog, logger)
	registry := service.NewRegistry(time.Hour, logger)
	t.Cleanup(registry.Close)

	handler := NewRouter(RouterDeps{
		Storefront:    storefront,
		Checkout:      service.NewCheckoutService(orders, storefront, true, 5*time.Second, logger),
		Admin:         service.NewAdminService(admin, 30*time.Minute, logger),
		Registry:      registry,
		Health:        health.NewHandler(),
		Logger:        logger,
		Cookie:        CookieConfig{Name: testCookie},
		CORS:          middleware.DefaultCORSConfig(),
		SubmitLimiter: submitLimiter,
	})

	return &testServer{
		handler:  handler,
		catalog:  catalog,
		orders:   orders,
		admin:    admin,
		registry: registry,
	}
}

// do sends a request carrying the session cookie issued earlier, if any, and
// remembers a newly issued one.
func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.Name == testCookie {
			ts.cookie = c
		}
	}
	return rr
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&env), rr.Body.String())
	return env
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, rr)
	require.NotNil(t, env.Error, rr.Body.String())
	return env.Error.Code
}

func cartOf(t *testing.T, rr *httptest.ResponseRecorder) service.CartView {
	t.Helper()
	var cart service.CartView
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &cart))
	return cart
}

func hasNotice(cart service.CartView, kind service.NoticeKind) bool {
	for _, n := range cart.Notices {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// --- Sessions ---

func TestSessions_IssuesAndReusesCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, ts.cookie)
	assert.True(t, ts.cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ts.cookie.SameSite)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	issued := ts.cookie.Value
	rr = ts.do(t, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Result().Cookies(), "existing session keeps its cookie")
	assert.Equal(t, issued, ts.cookie.Value)
	assert.Equal(t, 1, ts.registry.Len())
}

func TestSessions_UnknownCookieGetsFreshSession(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cookie = &http.Cookie{Name: testCookie, Value: "forged"}

	ts.do(t, http.MethodGet, "/api/v1/cart", "")

	assert.NotEqual(t, "forged", ts.cookie.Value)
}

// --- Catalog ---

func TestListProducts_FiltersByCategory(t *testing.T) {
	ts := newTestServer(t, nil)
	mugs := int64(2)
	a := testProduct(1, "Mug", 100, 5)
	a.CategoryID = &mugs
	b := testProduct(2, "Tee", 300, 5)
	ts.catalog.On("ListProducts", mock.Anything).Return([]domain.Product{a, b}, nil)

	rr := ts.do(t, http.MethodGet, "/api/v1/products?category_id=2", "")

	require.Equal(t, http.StatusOK, rr.Code)
	var products []domain.Product
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &products))
	require.Len(t, products, 1)
	assert.Equal(t, "Mug", products[0].Name)
}

func TestListProducts_BadCategory(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/v1/products?category_id=abc", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rr))
}

func TestListProducts_UpstreamDown(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.catalog.On("ListProducts", mock.Anything).
		Return(nil, apperrors.ServiceUnavailable("shop is unreachable", errors.New("dial tcp: refused")))

	rr := ts.do(t, http.MethodGet, "/api/v1/products", "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", errorCode(t, rr))
}

func TestGetProduct_InvalidID(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/v1/products/zero", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rr))
}

func TestListCategories_Cacheable(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.catalog.On("ListCategories", mock.Anything).Return([]domain.Category{{ID: 1, Name: "Mugs"}}, nil)

	rr := ts.do(t, http.MethodGet, "/api/v1/categories", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "private, max-age=60", rr.Header().Get("Cache-Control"))
}

// --- Cart ---

func TestCart_AddAndAdjust(t *testing.T) {
	ts := newTestServer(t, nil)
	p := testProduct(1, "Mug", 100, 3)
	ts.catalog.On("GetProduct", mock.Anything, int64(1)).Return(&p, nil).Once()

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":1,"quantity":5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cart := cartOf(t, rr)
	assert.Equal(t, 3, cart.TotalItems, "clamped to stock")
	assert.Equal(t, int64(300), cart.Subtotal)
	assert.True(t, hasNotice(cart, service.NoticeStock), "clamp is reported")

	rr = ts.do(t, http.MethodPost, "/api/v1/cart/items/1/decrement", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, cartOf(t, rr).TotalItems)

	rr = ts.do(t, http.MethodPut, "/api/v1/cart/items/1", `{"quantity":1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, cartOf(t, rr).TotalItems)

	rr = ts.do(t, http.MethodPost, "/api/v1/cart/items/1/increment", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, cartOf(t, rr).TotalItems)

	rr = ts.do(t, http.MethodDelete, "/api/v1/cart/items/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, cartOf(t, rr).Lines)

	ts.catalog.AssertExpectations(t)
}

func TestCart_MissingLine(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items/9/increment", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rr))
}

func TestCart_SoldOut(t *testing.T) {
	ts := newTestServer(t, nil)
	p := testProduct(4, "Lamp", 900, 0)
	ts.catalog.On("GetProduct", mock.Anything, int64(4)).Return(&p, nil)

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":4,"quantity":1}`)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "SOLD_OUT", errorCode(t, rr))
}

func TestCart_AddItemBadRequests(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
		wantCode    string
	}{
		{name: "malformed json", body: `{"product_id":`, contentType: "application/json", wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{name: "missing product", body: `{"quantity":1}`, contentType: "application/json", wantStatus: http.StatusUnprocessableEntity, wantCode: "VALIDATION_FAILED"},
		{name: "negative quantity", body: `{"product_id":1,"quantity":-1}`, contentType: "application/json", wantStatus: http.StatusUnprocessableEntity, wantCode: "VALIDATION_FAILED"},
		{name: "form body", body: `product_id=1`, contentType: "application/x-www-form-urlencoded", wantStatus: http.StatusUnsupportedMediaType, wantCode: "UNSUPPORTED_MEDIA_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()

			ts.handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rr))
			ts.catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
		})
	}
}

// --- Checkout ---

const buyerDraft = `{
	"customer_name": "Lin Mei",
	"customer_email": "mei@example.com",
	"customer_phone": "0912345678",
	"recipient_name": "Lin Mei",
	"post_address": "No. 1, Zhongshan Rd, Taipei"
}`

func (ts *testServer) fillCart(t *testing.T) {
	t.Helper()
	p := testProduct(1, "A", 100, 10)
	ts.catalog.On("GetProduct", mock.Anything, int64(1)).Return(&p, nil).Once()
	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCheckout_EmptyCartRejected(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/api/v1/checkout/submit", "")

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	env := decode(t, rr)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "cart")
	ts.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCheckout_SubmitFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.fillCart(t)

	rr := ts.do(t, http.MethodPut, "/api/v1/checkout/draft", buyerDraft)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodPut, "/api/v1/checkout/shipping", `{"method":"post"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var view service.CheckoutView
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &view))
	assert.True(t, view.Ready)
	assert.Equal(t, int64(260), view.Cart.Quote.Total)

	ts.orders.On("CreateOrder", mock.Anything, mock.Anything).
		Return(&domain.OrderResult{OrderID: 42, TotalAmount: 260}, nil).Once()

	rr = ts.do(t, http.MethodPost, "/api/v1/checkout/submit", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var result domain.OrderResult
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &result))
	assert.Equal(t, int64(42), result.OrderID)

	rr = ts.do(t, http.MethodPut, "/api/v1/checkout/draft", `{"customer_name":"Someone"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "DRAFT_COMPLETED", errorCode(t, rr))

	rr = ts.do(t, http.MethodPost, "/api/v1/checkout/new", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &view))
	assert.Equal(t, service.PhaseEditing, view.Phase)

	ts.orders.AssertExpectations(t)
}

func TestCheckout_UnknownShippingMethod(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPut, "/api/v1/checkout/shipping", `{"method":"drone"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rr))
}

func TestCheckout_StockConflict(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.fillCart(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/v1/checkout/draft", buyerDraft).Code)

	ts.orders.On("CreateOrder", mock.Anything, mock.Anything).
		Return(nil, apperrors.InvalidInput("Insufficient stock: product_id=1, stock=1, requested=2")).Once()
	fresh := testProduct(1, "A", 100, 1)
	ts.catalog.On("GetProduct", mock.Anything, int64(1)).Return(&fresh, nil).Once()

	rr := ts.do(t, http.MethodPost, "/api/v1/checkout/submit", "")

	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	assert.Equal(t, "STOCK_CONFLICT", errorCode(t, rr))
}

func TestCheckout_SubmitRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(rate.Every(time.Minute), 1, time.Minute, newTestLogger())
	t.Cleanup(limiter.Close)
	ts := newTestServer(t, limiter)

	first := ts.do(t, http.MethodPost, "/api/v1/checkout/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := ts.do(t, http.MethodPost, "/api/v1/checkout/submit", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, second))

	view := ts.do(t, http.MethodGet, "/api/v1/checkout", "")
	assert.Equal(t, http.StatusOK, view.Code, "other routes are not limited")
}

// --- Admin ---

func TestAdmin_RequiresSignIn(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/v1/admin/products", "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	env := decode(t, rr)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SESSION_INVALID", env.Error.Code)
	assert.Equal(t, "admin sign-in required", env.Error.Message)
	ts.admin.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything)
}

func TestAdmin_LoginThenManage(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.admin.On("Login", mock.Anything, "hunter2").Return("tok-1", nil)

	rr := ts.do(t, http.MethodPost, "/api/v1/admin/login", `{"password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/api/v1/admin/session", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var status service.AdminStatus
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &status))
	assert.True(t, status.Authenticated)

	ts.admin.On("ListProducts", mock.Anything, "tok-1").Return([]domain.Product{testProduct(1, "A", 100, 1)}, nil)
	rr = ts.do(t, http.MethodGet, "/api/v1/admin/products", "")
	require.Equal(t, http.StatusOK, rr.Code)

	ts.admin.On("ListOrders", mock.Anything, "tok-1", 3, 0).
		Return([]domain.AdminOrder{{ID: 3}, {ID: 2}, {ID: 1}}, nil)
	rr = ts.do(t, http.MethodGet, "/api/v1/admin/orders?per_page=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Data    []domain.AdminOrder `json:"data"`
		HasNext bool                `json:"has_next"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.True(t, page.HasNext)

	ts.admin.On("UpdateOrderStatus", mock.Anything, "tok-1", int64(3), domain.OrderShipped).Return(nil)
	rr = ts.do(t, http.MethodPatch, "/api/v1/admin/orders/3/status", `{"status":"shipped"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/admin/logout", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/admin/products", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdmin_WrongPassword(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.admin.On("Login", mock.Anything, "nope").Return("", apperrors.Unauthorized("bad password"))

	rr := ts.do(t, http.MethodPost, "/api/v1/admin/login", `{"password":"nope"}`)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdmin_UpstreamRejectsToken(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.admin.On("Login", mock.Anything, "hunter2").Return("tok-1", nil)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/admin/login", `{"password":"hunter2"}`).Code)
	ts.admin.On("DeleteProduct", mock.Anything, "tok-1", int64(5)).Return(apperrors.Unauthorized("expired"))

	rr := ts.do(t, http.MethodDelete, "/api/v1/admin/products/5", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "SESSION_INVALID", errorCode(t, rr))

	rr = ts.do(t, http.MethodGet, "/api/v1/admin/session", "")
	var status service.AdminStatus
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &status))
	assert.False(t, status.Authenticated)
}

// --- Probes ---

func TestHealthLive(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/health/live", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, ts.cookie, "probes do not create sessions")
}
