package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akaushop/storefront/pkg/health"
	"github.com/akaushop/storefront/pkg/middleware"
	"github.com/akaushop/storefront/services/storefront/internal/service"
)

// categoryMaxAge is how long browsers may cache the category list, in seconds.
const categoryMaxAge = 60

// RouterDeps groups everything NewRouter mounts.
type RouterDeps struct {
	Storefront *service.StorefrontService
	Checkout   *service.CheckoutService
	Admin      *service.AdminService
	Registry   *service.Registry

	Health *health.Handler
	Logger *slog.Logger

	Cookie CookieConfig
	CORS   middleware.CORSConfig

	// APILimiter applies to every /api/v1 request, SubmitLimiter to order
	// submission only. Either may be nil to disable it.
	APILimiter    *middleware.RateLimiter
	SubmitLimiter *middleware.RateLimiter

	PprofCIDRs []string
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.CORS(deps.CORS))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, deps.PprofCIDRs, logger)

	storefrontHandler := NewStorefrontHandler(deps.Storefront, logger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, logger)
	adminHandler := NewAdminHandler(deps.Admin, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Sessions runs first so the request logger carries session_id.
		r.Use(Sessions(deps.Registry, deps.Cookie))
		r.Use(middleware.RequestLogger(logger))
		r.Use(ContentTypeJSON)
		if deps.APILimiter != nil {
			r.Use(deps.APILimiter.Middleware(sessionKeyOrIP))
		}

		r.With(middleware.CacheControl(categoryMaxAge)).Get("/categories", storefrontHandler.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Get("/products", storefrontHandler.ListProducts)
			r.Get("/products/{id}", storefrontHandler.GetProduct)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", storefrontHandler.GetCart)
				r.Delete("/", storefrontHandler.ClearCart)
				r.Post("/refresh", storefrontHandler.RefreshCart)

				r.Post("/items", storefrontHandler.AddItem)
				r.Put("/items/{id}", storefrontHandler.SetQuantity)
				r.Delete("/items/{id}", storefrontHandler.RemoveItem)
				r.Post("/items/{id}/increment", storefrontHandler.Increment)
				r.Post("/items/{id}/decrement", storefrontHandler.Decrement)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.GetCheckout)
				r.Put("/draft", checkoutHandler.UpdateDraft)
				r.Put("/shipping", checkoutHandler.SelectShipping)
				r.Post("/new", checkoutHandler.NewDraft)

				submit := r.With()
				if deps.SubmitLimiter != nil {
					submit = r.With(deps.SubmitLimiter.Middleware(sessionKeyOrIP))
				}
				submit.Post("/submit", checkoutHandler.Submit)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/login", adminHandler.Login)
				r.Post("/logout", adminHandler.Logout)
				r.Get("/session", adminHandler.Status)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAuth(adminGuard(deps.Admin)))

					r.Get("/products", adminHandler.ListProducts)
					r.Post("/products", adminHandler.CreateProduct)
					r.Patch("/products/{id}", adminHandler.UpdateProduct)
					r.Delete("/products/{id}", adminHandler.DeleteProduct)
					r.Patch("/products/{id}/active", adminHandler.SetProductActive)

					r.Get("/categories", adminHandler.ListCategories)
					r.Post("/categories", adminHandler.CreateCategory)
					r.Patch("/categories/{id}", adminHandler.UpdateCategory)

					r.Get("/orders", adminHandler.ListOrders)
					r.Get("/orders/{id}", adminHandler.GetOrder)
					r.Patch("/orders/{id}/status", adminHandler.UpdateOrderStatus)
				})
			})
		})
	})

	return r
}
