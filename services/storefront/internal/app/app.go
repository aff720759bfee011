package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/akaushop/storefront/pkg/health"
	"github.com/akaushop/storefront/pkg/httpclient"
	"github.com/akaushop/storefront/pkg/middleware"
	"github.com/akaushop/storefront/pkg/tracing"
	"github.com/akaushop/storefront/services/storefront/internal/config"
	handler "github.com/akaushop/storefront/services/storefront/internal/handler/http"
	"github.com/akaushop/storefront/services/storefront/internal/repository/rest"
	"github.com/akaushop/storefront/services/storefront/internal/service"
)

// limiterTTL is how long an idle rate-limit bucket is remembered.
const limiterTTL = 10 * time.Minute

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	registry       *service.Registry
	limiters       []*middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Reads and admin calls are idempotent enough to retry; order submission
	// goes through a client that never retries.
	readClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.UpstreamTimeout(),
		MaxRetries:      cfg.UpstreamRetries,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 50,
	})
	orderClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.SubmitTimeout(),
		MaxRetries:      0,
		MaxConnsPerHost: 20,
	})

	shopCB := breakerConfig(cfg, "shop-api")
	ordersCB := breakerConfig(cfg, "shop-orders")
	shopClient := httpclient.NewCircuitBreakerClient(readClient, shopCB, logger)
	ordersClient := httpclient.NewCircuitBreakerClient(orderClient, ordersCB, logger)
	logger.Info("circuit breakers initialized",
		slog.String("shop_api", shopCB.Name),
		slog.String("orders", ordersCB.Name),
		slog.Uint64("max_requests", uint64(cfg.CBMaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cfg.CBMinRequests)),
	)

	// Build the dependency graph.
	catalogRepo := rest.NewCatalogRepository(cfg.ShopAPIBaseURL, shopClient, logger)
	orderRepo := rest.NewOrderRepository(cfg.ShopAPIBaseURL, ordersClient, logger)
	adminRepo := rest.NewAdminRepository(cfg.ShopAPIBaseURL, shopClient, logger)

	storefrontService := service.NewStorefrontService(catalogRepo, logger)
	checkoutService := service.NewCheckoutService(
		orderRepo,
		storefrontService,
		cfg.CheckoutRequirePhone,
		cfg.SubmitTimeout(),
		logger,
	)
	adminService := service.NewAdminService(adminRepo, cfg.AdminSessionTTL(), logger)
	registry := service.NewRegistry(cfg.SessionTTL(), logger)

	apiLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, limiterTTL, logger)
	submitLimiter := middleware.NewRateLimiter(
		rate.Every(time.Minute/time.Duration(cfg.SubmitRateLimitPerMin)),
		cfg.SubmitRateLimitPerMin,
		limiterTTL,
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("shop-api", catalogRepo.Ping)
	healthHandler.RegisterNonCritical("shop-orders", ordersClient.Healthy)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.AllowCredentials = true
	cors.ExposedHeaders = append(cors.ExposedHeaders, "Retry-After")
	cors.Environment = cfg.Environment

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		Storefront: storefrontService,
		Checkout:   checkoutService,
		Admin:      adminService,
		Registry:   registry,
		Health:     healthHandler,
		Logger:     logger,
		Cookie: handler.CookieConfig{
			Name:   cfg.SessionCookieName,
			Secure: cfg.SessionCookieSecure,
		},
		CORS:          cors,
		APILimiter:    apiLimiter,
		SubmitLimiter: submitLimiter,
		PprofCIDRs:    cfg.PprofAllowedCIDRs,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		registry:       registry,
		limiters:       []*middleware.RateLimiter{apiLimiter, submitLimiter},
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func breakerConfig(cfg *config.Config, name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Session registry and rate limiters
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests within the order submit budget.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.SubmitTimeout()+time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close sessions so late fetches are discarded, then stop the janitors.
	a.logger.Info("closing sessions", slog.Int("count", a.registry.Len()))
	a.registry.Close()
	for _, l := range a.limiters {
		l.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
