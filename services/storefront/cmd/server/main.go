package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akaushop/storefront/pkg/logger"
	"github.com/akaushop/storefront/services/storefront/internal/app"
	"github.com/akaushop/storefront/services/storefront/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("storefront", cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("storefront exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("storefront service stopped")
}

// run serves until SIGINT or SIGTERM and then drains.
func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("starting storefront service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("shop_api", cfg.ShopAPIBaseURL),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return application.Run(ctx)
}
