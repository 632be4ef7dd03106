package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger, "storefront-cart-sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	carts := service.NewCartService(
		repository.NewCartRepository(pool, logger),
		repository.NewProductRepository(pool, logger),
		logger,
	)
	m := metrics.New()

	if cfg.Sweeper.Interval == 0 {
		return sweep(ctx, carts, m, logger)
	}

	if cfg.Sweeper.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.Sweeper.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		defer server.Close()
	}

	interval := time.Duration(cfg.Sweeper.Interval) * time.Second
	logger.Info().Dur("interval", interval).Msg("cart sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := sweep(ctx, carts, m, logger); err != nil {
			logger.Error().Err(err).Msg("sweep failed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("cart sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// sweep deletes guest carts whose expiry has passed.
func sweep(ctx context.Context, carts service.CartService, m *metrics.Metrics, logger zerolog.Logger) error {
	deleted, err := carts.SweepExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to sweep expired carts: %w", err)
	}

	m.CartsDeleted(deleted)
	logger.Info().Int64("deleted", deleted).Msg("expired guest carts swept")
	return nil
}
