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
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/repository"
	"storefront/internal/router"
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
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger, "storefront-api")
	logger.Info().Msg("starting storefront API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	m := metrics.New()

	// Initialize notification sinks and dispatcher
	sinks, closeSinks := buildSinks(ctx, cfg, logger)
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Workers:         cfg.Notify.Workers,
		QueueSize:       cfg.Notify.QueueSize,
		MaxRetries:      cfg.Notify.Retries(),
		DeliveryTimeout: time.Duration(cfg.Notify.DeliveryTimeout) * time.Second,
	}, sinks, m, logger)
	defer stopNotifications(dispatcher, closeSinks, cfg.Server.ShutdownGrace(), logger)

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	customerRepo := repository.NewCustomerRepository(pool, logger)

	// Initialize services
	cartService := service.NewCartService(cartRepo, productRepo, logger)
	orderService := service.NewOrderService(orderRepo, cartRepo, productRepo, customerRepo, dispatcher, m, logger)
	inventoryService := service.NewInventoryService(productRepo, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Cart:    handler.NewCartHandler(cartService, logger),
		Order:   handler.NewOrderHandler(orderService, logger),
		Product: handler.NewProductHandler(inventoryService, logger),
		Admin:   handler.NewAdminHandler(orderService, inventoryService, logger),
	}, router.Options{
		APIKey:    cfg.Auth.APIKey,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Metrics:   m,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace())
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	if runErr == nil {
		logger.Info().Msg("server shutdown completed")
	}
	return runErr
}

// stopNotifications drains the dispatcher within grace and only then closes
// the sinks, so no worker delivers through a closed writer.
func stopNotifications(dispatcher *notify.Dispatcher, closeSinks func(), grace time.Duration, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("notification queue not fully drained")
	}
	closeSinks()
}

// buildSinks assembles the enabled notification sinks. The log sink is always
// present. A sink that cannot be initialised is skipped with a warning.
func buildSinks(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]notify.Sink, func()) {
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	var closers []func() error

	if cfg.Kafka.Enabled {
		kafkaSink := notify.NewKafkaSink(notify.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic, logger)
		sinks = append(sinks, kafkaSink)
		closers = append(closers, kafkaSink.Close)
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka order events enabled")
	}

	if cfg.Email.Enabled {
		sinks = append(sinks, notify.NewEmailSink(cfg.Email.ServerToken, cfg.Email.From, logger))
		logger.Info().Msg("customer emails enabled")
	}

	if cfg.S3.Enabled {
		receiptSink, err := notify.NewReceiptSink(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 receipt sink, receipts disabled")
		} else {
			sinks = append(sinks, receiptSink)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn().Err(err).Msg("failed to close notification sink")
			}
		}
	}
}
