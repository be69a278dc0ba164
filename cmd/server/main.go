package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/vardenhq/varden/internal"
	"github.com/vardenhq/varden/internal/billing"
	"github.com/vardenhq/varden/internal/events"
	"github.com/vardenhq/varden/internal/handler"
	"github.com/vardenhq/varden/internal/middleware"
	"github.com/vardenhq/varden/internal/postgres"
	"github.com/vardenhq/varden/internal/router"
	"github.com/vardenhq/varden/internal/service"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	orderStore := postgres.NewOrderStore(pool)
	catalog := postgres.NewCatalogService(pool)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	billingProvider, err := billing.NewStripeProvider(cfg.Stripe)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", cfg.Stripe.IsTestMode())

	// Initialize event publisher
	var publisher events.Publisher = events.Noop{}
	if cfg.NATSUrl != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSUrl, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS event publisher initialized", "url", cfg.NATSUrl)
	}

	// Initialize services
	checkoutService := service.NewCheckoutService(catalog, billingProvider, publisher, service.CheckoutConfig{
		PlatformFeeBasisPoints: cfg.PlatformFeeBasisPoints,
		Currency:               cfg.Currency,
	})
	refundService := service.NewRefundService(orderStore, billingProvider, publisher, logger)

	// Initialize Prometheus metrics
	metrics := middleware.NewMetrics("varden")

	// Initialize handlers
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	refundHandler := handler.NewRefundHandler(refundService, metrics)
	webhookHandler := handler.NewWebhookHandler(billingProvider, cfg.Stripe.WebhookSecret)

	// Create router and register routes
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Checkout
	r.Post("/api/checkout/totals", checkoutHandler.Total)
	r.Post("/api/checkout/sessions", checkoutHandler.CreateSession)

	// Refunds
	r.Post("/api/orders/{id}/refunds", refundHandler.Create)
	r.Post("/api/orders/{id}/refunds/preview", refundHandler.Preview)
	r.Get("/api/orders/{id}/refunds", refundHandler.List)

	// Processor webhooks
	r.Post("/webhooks/stripe", webhookHandler.HandleEvent)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
