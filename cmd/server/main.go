package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/storefront/internal"
	"github.com/dukerupert/storefront/internal/auth"
	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/events"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/dukerupert/storefront/internal/handler/api"
	"github.com/dukerupert/storefront/internal/handler/webhook"
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/dukerupert/storefront/internal/repository"
	"github.com/dukerupert/storefront/internal/router"
	"github.com/dukerupert/storefront/internal/routes"
	"github.com/dukerupert/storefront/internal/service"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/dukerupert/storefront/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	applied, err := internal.RunMigrations(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed", "applied", applied)

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)

	// Initialize metrics
	telemetry.InitBusinessMetrics("storefront")
	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, "storefront")

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:         cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		MaxRetries:     3,
		TimeoutSeconds: 30,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Order events and token revocations share one NATS connection when configured
	var publisher events.Publisher = events.NopPublisher{}
	var revocations auth.RevocationStore = auth.NewMemoryRevocationStore()
	if cfg.NATS.URL != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
		nc, err := events.Connect(cfg.NATS.URL, "storefront", logger)
		if err != nil {
			return err
		}
		defer drain(nc, logger)

		publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)
		revocations, err = auth.NewNATSRevocationStore(ctx, nc, cfg.NATS.RevocationBucket, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("failed to initialize token revocation store: %w", err)
		}
		logger.Info("NATS connection established")
	} else {
		logger.Warn("NATS_URL not set: order events are not published and token revocations stay in memory")
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	}, revocations)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	// Initialize services
	orderService := service.NewOrderService(store, billingProvider, publisher, logger, service.OrderServiceConfig{
		Currency: cfg.Stripe.Currency,
	})
	paymentService := service.NewPaymentService(store, orderService, billingProvider, publisher, logger)
	productService := service.NewProductService(store, logger)
	reconciler := service.NewPaymentReconciler(store, publisher, logger)

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	checkoutLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig())
	defer checkoutLimiter.Stop()

	apiDeps := routes.APIDeps{
		Orders:        api.NewOrderHandler(orderService),
		Payments:      api.NewPaymentHandler(paymentService),
		Products:      api.NewProductHandler(productService),
		Tokens:        api.NewTokenHandler(tokens),
		RequireAdmin:  middleware.RequireAdmin(tokens),
		CheckoutLimit: checkoutLimiter.Middleware,
	}

	stripeWebhookHandler := webhook.NewStripeHandler(billingProvider, reconciler, logger)
	webhookDeps := routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
		BodyLimit:     middleware.MaxBodySize(middleware.WebhookMaxBodySize),
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0 // Disable HSTS in development
	}

	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		middleware.WithRequestLogger(logger),
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		defaultRateLimiter.Middleware,
		router.Logger(logger),
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			handler.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
		handler.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)
	r.NotFound(handler.NotFoundResponse)
	logger.Debug("Routes registered", "routes", r.Routes())

	// CORS wraps the whole router so preflight requests never reach the mux
	var root http.Handler = router.CORS(cfg.CORSOrigins)(r)

	// ==========================================================================
	// Start background worker and server
	// ==========================================================================

	sweeper := worker.NewWorker(orderService, worker.Config{
		Interval:  cfg.Sweeper.Interval,
		MaxAge:    cfg.Sweeper.MaxAge,
		BatchSize: cfg.Sweeper.BatchSize,
	}, logger)
	go func() {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

// drain flushes pending publishes before the connection closes.
func drain(nc *nats.Conn, logger *slog.Logger) {
	if err := nc.Drain(); err != nil {
		logger.Warn("nats drain failed", "error", err)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
