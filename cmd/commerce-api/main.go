// Package main is the entry point for the commerce-api server.
// Note: user accounts, sessions and identity live in the platform's main
// application; this service trusts its bearer tokens and webhooks.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inkwave/commerce-api/internal/auth"
	"github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/database"
	"github.com/inkwave/commerce-api/internal/http/handlers"
	"github.com/inkwave/commerce-api/internal/http/mw"
	"github.com/inkwave/commerce-api/internal/http/routes"
	"github.com/inkwave/commerce-api/internal/logging"
	"github.com/inkwave/commerce-api/internal/metrics"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/repository"
	"github.com/inkwave/commerce-api/internal/service"
	"github.com/inkwave/commerce-api/internal/shutdown"
	"github.com/inkwave/commerce-api/internal/version"
	"github.com/inkwave/commerce-api/internal/worker"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting commerce-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := database.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	repos := repository.NewRepositories(db)

	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Seed the default catalog, then apply the hosted catalog document when
	// object storage is configured.
	if err := services.Catalog.SeedDefaults(context.Background()); err != nil {
		logger.Error("failed to seed catalog", "error", err)
		os.Exit(1)
	}
	if services.Storage.IsEnabled() {
		if err := services.Catalog.RefreshFromStorage(context.Background()); err != nil {
			logger.Warn("failed to load hosted catalog, using stored packages", "error", err)
		}
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	// Background housekeeping: stale order sweep, voucher hold expiry,
	// catalog refresh, ledger snapshot export.
	sweeper := worker.New(
		services.Order,
		services.Catalog,
		services.Ledger,
		services.Storage,
		worker.Config{Interval: cfg.SweepInterval},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)

	// Idle monitor for scale-to-zero deployments. Pending orders count as
	// work so gateway callbacks never land on a stopped machine.
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:      cfg.IdleShutdownTimeout,
		Logger:       logger,
		ExcludePaths: []string{"/healthz", "/readyz", "/metrics"},
		PendingWork: func() bool {
			counts, err := services.Order.CountByStatus(context.Background())
			if err != nil {
				return true
			}
			return counts[models.OrderPending] > 0
		},
	})
	idleMonitor.Start()

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(idleMonitor.Middleware)
	router.Use(mw.APIVersion())

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Prometheus scrape endpoint
	router.Handle("/metrics", metrics.Handler())

	// Gateway callbacks are signature verified by their handlers and mounted
	// outside the per-IP rate limit so a settlement burst is never dropped.
	if cfg.StripeWebhookSecret != "" {
		stripeWebhook := handlers.NewStripeWebhookHandler(cfg, services.Order, logger)
		router.Post("/api/v1/webhooks/stripe", stripeWebhook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}
	if len(cfg.CoinpayCallbackKey) > 0 {
		coinpayWebhook := handlers.NewCoinpayWebhookHandler(cfg, services.Order, logger)
		router.Post("/api/v1/webhooks/coinpay", coinpayWebhook.HandleWebhook)
		logger.Info("coinpay webhook endpoint enabled")
	}
	if cfg.AccountWebhookSecret != "" {
		accountWebhook := handlers.NewAccountWebhookHandler(cfg, services.Account, logger)
		router.Post("/api/v1/webhooks/account", accountWebhook.HandleWebhook)
		logger.Info("account webhook endpoint enabled")
	}

	// API routes behind the per-IP rate limit
	router.Group(func(r chi.Router) {
		r.Use(mw.RateLimitByIP(100))

		humaConfig := huma.DefaultConfig("Commerce API", v.Short())
		humaConfig.Info.Description = "Coin wallet, voucher and membership commerce service for the reading platform."
		humaConfig.Servers = []*huma.Server{
			{URL: cfg.BaseURL, Description: "API Server"},
		}
		humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
			mw.SecurityScheme: {
				Type:        "http",
				Scheme:      "bearer",
				Description: "Session token issued by the platform's main application.",
			},
		}

		api := humachi.New(r, humaConfig)
		api.UseMiddleware(mw.HumaAuth(api, verifier))

		routes.Register(api, &routes.Handlers{
			Readyz:     handlers.NewReadyzHandler(db),
			Catalog:    handlers.NewCatalogHandler(services.Catalog),
			Balance:    handlers.NewBalanceHandler(services.Ledger),
			Voucher:    handlers.NewVoucherHandler(services.Voucher),
			Order:      handlers.NewOrderHandler(services.Order),
			Membership: handlers.NewMembershipHandler(services.Membership),
			Admin:      handlers.NewAdminHandler(services.Ledger, services.Voucher, services.Catalog, services.Order),
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on signal or idle timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-sigChan:
			logger.Info("shutting down server", "reason", "signal")
		case <-idleMonitor.ShutdownChan():
			logger.Info("shutting down server", "reason", "idle")
		}

		cancel()
		sweeper.Stop()
		idleMonitor.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"card_payments", cfg.CardPaymentsEnabled(),
		"crypto_payments", cfg.CryptoPaymentsEnabled(),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
