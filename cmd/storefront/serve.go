package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/cartstore"
	"github.com/nikolayk812/storefront/internal/httpapi"
	"github.com/nikolayk812/storefront/internal/metrics"
	"github.com/nikolayk812/storefront/internal/notification"
	"github.com/nikolayk812/storefront/internal/payment"
	"github.com/nikolayk812/storefront/internal/repository"
	"github.com/nikolayk812/storefront/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v82"
)

const (
	requestTimeout = 30 * time.Second
	serviceTimeout = 10 * time.Second
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the storefront HTTP API.

Examples:
  storefront serve --config storefront.yaml
  STOREFRONT_DATABASE_URL=postgres://... STOREFRONT_WEBHOOK_SECRET=whsec_... STOREFRONT_STRIPE_SECRET_KEY=sk_... storefront serve --migrate`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	unit, err := cfg.CurrencyUnit()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveMigrate {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("repository.Migrate: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pool.Ping: %w", err)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("client.Ping: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := repository.NewStore(pool)
	carts := cartstore.NewRedisStore(client)
	registry := notification.NewRegistry()

	verifier, err := payment.NewStripeVerifier(cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("payment.NewStripeVerifier: %w", err)
	}

	orders, err := service.NewOrderService(store, carts, unit, m, logger)
	if err != nil {
		return fmt.Errorf("service.NewOrderService: %w", err)
	}

	payments, err := service.NewPaymentService(store, verifier, registry, m, logger)
	if err != nil {
		return fmt.Errorf("service.NewPaymentService: %w", err)
	}

	cartService, err := service.NewCartService(carts, cfg.CartTTL, logger)
	if err != nil {
		return fmt.Errorf("service.NewCartService: %w", err)
	}

	var backend stripe.Backend
	if cfg.StripeAPIURL != "" {
		backend = payment.NewStripeBackend(cfg.StripeAPIURL, &http.Client{Timeout: serviceTimeout})
	}

	intents, err := payment.NewStripeIntents(cfg.StripeSecretKey, backend)
	if err != nil {
		return fmt.Errorf("payment.NewStripeIntents: %w", err)
	}

	intentService, err := service.NewPaymentIntentService(store, carts, intents, unit, cfg.CartTTL, logger)
	if err != nil {
		return fmt.Errorf("service.NewPaymentIntentService: %w", err)
	}

	handler := httpapi.NewHandler(orders, payments, intentService, cartService, registry, logger, serviceTimeout)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, m, reg, requestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(handler.CloseStreams)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("storefront starting", "addr", cfg.HTTPAddr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("srv.ListenAndServe: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("srv.Shutdown: %w", err)
	}

	logger.Info("server exited")

	return nil
}
