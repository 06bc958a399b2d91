package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/storefront/internal/api"
	"github.com/punchamoorthee/storefront/internal/config"
	"github.com/punchamoorthee/storefront/internal/gateway"
	"github.com/punchamoorthee/storefront/internal/service"
	"github.com/punchamoorthee/storefront/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orderStore, err := store.NewStore(ctx, cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer orderStore.Close()

	paystack, err := gateway.New(cfg.GatewaySecretKey,
		gateway.WithBaseURL(cfg.GatewayBaseURL),
		gateway.WithTimeout(cfg.GatewayTimeout),
		gateway.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.WebhookSecret == "" {
		logger.Warn("PAYSTACK_WEBHOOK_SECRET is not set; every webhook delivery will be refused")
	}

	// Initialize Layers
	handler := api.NewHandler(api.Deps{
		Verifier:      paystack,
		Checkout:      service.NewCheckoutService(paystack, cfg.PublicBaseURL, cfg.Currency, logger),
		Reconciler:    service.NewReconciler(orderStore, logger),
		Orders:        orderStore,
		Health:        orderStore,
		WebhookSecret: cfg.WebhookSecret,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal(err)
	}

	logger.Info("server starting", "port", cfg.Port, "env", cfg.Env, "public_base_url", cfg.PublicBaseURL)
	if err := serve(ctx, srv, ln, 10*time.Second); err != nil {
		logger.Error("server stopped with error", "error", err)
	}
	logger.Info("server stopped")
}
