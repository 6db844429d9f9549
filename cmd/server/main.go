// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tamj/config"
	"tamj/internal/auth"
	"tamj/internal/db"
	"tamj/internal/payment"
	"tamj/internal/server"
	"tamj/internal/storage"
	"tamj/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatalw("Failed to load config", "error", err)
	}
	l := logger.Select(cfg.Log.Development)
	defer l.Sync()
	l.Infow("Starting tamj entitlement server", "auth", cfg.Auth.Mode, "storage", cfg.Storage.Driver)

	store, closeStore := openStore(cfg, l)
	defer closeStore()

	var provider auth.Provider
	if cfg.Auth.Demo() {
		demo, err := auth.NewDemo(auth.DefaultDemoAccounts)
		if err != nil {
			l.Fatalw("Failed to seed demo accounts", "error", err)
		}
		provider = demo
	} else {
		if cfg.Auth.FirebaseAPIKey == "" {
			l.Fatalw("Firebase API key is not configured")
		}
		provider = auth.NewIdentityToolkit(cfg.Auth.FirebaseAPIKey, cfg.Auth.FirebaseBaseURL, cfg.Auth.LanguageCode).
			WithLogger(l)
	}

	deps := server.Deps{
		Store:     store,
		Provider:  provider,
		Demo:      cfg.Auth.Demo(),
		LoginPath: cfg.Server.LoginPath,
		PublicURL: cfg.Server.PublicURL,
		Logger:    l,
	}

	stripeClient := payment.NewStripeClient(cfg.Stripe)
	switch {
	case cfg.Stripe.SecretKey != "" && cfg.Stripe.PriceID != "":
		deps.Gateway = stripeClient
		l.Infow("Payments via Stripe Checkout")
	case cfg.Stripe.PaymentLink != "":
		deps.Gateway = payment.NewLink(cfg.Stripe.PaymentLink)
		l.Infow("Payments via Stripe Payment Link")
	default:
		l.Warnw("No payment gateway configured", "demo", deps.Demo)
	}
	if cfg.Stripe.WebhookKey != "" {
		deps.Webhook = stripeClient
	}

	httpServer := server.NewServer(cfg.Server.Port, server.NewHandler(deps).Routes(), l)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Infow("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}

	l.Infow("Server stopped")
}

func openStore(cfg *config.Config, l *logger.Logger) (storage.Store, func()) {
	if cfg.Storage.Driver != "postgres" {
		return storage.NewMemory(), func() {}
	}

	var (
		database *db.PostgresDB
		err      error
	)
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(cfg.DB)
		if err == nil {
			break
		}
		l.Errorw("Failed to connect to database, retrying...", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatalw("Failed to connect to database after multiple attempts", "error", err)
	}
	return database, database.Close
}
