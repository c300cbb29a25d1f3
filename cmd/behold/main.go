package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/beholdhq/behold-agent/internal/agent"
	"github.com/beholdhq/behold-agent/internal/config"
	"github.com/beholdhq/behold-agent/internal/httpapi"
	"github.com/beholdhq/behold-agent/internal/observability"
	"github.com/beholdhq/behold-agent/internal/session"
	"github.com/beholdhq/behold-agent/internal/shopify"
	"github.com/beholdhq/behold-agent/internal/tracking"
	"github.com/beholdhq/behold-agent/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	tracker, err := tracking.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("tracking store init failed: %v", err)
	}
	defer tracker.Close()

	verifier, err := webhook.NewVerifier(cfg.WebhookSecret)
	if err != nil {
		log.Fatalf("webhook verifier init failed: %v", err)
	}

	contexts := session.NewStore(cfg.ContextTTL, session.Bounds{
		MaxTurns:        cfg.MaxTurns,
		MaxSearches:     cfg.MaxSearches,
		MaxProductViews: cfg.MaxProductViews,
	})
	contexts.SetSweepHook(func(removed int) {
		metrics.ContextsSwept.Add(float64(removed))
		metrics.ActiveContexts.Set(float64(contexts.Len()))
	})

	// The storefront client is optional: without shop credentials the service
	// still verifies webhooks and serves chat, it just cannot create carts.
	var carts httpapi.CartCreator
	if cfg.StorefrontShop != "" {
		client, err := shopify.NewClient(shopify.Config{
			Shop:       cfg.StorefrontShop,
			APIVersion: cfg.StorefrontAPIVersion,
			Token:      cfg.StorefrontToken,
		})
		if err != nil {
			log.Fatalf("storefront client init failed: %v", err)
		}
		carts = client
		log.Printf("storefront client configured for shop %s", cfg.StorefrontShop)
	} else {
		log.Printf("storefront client disabled (SHOPIFY_SHOP not set)")
	}

	correlator := tracking.NewCorrelator(tracker)

	api := httpapi.New(cfg, contexts, verifier, correlator, carts, tracker,
		agent.NewMockResponder(), metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	contexts.StartJanitor(runCtx, cfg.SweepInterval)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
