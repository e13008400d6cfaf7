// Command api runs the QR Studio HTTP API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"qrstudio/internal/api/handlers"
	"qrstudio/internal/auth"
	"qrstudio/internal/billing"
	"qrstudio/internal/cache"
	"qrstudio/internal/config"
	"qrstudio/internal/core"
	"qrstudio/internal/db"
	"qrstudio/internal/notifications/webhook"
	"qrstudio/internal/shortcode"
	"qrstudio/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting qr studio api", "environment", cfg.Environment, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	shortCodeCache := cache.NewShortCodeCache(ctx, cfg.Redis, logger)
	defer func() {
		if err := shortCodeCache.Close(); err != nil {
			logger.Warn("closing short code cache", "error", err)
		}
	}()

	users := db.NewUserRepository(pool)
	qrCodes := db.NewQRCodeRepository(pool)
	campaigns := db.NewCampaignRepository(pool)
	scans := db.NewScanRepository(pool)
	team := db.NewTeamRepository(pool)
	apiKeys := db.NewAPIKeyRepository(pool)
	webhooks := db.NewWebhookRepository(pool)

	usage := billing.NewUsageService(
		billing.NewStaticPlanRegistry(),
		db.NewUsageCounts(qrCodes, team, apiKeys),
		users,
		cfg.Limits.MissingUserPolicy,
		logger,
	)

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	authService, err := auth.NewService(cfg.Auth.JWTSecret, users, apiKeys, hasher, logger)
	if err != nil {
		return fmt.Errorf("initializing auth: %w", err)
	}

	dispatcher, err := webhook.NewDispatcher(cfg.Webhook, webhooks, logger)
	if err != nil {
		return fmt.Errorf("initializing webhook dispatcher: %w", err)
	}
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		if err := dispatcher.Start(ctx); err != nil {
			logger.Error("webhook dispatcher stopped", "error", err)
		}
	}()

	server, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}
	server.Authenticator = authService

	codes := shortcode.New(cfg.Limits.ShortCodeLength)

	qrHandler := handlers.NewQRCodeHandler(
		qrStore{qrCodes},
		usage,
		users,
		codes,
		hasher,
		dispatcher,
		shortCodeCache,
		server.Validator,
		logger,
	)
	campaignHandler := handlers.NewCampaignHandler(campaigns, server.Validator, logger)
	teamHandler := handlers.NewTeamHandler(team, usage, server.Validator, logger)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeys, usage, hasher, server.Validator, logger)
	usageHandler := handlers.NewUsageHandler(usage, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(scans, logger)
	webhooksHandler := handlers.NewWebhooksHandler(webhooks, server.Validator, logger)
	redirectHandler := handlers.NewRedirectHandler(qrCodes, shortCodeCache, scans, hasher, server.Validator, logger)

	server.V1RouteRegistrars = []core.RouteRegistrar{
		func(r chi.Router) { r.Route("/qr-codes", qrHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/campaigns", campaignHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/team", teamHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/api-keys", apiKeyHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/usage", usageHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/analytics", analyticsHandler.RegisterRoutes) },
		webhooksHandler.RegisterRoutes,
	}
	server.PublicRouteRegistrars = []core.RouteRegistrar{
		redirectHandler.RegisterRoutes,
	}
	server.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	stop()
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Warn("webhook dispatcher did not drain before deadline")
	}

	return server.Shutdown(shutdownCtx)
}

// qrStore adapts the QR code repository to the handler's store contract,
// translating the handler-level list filter into the repository's.
type qrStore struct {
	*db.QRCodeRepository
}

func (s qrStore) List(ctx context.Context, userID string, filter handlers.QRCodeListFilter) ([]*types.QRCode, int, error) {
	return s.QRCodeRepository.List(ctx, userID, db.QRCodeFilter{
		Search:     filter.Search,
		Type:       filter.Type,
		CampaignID: filter.CampaignID,
		Favorite:   filter.Favorite,
		Page:       filter.Page,
		Limit:      filter.Limit,
	})
}

// newLogger builds the process-wide structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Environment == "local" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
