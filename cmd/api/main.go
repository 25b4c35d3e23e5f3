package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/questkeep/questkeep/internal/background"
	"github.com/questkeep/questkeep/internal/config"
	"github.com/questkeep/questkeep/internal/factory"
	"github.com/questkeep/questkeep/internal/handlers"
	"github.com/questkeep/questkeep/internal/middleware"
	"github.com/questkeep/questkeep/internal/routes"
	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("kv_backend", cfg.Store.Backend))

	ctx := context.Background()

	// Wire store, services and lockout notifiers
	app, err := factory.New(ctx, cfg, logger, factory.Options{Notifications: true})
	if err != nil {
		logger.Error("failed to initialise application", slog.Any("error", err))
		os.Exit(1)
	}
	defer app.Close()

	resolver := pkghttp.NewClientIPResolver(cfg.Server.TrustedProxies)

	// Handlers
	h := routes.Handlers{
		Pin:        handlers.NewPinHandler(app.PinGuard, app.TokenManager, resolver, logger),
		Credential: handlers.NewCredentialHandler(app.CredentialService, resolver, logger),
		Castle: handlers.NewCastleHandler(app.CastleService, handlers.CatalogResponse{
			GridSize:  app.CastleService.Grid().Size,
			TileSize:  cfg.Castle.TileSize,
			Buildings: app.Catalog.Types(),
		}, logger),
		Health: handlers.NewHealthHandler(app.Store, app.Backend, logger),
	}

	if cfg.Auth.SyncServiceKey == "" {
		logger.Warn("SYNC_SERVICE_KEY not set, PIN enrollment is disabled")
	}

	router := routes.NewRouter(h, app.TokenManager, resolver, logger, routes.Options{
		Env:            cfg.Server.Env,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PinRateLimit:   middleware.RateLimitConfig{RequestsPerMinute: cfg.Pin.VerifyRatePerMin},
		RequestTimeout: 60 * time.Second,
		SyncServiceKey: cfg.Auth.SyncServiceKey,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task for backends that do not expire keys themselves
	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()

	var cleanupManager *background.CleanupManager
	if purger, ok := app.Store.(background.ExpiredPurger); ok && cfg.Store.CleanupInterval > 0 {
		cleanupManager = background.NewCleanupManager(purger, logger, cfg.Store.CleanupInterval)
		go cleanupManager.Start(cleanupCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
