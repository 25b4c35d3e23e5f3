// Package factory wires stores, services and notifiers from configuration.
package factory

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/catalog"
	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/config"
	"github.com/questkeep/questkeep/internal/database"
	"github.com/questkeep/questkeep/internal/events"
	"github.com/questkeep/questkeep/internal/repositories"
	"github.com/questkeep/questkeep/internal/services"
	pkgauth "github.com/questkeep/questkeep/pkg/auth"
	pkglogger "github.com/questkeep/questkeep/pkg/logger"
)

// App contains all wired application components
type App struct {
	// Storage
	Store   repositories.KVStore
	Backend string
	DB      *database.DB // set for the postgres backend only

	Clock        clock.Clock
	TokenManager *auth.TokenManager // nil without a parent token secret

	// Services
	PinGuard          *services.PinGuard
	CredentialService *services.CredentialService
	CastleService     *services.CastleService
	Catalog           *services.Catalog

	closers []func()
}

// Options selects optional collaborators. The CLI leaves notifications off.
type Options struct {
	Notifications bool
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	app := &App{Clock: clock.New(), Backend: cfg.Store.Backend}

	if err := app.openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	var notifier services.LockoutNotifier
	if opts.Notifications {
		notifier = app.buildNotifier(ctx, cfg, logger)
	}

	if err := app.buildServices(cfg, notifier, logger); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

// NewWithStore wires services on an existing store (useful for testing)
func NewWithStore(cfg *config.Config, store repositories.KVStore, clk clock.Clock, logger *slog.Logger) (*App, error) {
	app := &App{Store: store, Backend: config.StoreMemory, Clock: clk}
	if err := app.buildServices(cfg, nil, logger); err != nil {
		return nil, err
	}
	return app, nil
}

// Close releases backend connections and publishers
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.Store.Backend {
	case config.StoreMemory, "":
		a.Backend = config.StoreMemory
		a.Store = repositories.NewMemoryStore(a.Clock)
	case config.StoreRedis:
		redisCfg := repositories.DefaultRedisConfig()
		redisCfg.URL = cfg.Redis.URL
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		store, err := repositories.NewRedisStore(redisCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, func() { _ = store.Close() })
	case config.StorePostgres:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.Store = repositories.NewPostgresStore(db, a.Clock)
		a.closers = append(a.closers, db.Close)
	default:
		return fmt.Errorf("invalid store backend %q: must be memory, redis or postgres", cfg.Store.Backend)
	}
	return nil
}

// buildNotifier always includes the log notifier; email and broker are added when configured
func (a *App) buildNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) services.LockoutNotifier {
	notifiers := services.MultiNotifier{services.NewLogNotifier(logger)}

	if cfg.Notify.EmailEnabled {
		email, err := services.NewAWSSESEmailService(ctx, cfg.Notify.AWSRegion, cfg.Notify.EmailFrom, logger)
		if err != nil {
			logger.Warn("lockout email disabled", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, services.NewEmailNotifier(email))
		}
	}

	if cfg.Notify.AMQPURL != "" {
		producer, err := events.NewEventProducer(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange, logger)
		if err != nil {
			logger.Warn("broker unavailable, lockout events will only be logged", slog.Any("error", err))
			notifiers = append(notifiers, services.NewEventNotifier(&events.LogPublisher{Logger: logger}))
		} else {
			notifiers = append(notifiers, services.NewEventNotifier(producer))
			a.closers = append(a.closers, producer.Close)
		}
	}

	return notifiers
}

func (a *App) buildServices(cfg *config.Config, notifier services.LockoutNotifier, logger *slog.Logger) error {
	auditLogger := pkglogger.NewAuditLogger(logger)

	types, err := catalog.Load(cfg.Castle.CatalogPath)
	if err != nil {
		return err
	}
	cat, err := services.NewCatalog(types)
	if err != nil {
		return err
	}
	a.Catalog = cat

	hasher, err := pkgauth.HasherFor(cfg.Pin.HashAlgorithm)
	if err != nil {
		return err
	}

	attempts := repositories.NewAttemptRepository(a.Store)
	credentials := repositories.NewCredentialRepository(a.Store)

	var delay *auth.FailureDelay
	if cfg.Pin.FailureBaseDelay > 0 || cfg.Pin.FailureRandomDelay > 0 {
		delay = auth.NewFailureDelay(auth.FailureDelayConfig{
			BaseDelay:   cfg.Pin.FailureBaseDelay,
			RandomDelay: cfg.Pin.FailureRandomDelay,
		})
	}

	a.PinGuard = services.NewPinGuard(attempts, credentials, notifier, delay, services.PinGuardConfig{
		MaxFailedAttempts:  cfg.Pin.MaxFailedAttempts,
		LockoutDuration:    cfg.Pin.LockoutDuration,
		LockoutMultiplier:  cfg.Pin.LockoutMultiplier,
		MaxLockoutDuration: cfg.Pin.MaxLockoutDuration,
		EscalationWindow:   cfg.Pin.EscalationWindow,
	}, a.Clock, logger, auditLogger)

	var recoveryMgr *auth.RecoveryManager
	if len(cfg.Auth.RecoveryKey) > 0 {
		recoveryMgr, err = auth.NewRecoveryManager(cfg.Auth.RecoveryKey, cfg.Auth.RecoveryIssuer, a.Clock)
		if err != nil {
			return fmt.Errorf("failed to configure pin recovery: %w", err)
		}
	}

	a.CredentialService = services.NewCredentialService(credentials, repositories.NewRecoveryRepository(a.Store),
		repositories.NewRecoveryAttemptRepository(a.Store), recoveryMgr, a.PinGuard, hasher,
		services.CredentialServiceConfig{
			MaxRecoveryAttempts: cfg.Pin.RecoveryMaxAttempts,
			RecoveryLockout:     cfg.Pin.RecoveryLockoutDuration,
		}, a.Clock, logger, auditLogger)

	gridSize := cfg.Castle.GridSize
	if gridSize <= 0 {
		gridSize = services.DefaultGridSize
	}
	a.CastleService = services.NewCastleService(services.NewGrid(gridSize, cat),
		repositories.NewLayoutRepository(a.Store), a.Clock, logger, auditLogger)

	if cfg.Auth.ParentTokenSecret != "" {
		a.TokenManager = auth.NewTokenManager(cfg.Auth.ParentTokenSecret, cfg.Auth.ParentTokenExpiry, a.Clock)
	}

	return nil
}
