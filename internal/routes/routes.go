package routes

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/handlers"
	"github.com/questkeep/questkeep/internal/middleware"
	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Pin        *handlers.PinHandler
	Credential *handlers.CredentialHandler
	Castle     *handlers.CastleHandler
	Health     *handlers.HealthHandler
}

// Options configures cross-cutting middleware
type Options struct {
	Env            string
	AllowedOrigins []string
	PinRateLimit   middleware.RateLimitConfig
	RequestTimeout time.Duration
	SyncServiceKey string
}

// NewRouter builds the chi router with the global middleware stack and all routes
func NewRouter(h Handlers, tokenManager *auth.TokenManager, resolver *pkghttp.ClientIPResolver, logger *slog.Logger, opts Options) chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecureLogger(logger, resolver))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: opts.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(opts.AllowedOrigins)))
	if opts.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(opts.RequestTimeout))
	}

	router.Get("/health", h.Health.Health)

	RegisterRoutes(router, h, tokenManager, resolver, opts)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, tokenManager *auth.TokenManager, resolver *pkghttp.ClientIPResolver, opts Options) {
	pinLimit := opts.PinRateLimit
	if pinLimit.RequestsPerMinute <= 0 {
		pinLimit = middleware.DefaultPinRateLimit()
	}
	limitByIP := middleware.RateLimitByIP(pinLimit, resolver)

	router.Route("/pin", func(r chi.Router) {
		// Public routes; guessing is bounded by the PIN guard and the IP limit
		r.With(limitByIP).Post("/verify", h.Pin.Verify)
		r.With(limitByIP).Post("/recovery/{userID}", h.Credential.Recover)
		r.Get("/status/{userID}", h.Pin.Status)

		// Enrollment is driven by the sync layer, never by the device
		r.With(auth.RequireServiceKey(opts.SyncServiceKey)).Post("/credentials", h.Credential.Enroll)

		// Parent mode required
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireParentMode(tokenManager))
			r.Put("/credentials/{userID}", h.Credential.ChangePIN)
			r.Post("/recovery/{userID}/enroll", h.Credential.EnrollRecovery)
		})
	})

	router.Route("/castle", func(r chi.Router) {
		r.Get("/catalog", h.Castle.Catalog)
		r.Get("/{sessionID}/buildings", h.Castle.Layout)
		r.Post("/{sessionID}/buildings", h.Castle.Place)
		r.Post("/{sessionID}/buildings/check", h.Castle.Check)
		r.Post("/{sessionID}/buildings/{buildingID}/upgrade", h.Castle.Upgrade)
	})
}
