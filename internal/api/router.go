package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/api/handlers"
	"github.com/testforge/cardforge/internal/api/middleware"
	"github.com/testforge/cardforge/internal/services/suite"
	"github.com/testforge/cardforge/pkg/httputil"
)

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	Service *suite.Service
	// Redis backs rate limiting and the readiness check. Optional.
	Redis          redis.UniversalClient
	Logger         *zap.Logger
	CORSOrigins    []string
	APIKey         string
	RateLimit      int
	RequestTimeout time.Duration
	EnableMetrics  bool
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Minute
	}
	r := chi.NewRouter()

	// Base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	if cfg.EnableMetrics {
		r.Use(cfg.Service.Metrics().HTTPMiddleware)
	}

	// CORS configuration
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:         300,
		}))
	}

	// Rate limiting (if Redis is available)
	if cfg.Redis != nil && cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimitMiddleware(middleware.NewRedisLimiter(cfg.Redis), cfg.RateLimit, cfg.Logger).Handler)
	}

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.Redis))
	if cfg.EnableMetrics {
		r.Handle("/metrics", cfg.Service.Metrics().Handler())
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(cfg.APIKey).Handler)
		r.Use(chimw.Timeout(cfg.RequestTimeout))

		h := handlers.NewOperationHandler(cfg.Service, cfg.Logger)

		r.Get("/operations", h.Operations)
		r.Get("/registry", h.Registry)
		r.Post("/registry/reload", h.ReloadRegistry)

		r.Route("/generate", func(r chi.Router) {
			r.Post("/page-object", h.GeneratePageObject)
			r.Post("/spec", h.GenerateSpec)
			r.Post("/test", h.GenerateTest)
			r.Post("/suite", h.GenerateSuite)
		})

		r.Post("/extractions", h.Extract)
		r.Post("/extraction-scripts", h.ExtractionScript)
		r.Post("/validations", h.Validate)

		r.Route("/cards/{card_type}", func(r chi.Router) {
			r.Post("/runs", h.RunTests)
			r.Post("/fix", h.RunAndFix)
		})
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "cardforge-api",
	})
}

// readyHandler checks if all dependencies are ready
func readyHandler(client redis.UniversalClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allHealthy := true

		// Check Redis if available
		if client != nil {
			if err := client.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["redis"] = "healthy"
			}
		} else {
			checks["redis"] = "not configured"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
