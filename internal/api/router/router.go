package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/patient-portal/internal/http/middleware"
	"github.com/wolfman30/patient-portal/internal/portal"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Portal             *portal.Handler
	Sessions           httpmiddleware.SessionVerifier
	LoginLimiter       *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	Origins            *httpmiddleware.OriginPolicy
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Portal == nil {
		panic("router: portal handler required")
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Origins.Enabled() {
		r.Use(httpmiddleware.CORS(cfg.Origins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(correlateRequest)

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		login := public.With()
		if cfg.LoginLimiter != nil {
			login = public.With(httpmiddleware.RateLimit(cfg.LoginLimiter))
		}
		login.Post("/auth/login", cfg.Portal.Login)
	})

	// Patient routes (session JWT)
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.PatientSession(cfg.Sessions))
		api.Get("/notifications/ws", cfg.Portal.NotificationStream)

		api.Group(func(rest chi.Router) {
			rest.Use(middleware.Compress(5))
			rest.Get("/dashboard", cfg.Portal.Dashboard)
			rest.Get("/catalog", cfg.Portal.Catalog)
			rest.Get("/waiting-list", cfg.Portal.ListWaitingList)
			rest.Get("/notifications", cfg.Portal.Notifications)
			rest.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.Portal.ListAppointments)
				r.Post("/", cfg.Portal.ScheduleAppointment)
				r.Post("/{id}/cancellation", cfg.Portal.RequestCancellation)
				r.Delete("/{id}", cfg.Portal.CancelAppointment)
			})
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": status,
			"checks": results,
		})
	}
}
