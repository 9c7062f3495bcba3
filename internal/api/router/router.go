package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dentalops/clinic-platform/internal/http/handlers"
	httpmiddleware "github.com/dentalops/clinic-platform/internal/http/middleware"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ClosuresHandler    *handlers.ClosuresHandler
	QueueHandler       *handlers.QueueHandler
	SlotsHandler       *handlers.SlotsHandler
	HealthHandler      *handlers.HealthHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: probes and metrics.
	r.Group(func(public chi.Router) {
		if cfg.HealthHandler != nil {
			public.Get("/health", cfg.HealthHandler.Check)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Scheduling endpoints require staff identity.
	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

		if cfg.SlotsHandler != nil {
			admin.Route("/slots", func(r chi.Router) {
				r.Get("/", cfg.SlotsHandler.Find)
				r.Get("/{id}", cfg.SlotsHandler.Get)
			})
		}
		if cfg.ClosuresHandler != nil {
			admin.Route("/closures", func(r chi.Router) {
				r.Post("/", cfg.ClosuresHandler.Execute)
				r.Get("/", cfg.ClosuresHandler.List)
				r.Get("/patients/all", cfg.ClosuresHandler.AllPatients)
				r.Get("/{id}", cfg.ClosuresHandler.Get)
				r.Get("/{id}/patients", cfg.ClosuresHandler.Patients)
			})
		}
		if cfg.QueueHandler != nil {
			admin.Get("/queue/next-number", cfg.QueueHandler.NextNumber)
			admin.Route("/records/{id}", func(r chi.Router) {
				r.Post("/call", cfg.QueueHandler.Call)
				r.Post("/complete", cfg.QueueHandler.Complete)
			})
		}
	})

	return r
}
