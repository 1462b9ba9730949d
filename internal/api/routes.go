package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes builds the admin router. sh may be nil, which leaves the
// unsubscribe and suppression routes out. Everything under /api requires
// adminToken; health and unsubscribe links stay public.
func SetupRoutes(h *Handlers, sh *SuppressionHandlers, health *HealthChecker, origins []string, adminToken string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)

	if sh != nil {
		r.Get("/unsubscribe/{token}", sh.Unsubscribe)
		r.Post("/unsubscribe/{token}", sh.UnsubscribeOneClick)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAdminToken(adminToken))

		r.Post("/scheduler/trigger", h.TriggerScheduler)

		r.Post("/sequences/{name}/enroll", h.Enroll)
		r.Delete("/sequences/{name}/enroll", h.CancelEnrollment)

		r.Post("/emails/send", h.SendEmail)
		r.Get("/drip/stats", h.DripStats)

		if sh != nil {
			r.Post("/suppressions", sh.Suppress)
			r.Delete("/suppressions", sh.Unsuppress)
		}
	})

	return r
}
