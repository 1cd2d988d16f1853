package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/eventreg/internal/auth"
	"github.com/Shivanand-hulikatti/eventreg/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig carries everything NewRouter needs to build the API.
type RouterConfig struct {
	Users          *UserHandler
	Events         *EventHandler
	Auth           *auth.Middleware
	Logger         zerolog.Logger
	AllowedOrigins []string
	AuthPerMinute  int
	// Profiler mounts net/http/pprof under /debug.
	Profiler bool
}

// NewRouter builds the chi router with the global middleware stack and every
// API route.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(cfg.Logger))      // structured access log
	r.Use(metrics.Middleware)
	r.Use(chimiddleware.Recoverer) // panics become 500s seen by Logger and metrics
	r.Use(CORS(cfg.AllowedOrigins))

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", metrics.Handler())
	if cfg.Profiler {
		r.Mount("/debug", chimiddleware.Profiler())
	}

	authLimit := RateLimit(cfg.AuthPerMinute)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", cfg.Users.ListUsers)
		r.With(authLimit).Post("/register", cfg.Users.Register)
		r.With(authLimit).Post("/login", cfg.Users.Login)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.RequireAuth)
			r.Patch("/{id}", cfg.Users.UpdateUser)
			r.Delete("/{id}", cfg.Users.DeleteUser)
		})
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", cfg.Events.ListEvents)
		r.Get("/{id}", cfg.Events.GetEvent)
		r.Get("/{id}/registered-users", cfg.Events.ListRegisteredUsers)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.RequireAuth)
			r.Post("/create", cfg.Events.CreateEvent)
			r.Patch("/{id}", cfg.Events.UpdateEvent)
			r.Delete("/{id}", cfg.Events.DeleteEvent)
			r.Post("/{id}/register", cfg.Events.Register)
		})
	})

	return r
}
