package devserver

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// BasePath is where the directory routes are mounted
const BasePath = "/vfx-flow"

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(db *DB, sessions *Sessions, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	h := NewHandler(db, sessions, logger)

	r.Get("/health", h.Health)

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Get("/status", h.Status)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(sessions))

			r.Get("/projects", h.Projects)
			r.Get("/sequences", h.Sequences)
			r.Get("/shots", h.Shots)
			r.Get("/tasks", h.Tasks)
			r.Get("/versions/latest", h.LatestVersion)
			r.Post("/select", h.Select)
			r.Post("/publish", h.Publish)
		})
	})

	return r
}
