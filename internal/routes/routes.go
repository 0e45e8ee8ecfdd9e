package routes

import (
	"net/http"

	"github.com/AnshRaj112/bookjournal-backend/internal/handlers"
	"github.com/AnshRaj112/bookjournal-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Middleware carries the request-scoped middleware built in main.
type Middleware struct {
	Identity    func(http.Handler) http.Handler // attaches the signed-in user
	Activity    func(http.Handler) http.Handler // optional page view log
	ReviewLimit func(http.Handler) http.Handler // optional limiter for review generation
}

func passthrough(next http.Handler) http.Handler { return next }

func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return passthrough
	}
	return mw
}

func SetupRoutes(r *chi.Mux, h *handlers.Handler, mw Middleware) {
	// Health checks (no identity)
	r.Get("/health", handlers.Health)
	r.Get("/health/alive", h.Alive)

	r.Group(func(r chi.Router) {
		r.Use(orPassthrough(mw.Identity))
		r.Use(orPassthrough(mw.Activity))

		// Sign-in
		r.Get("/login", h.Login)
		r.Get("/auth/callback", h.Callback)
		r.Get("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			// Pages
			r.Get("/", h.Index)
			r.Post("/add", h.Add)
			r.Get("/delete", h.Delete)

			// JSON API
			r.Get("/api/entries", h.ListEntries)
			r.Post("/api/entries", h.CreateEntry)
			r.Delete("/api/entries/{id}", h.DeleteEntry)

			// Review generation calls the completion service
			r.With(orPassthrough(mw.ReviewLimit)).Get("/review", h.Review)
			r.With(orPassthrough(mw.ReviewLimit)).Get("/api/review", h.ReviewAPI)
		})
	})
}
