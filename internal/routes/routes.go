package routes

import (
	"strings"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/handlers"
	"github.com/BradenHooton/warden/internal/middleware"
	"github.com/BradenHooton/warden/internal/session"
	"github.com/go-chi/chi/v5"
)

// Dependencies are the handlers and middleware the routes are built from
type Dependencies struct {
	Auth       *handlers.AuthHandler
	Admin      *handlers.AdminHandler
	Health     *handlers.HealthHandler
	Gate       *auth.Middleware
	Sessions   *session.Manager
	LoginLimit middleware.RateLimitConfig
	ErrorURL   string // where the gate sends silent-mode denials
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	// No session for probes
	router.Get("/health", deps.Health.Health)

	router.Group(func(r chi.Router) {
		r.Use(deps.Sessions.Middleware)

		// Public routes, rate limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(deps.LoginLimit))
			r.Post("/login", deps.Auth.Login)
			r.Post("/login/finalize", deps.Auth.Finalize)
		})

		if strings.HasPrefix(deps.ErrorURL, "/") {
			r.Get(deps.ErrorURL, handlers.Flash)
		}

		// Any authenticated account
		r.With(deps.Gate.RequireLogin).Get("/me", handlers.Me)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Gate.RequireRoles("admin"))
			r.Get("/admin", deps.Admin.Overview)
		})
	})
}
