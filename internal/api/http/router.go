package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/gestasaas/gesta-api/internal/api/http/handlers"
	"github.com/gestasaas/gesta-api/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Migration      *handlers.MigrationHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        nethttp.Handler
	// AdminToken guards the migration endpoints; MountAdmin false hides them.
	AdminToken string
	MountAdmin bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.Users.Me)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Users.Logout)

	if cfg.MountAdmin && cfg.Migration != nil {
		admin := app.Group("/admin/password-migration", auth.RequireAdminToken(cfg.AdminToken))
		admin.Get("/status", cfg.Migration.Status)
		admin.Post("/migrate", cfg.Migration.Migrate)
		admin.Post("/pending", cfg.Migration.Pending)
	}
}
