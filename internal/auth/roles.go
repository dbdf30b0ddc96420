package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// AdminTokenHeader carries the shared secret for operator endpoints.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken guards operator routes with a static shared secret.
// An empty expected token lets every request through.
func RequireAdminToken(expected string) fiber.Handler {
	want := []byte(expected)
	return func(c *fiber.Ctx) error {
		if len(want) == 0 {
			return c.Next()
		}
		got := []byte(c.Get(AdminTokenHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			return fiber.NewError(http.StatusForbidden, "admin token required")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal was loaded by AuthMiddleware.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
