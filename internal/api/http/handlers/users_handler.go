package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gestasaas/gesta-api/internal/api/dto"
	"github.com/gestasaas/gesta-api/internal/auth"
	"github.com/gestasaas/gesta-api/internal/domain"
	"github.com/gestasaas/gesta-api/internal/service"
	apperrors "github.com/gestasaas/gesta-api/pkg/util/errorutil"
)

// persistRetryAfter is the Retry-After hint sent when a credential rewrite failed.
const persistRetryAfter = "1"

// UsersHandler exposes auth endpoints for end-users.
type UsersHandler struct {
	auth    *service.AuthService
	lockout time.Duration
}

// NewUsersHandler constructs handler. lockout is advertised in Retry-After
// when the login throttle rejects a request.
func NewUsersHandler(authService *service.AuthService, lockout time.Duration) *UsersHandler {
	return &UsersHandler{auth: authService, lockout: lockout}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	user, token, exp, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return apperrors.NewConflict("email already registered", nil)
		}
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": session(user, token, exp)})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.loginError(c, err)
	}
	return c.JSON(fiber.Map{"data": session(user, token, exp)})
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	user, err := h.auth.CurrentUser(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) ||
			errors.Is(err, auth.ErrTokenMalformed) ||
			errors.Is(err, auth.ErrTokenMissingSubject) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Logout handles POST /auth/logout. Tokens are stateless, so the client
// simply discards its copy.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := h.auth.Logout(c.UserContext(), principal.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "logged out"}})
}

// loginError collapses every credential rejection into one response.
func (h *UsersHandler) loginError(c *fiber.Ctx, err error) error {
	switch {
	case service.IsRejection(err):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, service.ErrTooManyAttempts):
		if h.lockout > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(h.lockout.Seconds())))
		}
		return apperrors.NewTooManyRequests("too many failed login attempts")
	case service.IsRetryable(err):
		c.Set(fiber.HeaderRetryAfter, persistRetryAfter)
		return apperrors.NewServiceUnavailable("login temporarily unavailable, please retry", err)
	default:
		return err
	}
}

func session(user *domain.User, token string, exp time.Time) dto.SessionResponse {
	return dto.SessionResponse{
		User: userResponse(user),
		Auth: dto.AuthResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp},
	}
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Active:    user.Active,
		Verified:  user.Verified,
		CreatedAt: user.CreatedAt,
	}
}
