package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestasaas/gesta-api/internal/domain"
	apperrors "github.com/gestasaas/gesta-api/pkg/util/errorutil"
)

type lookupFunc func(ctx context.Context, id string) (*domain.User, error)

func (f lookupFunc) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return f(ctx, id)
}

func newMiddlewareApp(t *testing.T, users UserLookup) (*fiber.App, *TokenManager) {
	t.Helper()
	tm := newTestTokenManager(t, "middleware-secret")
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	mw := NewAuthMiddleware(tm, users)
	app.Get("/me", mw.Handle, RequireAuthenticated(), func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		require.True(t, ok)
		return c.SendString(p.User.Email)
	})
	return app, tm
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	users := lookupFunc(func(_ context.Context, id string) (*domain.User, error) {
		return &domain.User{ID: id, Email: "ana@example.com"}, nil
	})
	app, tm := newMiddlewareApp(t, users)

	tok, _, err := tm.Issue("u-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	users := lookupFunc(func(_ context.Context, id string) (*domain.User, error) {
		if id == "gone" {
			return nil, domain.ErrUserNotFound
		}
		return &domain.User{ID: id}, nil
	})
	app, tm := newMiddlewareApp(t, users)

	expired, _, err := tm.Issue("u-1", 0)
	require.NoError(t, err)
	gone, _, err := tm.Issue("gone", time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"empty bearer":   "Bearer ",
		"garbage":        "Bearer not-a-token",
		"expired":        "Bearer " + expired,
		"unknown user":   "Bearer " + gone,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, BearerChallenge, resp.Header.Get(fiber.HeaderWWWAuthenticate))
		})
	}
}

func TestAuthMiddleware_StoreFailureIsInternal(t *testing.T) {
	users := lookupFunc(func(context.Context, string) (*domain.User, error) {
		return nil, errors.New("connection refused")
	})
	app, tm := newMiddlewareApp(t, users)
	tok, _, err := tm.Issue("u-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(fiber.HeaderWWWAuthenticate))
}

func TestRequireAdminToken(t *testing.T) {
	app := fiber.New()
	app.Get("/guarded", RequireAdminToken("op-secret"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	app.Get("/open", RequireAdminToken(""), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	cases := []struct {
		path   string
		token  string
		status int
	}{
		{"/guarded", "", http.StatusForbidden},
		{"/guarded", "wrong", http.StatusForbidden},
		{"/guarded", "op-secret", http.StatusNoContent},
		{"/open", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.token != "" {
			req.Header.Set(AdminTokenHeader, tc.token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, "%s with %q", tc.path, tc.token)
	}
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	_, err = BearerToken("Token abc")
	assert.Error(t, err)
}
