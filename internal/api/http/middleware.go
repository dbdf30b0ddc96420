package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gestasaas/gesta-api/internal/auth"
	"github.com/gestasaas/gesta-api/internal/observability"
	apperrors "github.com/gestasaas/gesta-api/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares. The request logger is
// outermost so it records the status written by the error middleware.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware renders every returned error, and any panic, as
// {"error": {"code", "message", "details"}}.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			de := toDomainError(err)
			metrics.RecordError(c.Route().Path, c.Method(), de.Code)
			if de.HTTPStatus >= http.StatusInternalServerError {
				logger.Error("request failed", zap.String("path", c.Path()), zap.String("code", de.Code), zap.Error(de))
			}
			if de.HTTPStatus == http.StatusUnauthorized {
				c.Set(fiber.HeaderWWWAuthenticate, auth.BearerChallenge)
			}
			err = c.Status(de.HTTPStatus).JSON(fiber.Map{"error": errorBody(de)})
		}()
		return c.Next()
	}
}

func errorBody(de *apperrors.DomainError) fiber.Map {
	body := fiber.Map{"code": de.Code, "message": de.Message}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	return body
}

// toDomainError keeps the status of fiber's own errors (404, 405, 403 from
// guards) instead of turning them into 500s.
func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return apperrors.ToDomainError(err)
	}
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(fe.Code), " ", "_"))
	if code == "" {
		code = "HTTP_ERROR"
	}
	return apperrors.NewDomainError(code, fe.Message, fe.Code, nil)
}
