package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gestasaas/gesta-api/internal/api/dto"
	"github.com/gestasaas/gesta-api/internal/domain"
	"github.com/gestasaas/gesta-api/internal/service"
	apperrors "github.com/gestasaas/gesta-api/pkg/util/errorutil"
)

// MigrationHandler exposes operator endpoints for legacy credential migration.
type MigrationHandler struct {
	migrations *service.MigrationService
}

// NewMigrationHandler constructs handler.
func NewMigrationHandler(migrations *service.MigrationService) *MigrationHandler {
	return &MigrationHandler{migrations: migrations}
}

// Status handles GET /admin/password-migration/status.
func (h *MigrationHandler) Status(c *fiber.Ctx) error {
	statuses, err := h.migrations.InspectAll(c.UserContext())
	if err != nil {
		return err
	}
	resp := dto.MigrationStatusResponse{Total: len(statuses), Users: credentialStatuses(statuses)}
	for _, st := range statuses {
		if st.HasLegacyFormat {
			resp.Legacy++
		}
	}
	resp.Modern = resp.Total - resp.Legacy
	return c.JSON(fiber.Map{"data": resp})
}

// Migrate handles POST /admin/password-migration/migrate.
func (h *MigrationHandler) Migrate(c *fiber.Ctx) error {
	var req dto.MigrateCredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	res, err := h.migrations.MigrateOne(c.UserContext(), req.Email, req.Password)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"data": dto.MigrateCredentialResponse{
			Success:    true,
			Message:    "credential migrated",
			UserID:     res.UserID,
			Email:      res.Email,
			FromFormat: string(res.FromFormat),
			ToFormat:   string(res.ToFormat),
			MigratedAt: &res.MigratedAt,
		}})
	case errors.Is(err, service.ErrAlreadyModern):
		return c.JSON(fiber.Map{"data": dto.MigrateCredentialResponse{
			Success: false,
			Message: "credential already uses the modern format",
			Email:   domain.NormalizeEmail(req.Email),
		}})
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, service.ErrWrongSecret):
		return apperrors.NewValidationError("password does not match the stored credential", nil)
	case errors.Is(err, service.ErrNoCredential):
		return apperrors.NewValidationError("user has no stored credential", nil)
	case errors.Is(err, service.ErrMalformedStoredHash):
		return apperrors.NewDomainError("MALFORMED_CREDENTIAL", "stored credential is in an unknown format", http.StatusUnprocessableEntity, nil)
	case service.IsRetryable(err):
		c.Set(fiber.HeaderRetryAfter, persistRetryAfter)
		return apperrors.NewServiceUnavailable("credential store unavailable, please retry", err)
	default:
		return err
	}
}

// Pending handles POST /admin/password-migration/pending. Legacy users can
// only be migrated once their plaintext is known, so this lists them.
func (h *MigrationHandler) Pending(c *fiber.Ctx) error {
	pending, err := h.migrations.PendingMigrations(c.UserContext())
	if err != nil {
		return err
	}
	message := "no legacy credentials remain"
	if len(pending) > 0 {
		message = "these users migrate on their next login or via the migrate endpoint"
	}
	return c.JSON(fiber.Map{"data": dto.PendingMigrationsResponse{
		Pending: len(pending),
		Message: message,
		Users:   credentialStatuses(pending),
	}})
}

func credentialStatuses(in []service.CredentialStatus) []dto.CredentialStatusResponse {
	out := make([]dto.CredentialStatusResponse, 0, len(in))
	for _, st := range in {
		out = append(out, dto.CredentialStatusResponse{
			UserID:          st.UserID,
			Email:           st.Email,
			HasLegacyFormat: st.HasLegacyFormat,
			HashPreview:     st.HashPreview,
		})
	}
	return out
}
