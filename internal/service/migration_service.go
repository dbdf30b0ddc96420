package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gestasaas/gesta-api/internal/auth"
	"github.com/gestasaas/gesta-api/internal/domain"
	"github.com/gestasaas/gesta-api/internal/events"
	"github.com/gestasaas/gesta-api/internal/repository"
)

var (
	// ErrAlreadyModern is returned when migrating a user whose hash is not legacy,
	// whether bcrypt or an unrecognised format.
	ErrAlreadyModern = errors.New("credential already uses the modern format")
	// ErrWrongSecret is returned when the supplied plaintext does not verify.
	ErrWrongSecret = errors.New("supplied secret does not match")
)

const hashPreviewLength = 30

// CredentialStatus describes one stored credential for operators.
type CredentialStatus struct {
	UserID          string
	Email           string
	HasLegacyFormat bool
	HashPreview     string
}

// MigrationResult reports a completed manual migration.
type MigrationResult struct {
	UserID     string
	Email      string
	FromFormat domain.HashFormat
	ToFormat   domain.HashFormat
	MigratedAt time.Time
}

// MigrationService exposes operator tooling around legacy credentials.
type MigrationService struct {
	*credentials
}

// MigrationDependencies encapsulates collaborators of the migration service.
type MigrationDependencies struct {
	Users      repository.UserRepository
	Hasher     *auth.Hasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewMigrationService builds the service.
func NewMigrationService(deps MigrationDependencies) *MigrationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationService{credentials: &credentials{
		users:      deps.Users,
		hasher:     deps.Hasher,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}}
}

// InspectAll lists every user with a stored credential. It has no side effects.
func (s *MigrationService) InspectAll(ctx context.Context) ([]CredentialStatus, error) {
	users, err := s.users.ListWithCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	out := make([]CredentialStatus, 0, len(users))
	for _, u := range users {
		out = append(out, credentialStatus(u))
	}
	return out, nil
}

// PendingMigrations lists only users still holding a legacy hash. They can
// only be migrated by logging in or by MigrateOne with a known plaintext.
func (s *MigrationService) PendingMigrations(ctx context.Context) ([]CredentialStatus, error) {
	all, err := s.InspectAll(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]CredentialStatus, 0)
	for _, st := range all {
		if st.HasLegacyFormat {
			pending = append(pending, st)
		}
	}
	return pending, nil
}

// MigrateOne verifies a known plaintext against a legacy hash and rewrites it
// as bcrypt. No session token is issued.
func (s *MigrationService) MigrateOne(ctx context.Context, email, secret string) (*MigrationResult, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	switch domain.ClassifyHash(user.PasswordHash) {
	case domain.HashFormatNone:
		return nil, ErrNoCredential
	case domain.HashFormatLegacy:
	default:
		return nil, ErrAlreadyModern
	}

	if _, err := s.verify(ctx, user, secret); err != nil {
		if errors.Is(err, ErrBadSecret) {
			return nil, ErrWrongSecret
		}
		return nil, err
	}

	if err := s.migrate(ctx, user, secret, events.SourceAdmin); err != nil {
		return nil, err
	}

	return &MigrationResult{
		UserID:     user.ID,
		Email:      user.Email,
		FromFormat: domain.HashFormatLegacy,
		ToFormat:   domain.ClassifyHash(user.PasswordHash),
		MigratedAt: time.Now().UTC(),
	}, nil
}

func credentialStatus(u domain.User) CredentialStatus {
	preview := u.PasswordHash
	if len(preview) > hashPreviewLength {
		preview = preview[:hashPreviewLength] + "..."
	}
	return CredentialStatus{
		UserID:          u.ID,
		Email:           u.Email,
		HasLegacyFormat: auth.IsLegacy(u.PasswordHash),
		HashPreview:     preview,
	}
}
