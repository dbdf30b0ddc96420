package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gestasaas/gesta-api/internal/auth"
	"github.com/gestasaas/gesta-api/internal/domain"
	"github.com/gestasaas/gesta-api/internal/events"
	"github.com/gestasaas/gesta-api/internal/repository"
)

var (
	// ErrNoCredential means the user exists but has no stored hash.
	ErrNoCredential = errors.New("no credential stored")
	// ErrBadSecret means the secret did not match the stored hash.
	ErrBadSecret = errors.New("secret does not match")
	// ErrMalformedStoredHash means the stored hash is in no recognised format.
	ErrMalformedStoredHash = errors.New("stored hash is malformed")
	// ErrPersistFailure means a verified legacy credential could not be
	// rewritten. The legacy hash stays valid and the caller may retry.
	ErrPersistFailure = errors.New("persist migrated credential")
)

// IsRetryable reports whether err is a transient store failure rather than a
// credential rejection.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistFailure)
}

// IsRejection reports whether err is one of the outcomes that must be shown to
// clients as a generic "invalid credentials".
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrUserNotFound) ||
		errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrBadSecret) ||
		errors.Is(err, ErrMalformedStoredHash)
}

// credentials holds the verify and rehash primitives shared by login and the
// migration admin operations.
type credentials struct {
	users      repository.UserRepository
	hasher     *auth.Hasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// verify checks secret against the user's stored hash and returns the format
// that was checked.
func (c *credentials) verify(ctx context.Context, user *domain.User, secret string) (domain.HashFormat, error) {
	format := domain.ClassifyHash(user.PasswordHash)
	switch format {
	case domain.HashFormatNone:
		return format, ErrNoCredential
	case domain.HashFormatLegacy:
		parsed, err := auth.ParseLegacy(user.PasswordHash)
		if err != nil {
			c.malformed(user, format, err)
			return format, ErrMalformedStoredHash
		}
		ok, err := c.hasher.VerifyLegacy(ctx, secret, parsed)
		if err != nil {
			return format, err
		}
		if !ok {
			return format, ErrBadSecret
		}
		return format, nil
	case domain.HashFormatModern:
		if !auth.IsModern(user.PasswordHash) {
			c.malformed(user, format, auth.ErrMalformedHash)
			return format, ErrMalformedStoredHash
		}
		ok, err := c.hasher.VerifyModern(ctx, secret, user.PasswordHash)
		if err != nil {
			return format, err
		}
		if !ok {
			return format, ErrBadSecret
		}
		return format, nil
	default:
		c.malformed(user, format, auth.ErrMalformedHash)
		return format, ErrMalformedStoredHash
	}
}

// migrate rehashes a verified secret and rewrites only the hash column. On
// success user.PasswordHash holds the new hash.
func (c *credentials) migrate(ctx context.Context, user *domain.User, secret string, source events.Source) error {
	hash, err := c.hasher.Hash(ctx, secret)
	if err != nil {
		return fmt.Errorf("rehash credential: %w", err)
	}

	if err := c.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		c.logger.Error("failed to persist migrated password hash",
			zap.String("user_id", user.ID),
			zap.String("source", string(source)),
			zap.Error(err))
		c.publish(ctx, events.EventCredentialMigrationFailed, user, events.CredentialMigrationFailedPayload{
			Source: source,
			Error:  err.Error(),
		})
		return fmt.Errorf("%w: %w", ErrPersistFailure, err)
	}

	user.PasswordHash = hash
	c.logger.Info("migrated legacy password hash",
		zap.String("user_id", user.ID),
		zap.String("source", string(source)))
	c.publish(ctx, events.EventCredentialMigrated, user, events.CredentialMigratedPayload{
		Source:     source,
		FromFormat: domain.HashFormatLegacy,
	})
	return nil
}

func (c *credentials) malformed(user *domain.User, format domain.HashFormat, err error) {
	c.logger.Warn("stored password hash is malformed",
		zap.String("user_id", user.ID),
		zap.String("format", string(format)),
		zap.Error(err))
}

func (c *credentials) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload any) {
	if c.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
