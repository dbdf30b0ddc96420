package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestasaas/gesta-api/internal/auth"
	"github.com/gestasaas/gesta-api/internal/domain"
	"github.com/gestasaas/gesta-api/internal/events"
	"github.com/gestasaas/gesta-api/internal/repository"
)

func TestInspectAll(t *testing.T) {
	f := newFixture(t)
	legacy := legacyHash(t, testSecret)
	modern := modernHash(t, testSecret)
	f.seed(t, "b@example.com", legacy)
	f.seed(t, "a@example.com", modern)
	f.seed(t, "c@example.com", "")

	statuses, err := f.migration.InspectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "a@example.com", statuses[0].Email)
	assert.False(t, statuses[0].HasLegacyFormat)
	assert.Equal(t, modern[:30]+"...", statuses[0].HashPreview)

	assert.Equal(t, "b@example.com", statuses[1].Email)
	assert.True(t, statuses[1].HasLegacyFormat)
	assert.True(t, strings.HasPrefix(statuses[1].HashPreview, domain.LegacyHashPrefix))

	again, err := f.migration.InspectAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, statuses, again)
	assert.Equal(t, legacy, f.storedHash(t, "b@example.com"))
}

func TestCredentialStatus_ShortHashNotTruncated(t *testing.T) {
	st := credentialStatus(domain.User{ID: "1", Email: "x@example.com", PasswordHash: "short"})
	assert.Equal(t, "short", st.HashPreview)
}

func TestPendingMigrations(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "leg@example.com", legacyHash(t, testSecret))
	f.seed(t, "new@example.com", modernHash(t, testSecret))

	pending, err := f.migration.PendingMigrations(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "leg@example.com", pending[0].Email)
}

func TestMigrateOne_TwiceReportsAlreadyModern(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "leg@example.com", legacyHash(t, testSecret))
	ctx := context.Background()

	res, err := f.migration.MigrateOne(ctx, "leg@example.com", testSecret)
	require.NoError(t, err)
	assert.Equal(t, id, res.UserID)
	assert.Equal(t, domain.HashFormatLegacy, res.FromFormat)
	assert.Equal(t, domain.HashFormatModern, res.ToFormat)
	assert.True(t, auth.VerifyModern(testSecret, f.storedHash(t, "leg@example.com")))
	assert.Equal(t, 1, f.events.count(events.EventCredentialMigrated))

	_, err = f.migration.MigrateOne(ctx, "leg@example.com", testSecret)
	assert.ErrorIs(t, err, ErrAlreadyModern)
	assert.Equal(t, 1, f.events.count(events.EventCredentialMigrated))
}

func TestMigrateOne_Errors(t *testing.T) {
	f := newFixture(t)
	original := legacyHash(t, testSecret)
	f.seed(t, "leg@example.com", original)
	f.seed(t, "nohash@example.com", "")
	f.seed(t, "garbage@example.com", "md5:abc")
	f.seed(t, "badlegacy@example.com", domain.LegacyHashPrefix+"abc$blob")

	tests := []struct {
		name   string
		email  string
		secret string
		want   error
	}{
		{"unknown user", "ghost@example.com", testSecret, domain.ErrUserNotFound},
		{"no credential", "nohash@example.com", testSecret, ErrNoCredential},
		{"wrong secret", "leg@example.com", "nope", ErrWrongSecret},
		{"unrecognised format", "garbage@example.com", testSecret, ErrAlreadyModern},
		{"unparseable legacy", "badlegacy@example.com", testSecret, ErrMalformedStoredHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.migration.MigrateOne(context.Background(), tt.email, tt.secret)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, original, f.storedHash(t, "leg@example.com"))
	assert.Equal(t, "md5:abc", f.storedHash(t, "garbage@example.com"))
}

func TestMigrateOne_PersistFailure(t *testing.T) {
	storeErr := errors.New("deadlock detected")
	f := newFixture(t, withStore(func(r repository.UserRepository) repository.UserRepository {
		return failingWrites{UserRepository: r, err: storeErr}
	}))
	f.seed(t, "leg@example.com", legacyHash(t, testSecret))

	_, err := f.migration.MigrateOne(context.Background(), "leg@example.com", testSecret)
	assert.ErrorIs(t, err, ErrPersistFailure)
	assert.True(t, IsRetryable(err))
	assert.True(t, auth.IsLegacy(f.storedHash(t, "leg@example.com")))
}
