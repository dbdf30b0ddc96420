package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestasaas/gesta-api/internal/domain"
)

func TestMemoryUserRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := &domain.User{Name: "Ana", Email: "Ana@Example.com", PasswordHash: "$$$rounds=1$x", Active: true}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	byEmail, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byEmail.Name = "mutated outside the store"
	again, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Name)

	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "$2a$04$new"))
	updated, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$04$new", updated.PasswordHash)
	assert.Equal(t, "Ana", updated.Name)
}

func TestMemoryUserRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "ana@example.com"}))

	assert.ErrorIs(t, repo.Create(ctx, &domain.User{Email: "ANA@example.com"}), domain.ErrEmailTaken)

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, "missing", "x"), domain.ErrUserNotFound)
}

func TestMemoryUserRepository_ListWithCredentials(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "zoe@example.com", PasswordHash: "$2a$04$x"}))
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "nohash@example.com"}))
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "ana@example.com", PasswordHash: "$$$rounds=1$x"}))

	users, err := repo.ListWithCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ana@example.com", users[0].Email)
	assert.Equal(t, "zoe@example.com", users[1].Email)
}
