package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrUserNotFound is returned by user stores for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

// User is the account record owned by the user store.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Active       bool
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasCredential reports whether a password hash is stored for the user.
func (u *User) HasCredential() bool {
	return u != nil && u.PasswordHash != ""
}

// NormalizeEmail lower-cases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
