package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/gestasaas/gesta-api/internal/domain"
)

// DefaultBcryptCost is used when the configured cost is out of range.
const DefaultBcryptCost = 12

// MaxSecretBytes is the number of leading secret bytes bcrypt consumes.
// Longer secrets are truncated, never rejected.
const MaxSecretBytes = 72

// ErrMalformedHash is returned when a stored hash is in no recognised format.
var ErrMalformedHash = errors.New("malformed password hash")

// HashPassword hashes a plaintext password with configured cost. The cost is
// encoded into the result, so verification needs no external configuration.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyModern reports whether password matches a bcrypt hash. Malformed
// hashes never match.
func VerifyModern(password, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), bcryptInput(password)) == nil
}

// IsModern reports whether stored is a well-formed bcrypt hash.
func IsModern(stored string) bool {
	if domain.ClassifyHash(stored) != domain.HashFormatModern {
		return false
	}
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// bcryptInput cuts password to the bytes bcrypt actually hashes, so hashing
// and verifying agree for secrets of any length.
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > MaxSecretBytes {
		b = b[:MaxSecretBytes]
	}
	return b
}
