package domain

import (
	"strings"
	"time"
)

// LegacyHashPrefix marks password hashes written by the pre-bcrypt system.
const LegacyHashPrefix = "$$$rounds="

// HashFormat classifies a stored password hash. It is derived by inspection
// and never persisted.
type HashFormat string

const (
	HashFormatNone    HashFormat = "NONE"
	HashFormatLegacy  HashFormat = "LEGACY"
	HashFormatModern  HashFormat = "MODERN"
	HashFormatUnknown HashFormat = "UNKNOWN"
)

// ClassifyHash inspects the prefix of a stored hash.
func ClassifyHash(stored string) HashFormat {
	switch {
	case stored == "":
		return HashFormatNone
	case strings.HasPrefix(stored, LegacyHashPrefix):
		return HashFormatLegacy
	case strings.HasPrefix(stored, "$2a$"),
		strings.HasPrefix(stored, "$2b$"),
		strings.HasPrefix(stored, "$2y$"):
		return HashFormatModern
	default:
		return HashFormatUnknown
	}
}

// Token represents metadata of an issued session token.
type Token struct {
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
