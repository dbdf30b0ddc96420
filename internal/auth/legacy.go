package auth

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/gestasaas/gesta-api/internal/domain"
)

const (
	maxLegacyRounds    = 10_000_000
	minLegacyDigestLen = 16
)

// ErrMalformedLegacyHash is returned when a $$$rounds= string cannot be parsed.
var ErrMalformedLegacyHash = fmt.Errorf("%w: legacy format", ErrMalformedHash)

// DigestEncoding is the text encoding of a legacy digest.
type DigestEncoding string

const (
	EncodingHex    DigestEncoding = "hex"
	EncodingBase64 DigestEncoding = "base64"
)

// LegacyAlgorithm is the PBKDF2 pseudo-random function of a legacy hash.
type LegacyAlgorithm string

const (
	AlgorithmSHA256 LegacyAlgorithm = "pbkdf2-sha256"
	AlgorithmSHA512 LegacyAlgorithm = "pbkdf2-sha512"
)

// LegacyCandidate is one way of splitting and checking a legacy blob.
type LegacyCandidate struct {
	SaltLength int
	Encoding   DigestEncoding
	Algorithm  LegacyAlgorithm
}

// The legacy format does not record where the salt ends, so every stored
// blob is tried against each interpretation below, in order.
var legacyCandidates = []LegacyCandidate{
	{SaltLength: 16, Encoding: EncodingHex, Algorithm: AlgorithmSHA256},
	{SaltLength: 16, Encoding: EncodingBase64, Algorithm: AlgorithmSHA256},
	{SaltLength: 32, Encoding: EncodingHex, Algorithm: AlgorithmSHA256},
	{SaltLength: 32, Encoding: EncodingBase64, Algorithm: AlgorithmSHA256},
	{SaltLength: 16, Encoding: EncodingHex, Algorithm: AlgorithmSHA512},
	{SaltLength: 16, Encoding: EncodingBase64, Algorithm: AlgorithmSHA512},
	{SaltLength: 32, Encoding: EncodingHex, Algorithm: AlgorithmSHA512},
	{SaltLength: 32, Encoding: EncodingBase64, Algorithm: AlgorithmSHA512},
}

// LegacyCandidates returns a copy of the ordered candidate list.
func LegacyCandidates() []LegacyCandidate {
	out := make([]LegacyCandidate, len(legacyCandidates))
	copy(out, legacyCandidates)
	return out
}

// LegacyHash is a parsed $$$rounds=<N>$<blob> string.
type LegacyHash struct {
	Rounds int
	Blob   string
}

// IsLegacy reports whether stored carries the legacy prefix.
func IsLegacy(stored string) bool {
	return strings.HasPrefix(stored, domain.LegacyHashPrefix)
}

// ParseLegacy splits a legacy hash into its round count and opaque blob.
func ParseLegacy(stored string) (LegacyHash, error) {
	rest, ok := strings.CutPrefix(stored, domain.LegacyHashPrefix)
	if !ok {
		return LegacyHash{}, ErrMalformedLegacyHash
	}
	roundsStr, blob, ok := strings.Cut(rest, "$")
	if !ok || blob == "" {
		return LegacyHash{}, ErrMalformedLegacyHash
	}
	for _, r := range roundsStr {
		if r < '0' || r > '9' {
			return LegacyHash{}, ErrMalformedLegacyHash
		}
	}
	rounds, err := strconv.Atoi(roundsStr)
	if err != nil || rounds <= 0 || rounds > maxLegacyRounds {
		return LegacyHash{}, ErrMalformedLegacyHash
	}
	return LegacyHash{Rounds: rounds, Blob: blob}, nil
}

// Verify tries every candidate and reports the first one that matches.
func (h LegacyHash) Verify(password string) (LegacyCandidate, bool) {
	for _, c := range legacyCandidates {
		if c.matches(password, h) {
			return c, true
		}
	}
	return LegacyCandidate{}, false
}

// VerifyLegacy reports whether password matches a legacy stored hash.
// Malformed strings never match.
func VerifyLegacy(password, stored string) bool {
	parsed, err := ParseLegacy(stored)
	if err != nil {
		return false
	}
	_, ok := parsed.Verify(password)
	return ok
}

// Encode produces a legacy hash string readable by this candidate. The salt
// must be exactly SaltLength bytes.
func (c LegacyCandidate) Encode(password, salt string, rounds, keyLen int) (string, error) {
	if len(salt) != c.SaltLength {
		return "", fmt.Errorf("salt must be %d bytes, got %d", c.SaltLength, len(salt))
	}
	if rounds <= 0 || keyLen < minLegacyDigestLen {
		return "", errors.New("invalid legacy parameters")
	}
	prf, err := c.prf()
	if err != nil {
		return "", err
	}
	digest := pbkdf2.Key([]byte(password), []byte(salt), rounds, keyLen, prf)

	var encoded string
	switch c.Encoding {
	case EncodingHex:
		encoded = hex.EncodeToString(digest)
	case EncodingBase64:
		encoded = base64.StdEncoding.EncodeToString(digest)
	default:
		return "", fmt.Errorf("unknown digest encoding %q", c.Encoding)
	}
	return fmt.Sprintf("%s%d$%s%s", domain.LegacyHashPrefix, rounds, salt, encoded), nil
}

func (c LegacyCandidate) matches(password string, h LegacyHash) bool {
	if len(h.Blob) <= c.SaltLength {
		return false
	}
	salt := h.Blob[:c.SaltLength]
	digest, err := c.decode(h.Blob[c.SaltLength:])
	if err != nil || len(digest) < minLegacyDigestLen {
		return false
	}
	prf, err := c.prf()
	if err != nil {
		return false
	}
	computed := pbkdf2.Key([]byte(password), []byte(salt), h.Rounds, len(digest), prf)
	return subtle.ConstantTimeCompare(computed, digest) == 1
}

func (c LegacyCandidate) decode(s string) ([]byte, error) {
	switch c.Encoding {
	case EncodingHex:
		return hex.DecodeString(s)
	case EncodingBase64:
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	default:
		return nil, fmt.Errorf("unknown digest encoding %q", c.Encoding)
	}
}

func (c LegacyCandidate) prf() (func() hash.Hash, error) {
	switch c.Algorithm {
	case AlgorithmSHA256:
		return sha256.New, nil
	case AlgorithmSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unknown legacy algorithm %q", c.Algorithm)
	}
}
