package auth

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Hasher bounds the number of concurrent CPU-bound hash computations so a
// burst of logins cannot starve unrelated requests.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher builds a hasher. concurrency <= 0 means one slot per CPU.
func NewHasher(cost, concurrency int) *Hasher {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(concurrency))}
}

// Cost returns the bcrypt cost used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash produces a modern hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	return HashPassword(password, h.cost)
}

// VerifyModern checks password against a bcrypt hash.
func (h *Hasher) VerifyModern(ctx context.Context, password, stored string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	return VerifyModern(password, stored), nil
}

// VerifyLegacy checks password against a parsed legacy hash.
func (h *Hasher) VerifyLegacy(ctx context.Context, password string, stored LegacyHash) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	_, ok := stored.Verify(password)
	return ok, nil
}
