package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/gestasaas/gesta-api/internal/auth"
	"github.com/gestasaas/gesta-api/internal/domain"
	"github.com/gestasaas/gesta-api/internal/events"
	"github.com/gestasaas/gesta-api/internal/repository"
)

const (
	testRounds = 1000
	testSecret = "correct horse battery staple"
)

type fixture struct {
	users     *repository.MemoryUserRepository
	store     repository.UserRepository
	hasher    *auth.Hasher
	tokens    *auth.TokenManager
	events    *eventLog
	logs      *observer.ObservedLogs
	logger    *zap.Logger
	throttle  auth.LoginThrottle
	svc       *AuthService
	migration *MigrationService
}

type fixtureOption func(*fixture)

func withStore(wrap func(repository.UserRepository) repository.UserRepository) fixtureOption {
	return func(f *fixture) { f.store = wrap(f.store) }
}

func withThrottle(t auth.LoginThrottle) fixtureOption {
	return func(f *fixture) { f.throttle = t }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: []byte("test-secret"), TTL: time.Minute})
	require.NoError(t, err)

	f := &fixture{
		users:  repository.NewMemoryUserRepository(),
		hasher: auth.NewHasher(bcrypt.MinCost, 4),
		tokens: tokens,
		events: &eventLog{},
		logs:   logs,
		logger: zap.New(core),
	}
	f.store = f.users
	for _, opt := range opts {
		opt(f)
	}

	dispatcher := events.NewInMemoryDispatcher()
	f.events.subscribe(dispatcher)

	f.svc, err = NewAuthService(AuthDependencies{
		Users:      f.store,
		Hasher:     f.hasher,
		Tokens:     f.tokens,
		Throttle:   f.throttle,
		Dispatcher: dispatcher,
		Logger:     f.logger,
	})
	require.NoError(t, err)

	f.migration = NewMigrationService(MigrationDependencies{
		Users:      f.store,
		Hasher:     f.hasher,
		Dispatcher: dispatcher,
		Logger:     f.logger,
	})
	return f
}

// seed stores a user with the given raw hash and returns its ID.
func (f *fixture) seed(t *testing.T, email, hash string) string {
	t.Helper()
	u := &domain.User{Name: "seed", Email: email, PasswordHash: hash, Active: true}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u.ID
}

func (f *fixture) storedHash(t *testing.T, email string) string {
	t.Helper()
	u, err := f.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u.PasswordHash
}

func legacyHash(t *testing.T, secret string) string {
	t.Helper()
	stored, err := auth.LegacyCandidates()[1].Encode(secret, strings.Repeat("s", 16), testRounds, 32)
	require.NoError(t, err)
	return stored
}

func modernHash(t *testing.T, secret string) string {
	t.Helper()
	stored, err := auth.HashPassword(secret, bcrypt.MinCost)
	require.NoError(t, err)
	return stored
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) subscribe(d events.Dispatcher) {
	for _, et := range []events.EventType{
		events.EventLoginSucceeded,
		events.EventLoginFailed,
		events.EventLoginThrottled,
		events.EventCredentialMigrated,
		events.EventCredentialMigrationFailed,
		events.EventUserRegistered,
	} {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, e)
			return nil
		})
	}
}

func (l *eventLog) count(et events.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == et {
			n++
		}
	}
	return n
}

// failingWrites lets reads through and fails every hash update.
type failingWrites struct {
	repository.UserRepository
	err error
}

func (f failingWrites) UpdatePasswordHash(context.Context, string, string) error {
	return f.err
}

type fakeThrottle struct {
	mu       sync.Mutex
	failures map[string]int
	max      int
	err      error
}

func newFakeThrottle(limit int) *fakeThrottle {
	return &fakeThrottle{failures: map[string]int{}, max: limit}
}

func (f *fakeThrottle) Blocked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.failures[id] >= f.max, nil
}

func (f *fakeThrottle) RecordFailure(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.failures[id]++
	return nil
}

func (f *fakeThrottle) Reset(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, id)
	return f.err
}
