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

// ErrTooManyAttempts is returned while an email is locked out by the login throttle.
var ErrTooManyAttempts = errors.New("too many failed login attempts")

// dummySecret is hashed once at startup so unknown emails still pay for a
// bcrypt comparison.
const dummySecret = "gesta-api/timing-equaliser"

// AuthService authenticates users and migrates legacy credentials on login.
type AuthService struct {
	*credentials
	tokens    *auth.TokenManager
	throttle  auth.LoginThrottle
	dummyHash string
}

// AuthDependencies encapsulates collaborators of the auth service.
// Throttle and Dispatcher are optional.
type AuthDependencies struct {
	Users      repository.UserRepository
	Hasher     *auth.Hasher
	Tokens     *auth.TokenManager
	Throttle   auth.LoginThrottle
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) (*AuthService, error) {
	if deps.Users == nil || deps.Hasher == nil || deps.Tokens == nil {
		return nil, errors.New("auth service: users, hasher and tokens are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dummy, err := auth.HashPassword(dummySecret, deps.Hasher.Cost())
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}

	return &AuthService{
		credentials: &credentials{
			users:      deps.Users,
			hasher:     deps.Hasher,
			dispatcher: deps.Dispatcher,
			logger:     logger,
		},
		tokens:    deps.Tokens,
		throttle:  deps.Throttle,
		dummyHash: dummy,
	}, nil
}

// Authenticate checks an email and secret. A verified legacy hash is replaced
// with a bcrypt hash before Authenticate returns.
func (s *AuthService) Authenticate(ctx context.Context, email, secret string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)

	if s.blocked(ctx, email) {
		s.publish(ctx, events.EventLoginThrottled, &domain.User{Email: email}, nil)
		return nil, ErrTooManyAttempts
	}

	user, err := s.authenticate(ctx, email, secret)
	switch {
	case err == nil:
		s.resetFailures(ctx, email)
		s.publish(ctx, events.EventLoginSucceeded, user, nil)
	case IsRejection(err):
		s.recordFailure(ctx, email)
		subject := user
		if subject == nil {
			subject = &domain.User{Email: email}
		}
		s.publish(ctx, events.EventLoginFailed, subject, events.LoginFailedPayload{Reason: err.Error()})
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) authenticate(ctx context.Context, email, secret string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.equaliseTiming(ctx, secret)
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.HasCredential() {
		s.equaliseTiming(ctx, secret)
		return user, ErrNoCredential
	}

	format, err := s.verify(ctx, user, secret)
	if err != nil {
		return user, err
	}

	if format == domain.HashFormatLegacy {
		if err := s.migrate(ctx, user, secret, events.SourceLogin); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Login authenticates and issues a session token whose subject is the user ID.
func (s *AuthService) Login(ctx context.Context, email, secret string) (*domain.User, string, time.Time, error) {
	user, err := s.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.tokens.Issue(user.ID, s.tokens.TTL())
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Register creates a user with a bcrypt credential and logs them in.
func (s *AuthService) Register(ctx context.Context, name, email, secret string) (*domain.User, string, time.Time, error) {
	hash, err := s.hasher.Hash(ctx, secret)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		Name:         name,
		Email:        domain.NormalizeEmail(email),
		PasswordHash: hash,
		Active:       true,
		Verified:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}
	s.publish(ctx, events.EventUserRegistered, user, nil)

	token, exp, err := s.tokens.Issue(user.ID, s.tokens.TTL())
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// CurrentUser resolves the user a session token was issued for.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, subject)
}

// Logout is a no-op: tokens are stateless and expire on their own.
func (s *AuthService) Logout(_ context.Context, _ string) error {
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) equaliseTiming(ctx context.Context, secret string) {
	_, _ = s.hasher.VerifyModern(ctx, secret, s.dummyHash)
}

// The throttle fails open: a Redis outage must not lock everybody out.

func (s *AuthService) blocked(ctx context.Context, email string) bool {
	if s.throttle == nil {
		return false
	}
	blocked, err := s.throttle.Blocked(ctx, email)
	if err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
		return false
	}
	return blocked
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, email); err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
	}
}

func (s *AuthService) resetFailures(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email); err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
	}
}
