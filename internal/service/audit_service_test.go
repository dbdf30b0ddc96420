package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gestasaas/gesta-api/internal/domain"
	"github.com/gestasaas/gesta-api/internal/events"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordAuthEvent(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[event]++
}

func TestAuditService_LogsAndCountsEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &countingRecorder{}
	NewAuditService(dispatcher, zap.New(core), recorder).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:    events.EventCredentialMigrated,
		UserID:  "u1",
		Payload: events.CredentialMigratedPayload{Source: events.SourceLogin, FromFormat: domain.HashFormatLegacy},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:    events.EventLoginFailed,
		Email:   "x@example.com",
		Payload: events.LoginFailedPayload{Reason: "secret does not match"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventLoginThrottled}))

	migrated := logs.FilterMessage("CredentialMigrated").All()
	require.Len(t, migrated, 1)
	assert.Equal(t, "login", migrated[0].ContextMap()["source"])
	assert.Equal(t, "u1", migrated[0].ContextMap()["user_id"])

	failed := logs.FilterMessage("LoginFailed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "secret does not match", failed[0].ContextMap()["reason"])

	assert.Equal(t, 1, recorder.counts["credential_migrated"])
	assert.Equal(t, 1, recorder.counts["login_failed"])
	assert.Equal(t, 1, recorder.counts["login_throttled"])
}

func TestAuditService_EndToEndWithAuthService(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "leg@example.com", legacyHash(t, testSecret))

	// route the service through a dispatcher that only has the audit subscriber
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &countingRecorder{}
	NewAuditService(dispatcher, zap.NewNop(), recorder).RegisterHandlers()
	f.svc.dispatcher = dispatcher

	_, err := f.svc.Authenticate(context.Background(), "leg@example.com", testSecret)
	require.NoError(t, err)
	assert.Equal(t, 1, recorder.counts["credential_migrated"])
	assert.Equal(t, 1, recorder.counts["login_succeeded"])
}

func TestAuditService_NilDispatcher(t *testing.T) {
	NewAuditService(nil, zap.NewNop(), nil).RegisterHandlers()
}
