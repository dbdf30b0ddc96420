package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/gestasaas/gesta-api/internal/events"
)

// AuthEventRecorder counts auth events, typically into Prometheus.
type AuthEventRecorder interface {
	RecordAuthEvent(event string)
}

// AuditService writes an audit trail for credential events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	recorder   AuthEventRecorder
}

// NewAuditService creates the service. recorder may be nil.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, recorder AuthEventRecorder) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		recorder:   recorder,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventLoginThrottled, a.handleLoginThrottled)
	a.dispatcher.Subscribe(events.EventCredentialMigrated, a.handleCredentialMigrated)
	a.dispatcher.Subscribe(events.EventCredentialMigrationFailed, a.handleCredentialMigrationFailed)
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleUserRegistered)
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	a.logger.Debug("LoginSucceeded", a.fields(event)...)
	a.count(event)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	fields := a.fields(event)
	if p, ok := event.Payload.(events.LoginFailedPayload); ok {
		fields = append(fields, zap.String("reason", p.Reason))
	}
	a.logger.Info("LoginFailed", fields...)
	a.count(event)
	return nil
}

func (a *AuditService) handleLoginThrottled(_ context.Context, event events.Event) error {
	a.logger.Warn("LoginThrottled", a.fields(event)...)
	a.count(event)
	return nil
}

func (a *AuditService) handleCredentialMigrated(_ context.Context, event events.Event) error {
	fields := a.fields(event)
	if p, ok := event.Payload.(events.CredentialMigratedPayload); ok {
		fields = append(fields, zap.String("source", string(p.Source)), zap.String("from_format", string(p.FromFormat)))
	}
	a.logger.Info("CredentialMigrated", fields...)
	a.count(event)
	return nil
}

func (a *AuditService) handleCredentialMigrationFailed(_ context.Context, event events.Event) error {
	fields := a.fields(event)
	if p, ok := event.Payload.(events.CredentialMigrationFailedPayload); ok {
		fields = append(fields, zap.String("source", string(p.Source)), zap.String("error", p.Error))
	}
	a.logger.Error("CredentialMigrationFailed", fields...)
	a.count(event)
	return nil
}

func (a *AuditService) handleUserRegistered(_ context.Context, event events.Event) error {
	a.logger.Info("UserRegistered", a.fields(event)...)
	a.count(event)
	return nil
}

func (a *AuditService) fields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("user_id", event.UserID),
		zap.String("email", event.Email),
		zap.Time("at", event.Timestamp),
	}
}

func (a *AuditService) count(event events.Event) {
	if a.recorder != nil {
		a.recorder.RecordAuthEvent(string(event.Type))
	}
}
