package events

import (
	"time"

	"github.com/gestasaas/gesta-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded            EventType = "login_succeeded"
	EventLoginFailed               EventType = "login_failed"
	EventLoginThrottled            EventType = "login_throttled"
	EventCredentialMigrated        EventType = "credential_migrated"
	EventCredentialMigrationFailed EventType = "credential_migration_failed"
	EventUserRegistered            EventType = "user_registered"
)

// Source tells which entry point produced a credential event.
type Source string

const (
	SourceLogin Source = "login"
	SourceAdmin Source = "admin"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload payload. Reason is for operators only and never sent
// to clients.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// CredentialMigratedPayload payload.
type CredentialMigratedPayload struct {
	Source     Source            `json:"source"`
	FromFormat domain.HashFormat `json:"from_format"`
}

// CredentialMigrationFailedPayload payload.
type CredentialMigrationFailedPayload struct {
	Source Source `json:"source"`
	Error  string `json:"error"`
}
