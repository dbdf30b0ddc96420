package dto

import "time"

// CredentialStatusResponse describes one stored credential.
type CredentialStatusResponse struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	HasLegacyFormat bool   `json:"has_legacy_format"`
	HashPreview     string `json:"hash_preview"`
}

// MigrationStatusResponse summarises every stored credential.
type MigrationStatusResponse struct {
	Total  int                        `json:"total"`
	Legacy int                        `json:"legacy"`
	Modern int                        `json:"modern"`
	Users  []CredentialStatusResponse `json:"users"`
}

// MigrateCredentialRequest payload for a manual migration.
type MigrateCredentialRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MigrateCredentialResponse reports the outcome of a manual migration.
type MigrateCredentialResponse struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	UserID     string     `json:"user_id,omitempty"`
	Email      string     `json:"email"`
	FromFormat string     `json:"from_format,omitempty"`
	ToFormat   string     `json:"to_format,omitempty"`
	MigratedAt *time.Time `json:"migrated_at,omitempty"`
}

// PendingMigrationsResponse lists users still holding a legacy hash.
type PendingMigrationsResponse struct {
	Pending int                        `json:"pending"`
	Message string                     `json:"message"`
	Users   []CredentialStatusResponse `json:"users"`
}
