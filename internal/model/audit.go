package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SystemActor is recorded when a change happens outside an authenticated request.
const SystemActor = "system"

// Audit actions.
const (
	AuditUserRegistered = "user.registered"
	AuditUserLoggedIn   = "user.logged_in"
	AuditUserLoginFail  = "user.login_failed"
	AuditUserLoggedOut  = "user.logged_out"
	AuditRoleGranted    = "user.role_granted"
	AuditEntityUser     = "user"
)

// AuditStore persists audit entries.
type AuditStore interface {
	Create(ctx context.Context, entry AuditEntry) error
	ListBefore(ctx context.Context, before time.Time, limit int) ([]AuditEntry, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

// AuditEntry records who changed what and when.
type AuditEntry struct {
	ID         uuid.UUID       `json:"id"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
