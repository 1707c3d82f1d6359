package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/carebook-server/internal/model"
)

var _ model.AuditStore = (*AuditRepository)(nil)

// AuditRepository writes the audit log through database/sql.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry model.AuditEntry) error {
	const query = `
        INSERT INTO audit_log (id, actor, action, entity_type, entity_id, details, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	var details any
	if len(entry.Details) > 0 {
		details = []byte(entry.Details)
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, details, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListBefore(ctx context.Context, before time.Time, limit int) ([]model.AuditEntry, error) {
	const query = `
        SELECT id, actor, action, entity_type, entity_id, details, occurred_at
        FROM audit_log
        WHERE occurred_at < $1
        ORDER BY occurred_at, id
        LIMIT $2
    `

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			e       model.AuditEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &details, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}

	return entries, nil
}

// DeleteByIDs removes the given entries in a single transaction.
func (r *AuditRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM audit_log WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete audit entry %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit deletion: %w", err)
	}
	return nil
}
