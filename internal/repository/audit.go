// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/willtank/willtank/internal/models"
)

// CreateAuditLog appends an audit entry.
func (r *Repository) CreateAuditLog(ctx context.Context, userID int64, action, details string, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, details, created_at) VALUES (?, ?, ?, ?)`,
		userID, action, details, at.UTC())
	return err
}

// ListAuditLogs returns the audit trail of a user, oldest first.
func (r *Repository) ListAuditLogs(ctx context.Context, userID int64) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.q.SelectContext(ctx, &list, `SELECT * FROM audit_logs WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return list, nil
}
