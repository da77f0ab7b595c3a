// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/vinovest/sqlx"

	"codeberg.org/willtank/willtank/internal/models"
)

// CreateVerificationRequest inserts req unless the user already has an open
// request. It reports whether a row was written.
func (r *Repository) CreateVerificationRequest(ctx context.Context, req *models.VerificationRequest) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO verification_requests
			(id, user_id, status, trigger_reason, initiated_by, expires_at, verification_result, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		req.ID, req.UserID, string(req.Status), req.TriggerReason, req.InitiatedBy,
		req.ExpiresAt.UTC(), req.VerificationResult, req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetVerificationRequest returns a request by its public ID.
func (r *Repository) GetVerificationRequest(ctx context.Context, id string) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	if err := r.q.GetContext(ctx, &req, `SELECT * FROM verification_requests WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &req, nil
}

// GetOpenVerificationRequest returns the non-terminal request of a user.
func (r *Repository) GetOpenVerificationRequest(ctx context.Context, userID int64) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	err := r.q.GetContext(ctx, &req,
		`SELECT * FROM verification_requests
		 WHERE user_id = ? AND status IN ('pending', 'pins_sent', 'verified', 'completed')
		 LIMIT 1`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &req, nil
}

// GetLatestVerificationRequest returns the most recently created request.
func (r *Repository) GetLatestVerificationRequest(ctx context.Context, userID int64) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	err := r.q.GetContext(ctx, &req,
		`SELECT * FROM verification_requests WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &req, nil
}

// ListVerificationRequestsByStatus returns requests in any of statuses.
func (r *Repository) ListVerificationRequestsByStatus(ctx context.Context, statuses ...models.VerificationStatus) ([]models.VerificationRequest, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query, args, err := sqlx.In(`SELECT * FROM verification_requests WHERE status IN (?) ORDER BY created_at`, names)
	if err != nil {
		return nil, err
	}
	var list []models.VerificationRequest
	if err := r.q.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, err
	}
	return list, nil
}

// TransitionVerificationRequest moves a request from one status to another.
// It returns ErrConflict when the stored status is no longer from, so two
// concurrent writers cannot both advance the same request.
func (r *Repository) TransitionVerificationRequest(
	ctx context.Context, id string, from, to models.VerificationStatus, result string, at time.Time,
) error {
	var completed any
	if to == models.StatusCompleted {
		completed = at.UTC()
	}
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE verification_requests
		 SET status = ?, verification_result = COALESCE(NULLIF(?, ''), verification_result),
		     completed_at = COALESCE(?, completed_at), updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), result, completed, at.UTC(), id, string(from)))
}
