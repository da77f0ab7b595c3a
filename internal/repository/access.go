// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/willtank/willtank/internal/models"
)

// CreateAccessSession stores a document access session and sets its ID.
func (r *Repository) CreateAccessSession(ctx context.Context, s *models.DocumentAccessSession) error {
	return r.q.GetContext(ctx, &s.ID,
		`INSERT INTO document_access_sessions (verification_request_id, token_hash, granted_at, expires_at)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		s.VerificationRequestID, s.TokenHash, s.GrantedAt.UTC(), s.ExpiresAt.UTC())
}

// GetAccessSessionByTokenHash looks a session up by the hash of its token.
func (r *Repository) GetAccessSessionByTokenHash(ctx context.Context, hash string) (*models.DocumentAccessSession, error) {
	var s models.DocumentAccessSession
	err := r.q.GetContext(ctx, &s, `SELECT * FROM document_access_sessions WHERE token_hash = ?`, hash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// SetAccessSessionExpiry overwrites the expiry of a session.
func (r *Repository) SetAccessSessionExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	return wrapError(expectOne(r.q.ExecContext(ctx,
		`UPDATE document_access_sessions SET expires_at = ? WHERE id = ?`, expiresAt.UTC(), id)))
}

// RevokeAccessSessions revokes every session of a request that is still
// live at at and returns how many it revoked.
func (r *Repository) RevokeAccessSessions(ctx context.Context, requestID string, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE document_access_sessions SET revoked_at = ?
		 WHERE verification_request_id = ? AND revoked_at IS NULL AND expires_at > ?`,
		at.UTC(), requestID, at.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
