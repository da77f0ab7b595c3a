// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/willtank/willtank/internal/models"
)

// CreatePin inserts a PIN row and sets its ID.
func (r *Repository) CreatePin(ctx context.Context, p *models.VerificationPin) error {
	return r.q.GetContext(ctx, &p.ID,
		`INSERT INTO verification_pins
			(verification_request_id, contact_id, contact_type, contact_name, contact_email, pin_code, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.VerificationRequestID, p.ContactID, string(p.ContactType), p.ContactName, p.ContactEmail,
		p.PinCode, p.ExpiresAt.UTC(), p.CreatedAt.UTC())
}

// ListPins returns the PINs of a request in creation order. The position in
// this slice is the slot an executor enters the PIN into.
func (r *Repository) ListPins(ctx context.Context, requestID string) ([]models.VerificationPin, error) {
	var list []models.VerificationPin
	err := r.q.SelectContext(ctx, &list,
		`SELECT * FROM verification_pins WHERE verification_request_id = ? ORDER BY id`, requestID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetPinForContact returns the PIN a request issued to one contact.
func (r *Repository) GetPinForContact(ctx context.Context, requestID string, contactID int64) (*models.VerificationPin, error) {
	var p models.VerificationPin
	err := r.q.GetContext(ctx, &p,
		`SELECT * FROM verification_pins WHERE verification_request_id = ? AND contact_id = ?`, requestID, contactID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &p, nil
}

// MarkPinSent records the delivery time of a PIN.
func (r *Repository) MarkPinSent(ctx context.Context, id int64, at time.Time) error {
	return wrapError(expectOne(r.q.ExecContext(ctx,
		`UPDATE verification_pins SET sent_at = ? WHERE id = ?`, at.UTC(), id)))
}

// MarkPinsUsed flags every PIN of a request as consumed.
func (r *Repository) MarkPinsUsed(ctx context.Context, requestID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE verification_pins SET used = 1 WHERE verification_request_id = ?`, requestID)
	return err
}
