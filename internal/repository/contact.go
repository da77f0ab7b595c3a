// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/willtank/willtank/internal/models"
)

// CreateContact inserts a contact and fills in its ID and creation time.
func (r *Repository) CreateContact(ctx context.Context, c *models.Contact) error {
	return r.q.GetContext(ctx, c,
		`INSERT INTO contacts (user_id, name, email, contact_type) VALUES (?, ?, ?, ?) RETURNING *`,
		c.UserID, c.Name, c.Email, string(c.Type))
}

// GetContact returns a contact owned by userID.
func (r *Repository) GetContact(ctx context.Context, userID, id int64) (*models.Contact, error) {
	var c models.Contact
	err := r.q.GetContext(ctx, &c, `SELECT * FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// ListContacts returns all contacts of a user in creation order.
func (r *Repository) ListContacts(ctx context.Context, userID int64) ([]models.Contact, error) {
	var list []models.Contact
	err := r.q.SelectContext(ctx, &list, `SELECT * FROM contacts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetPrimaryExecutor returns the earliest executor contact of a user.
func (r *Repository) GetPrimaryExecutor(ctx context.Context, userID int64) (*models.Contact, error) {
	var c models.Contact
	err := r.q.GetContext(ctx, &c,
		`SELECT * FROM contacts WHERE user_id = ? AND contact_type = ? ORDER BY id LIMIT 1`,
		userID, string(models.ContactExecutor))
	if err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// DeleteContact removes a contact owned by userID.
func (r *Repository) DeleteContact(ctx context.Context, userID, id int64) error {
	return wrapError(expectOne(r.q.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = ? AND user_id = ?`, id, userID)))
}
