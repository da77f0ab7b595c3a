// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/willtank/willtank/internal/models"
)

// CreateUser creates a new user.
func (r *Repository) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	var user models.User
	err := r.q.GetContext(ctx, &user,
		`INSERT INTO users (email, name, password_hash) VALUES (?, ?, ?) RETURNING *`,
		email, name, passwordHash)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.q.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.q.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// EmailExists checks if a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	return exists, err
}

// DeleteUser deletes a user and, through cascading keys, everything they own.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}
