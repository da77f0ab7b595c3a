// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/willtank/willtank/internal/models"
)

// UpsertWill stores the will of w.UserID, replacing an existing one.
func (r *Repository) UpsertWill(ctx context.Context, w *models.Will) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO wills (user_id, title, content, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET title = excluded.title, content = excluded.content, updated_at = excluded.updated_at`,
		w.UserID, w.Title, w.Content, w.UpdatedAt.UTC())
	return err
}

// GetWill returns the will of a user.
func (r *Repository) GetWill(ctx context.Context, userID int64) (*models.Will, error) {
	var w models.Will
	if err := r.q.GetContext(ctx, &w, `SELECT * FROM wills WHERE user_id = ?`, userID); err != nil {
		return nil, wrapError(err)
	}
	return &w, nil
}

// CreateDocument records an uploaded document.
func (r *Repository) CreateDocument(ctx context.Context, d *models.Document) error {
	return r.q.GetContext(ctx, d,
		`INSERT INTO documents (user_id, name, content_type, size, storage_key) VALUES (?, ?, ?, ?, ?) RETURNING *`,
		d.UserID, d.Name, d.ContentType, d.Size, d.StorageKey)
}

// GetDocument returns a document owned by userID.
func (r *Repository) GetDocument(ctx context.Context, userID, id int64) (*models.Document, error) {
	var d models.Document
	err := r.q.GetContext(ctx, &d, `SELECT * FROM documents WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &d, nil
}

// GetDocumentByKey returns the document stored under key.
func (r *Repository) GetDocumentByKey(ctx context.Context, key string) (*models.Document, error) {
	var d models.Document
	if err := r.q.GetContext(ctx, &d, `SELECT * FROM documents WHERE storage_key = ?`, key); err != nil {
		return nil, wrapError(err)
	}
	return &d, nil
}

// ListDocuments returns the documents of a user, oldest first.
func (r *Repository) ListDocuments(ctx context.Context, userID int64) ([]models.Document, error) {
	var list []models.Document
	err := r.q.SelectContext(ctx, &list, `SELECT * FROM documents WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteDocument removes a document record owned by userID.
func (r *Repository) DeleteDocument(ctx context.Context, userID, id int64) error {
	return wrapError(expectOne(r.q.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ? AND user_id = ?`, id, userID)))
}
