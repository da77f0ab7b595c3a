// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Will is the will text of a user. There is at most one per user.
type Will struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Document is an uploaded supporting file. The bytes live in the blob store
// under StorageKey.
type Document struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	ContentType string    `db:"content_type" json:"content_type"`
	Size        int64     `db:"size" json:"size"`
	StorageKey  string    `db:"storage_key" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
