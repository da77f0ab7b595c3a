// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package storage keeps document blobs on the local filesystem or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeberg.org/willtank/willtank/internal/config"
)

var (
	// ErrNotFound is returned when no blob exists under a key.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrInvalidLink is returned when a signed download link does not verify.
	ErrInvalidLink = errors.New("invalid or expired download link")
)

// Store is a blob store for document contents.
type Store interface {
	// Put stores size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns a reader for the blob under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob under key. Missing blobs are not an error.
	Delete(ctx context.Context, key string) error
	// URL returns a time-limited download link for key.
	URL(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
}

// New builds the Store selected by cfg.Driver. baseURL is the public root
// of the application, used by the local driver for its download links.
func New(ctx context.Context, cfg *config.StorageConfig, baseURL string) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalDir, baseURL)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewKey returns a fresh storage key for a document of userID.
func NewKey(userID int64, now time.Time) string {
	return fmt.Sprintf("users/%d/%d/%02d/%s", userID, now.Year(), now.Month(), uuid.New())
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidKey
	}
	return clean, nil
}
