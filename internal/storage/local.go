// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/securecookie"
)

// LinkPath is the route under which the local driver's links are served.
const LinkPath = "/files"

const linkName = "willtank-file"

type link struct {
	Key      string
	Filename string
	Expires  int64
}

// Local stores blobs below a directory. Download links are signed with a
// per-process key and verified by VerifyLink.
type Local struct {
	dir     string
	baseURL string
	codec   *securecookie.SecureCookie
	now     func() time.Time
}

// NewLocal creates the directory if needed and returns a Local store.
func NewLocal(dir, baseURL string) (*Local, error) {
	if dir == "" {
		dir = "./data/documents"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	codec := securecookie.New(securecookie.GenerateRandomKey(32), nil)
	codec.MaxAge(0)
	return &Local{dir: dir, baseURL: baseURL, codec: codec, now: time.Now}, nil
}

func (l *Local) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, filepath.FromSlash(clean)), nil
}

// Put writes the blob to a temporary file and renames it into place.
func (l *Local) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Open opens the blob for reading.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p) //nolint:gosec // path is confined to the storage directory
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the blob.
func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns a signed link to LinkPath valid for ttl.
func (l *Local) URL(_ context.Context, key, filename string, ttl time.Duration) (string, error) {
	if _, err := cleanKey(key); err != nil {
		return "", err
	}
	token, err := l.codec.Encode(linkName, link{
		Key:      key,
		Filename: filename,
		Expires:  l.now().Add(ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	return l.baseURL + LinkPath + "?t=" + url.QueryEscape(token), nil
}

// VerifyLink checks a token produced by URL and returns the key and
// download filename it grants.
func (l *Local) VerifyLink(token string) (key, filename string, err error) {
	var v link
	if err := l.codec.Decode(linkName, token, &v); err != nil {
		return "", "", ErrInvalidLink
	}
	if l.now().Unix() >= v.Expires {
		return "", "", ErrInvalidLink
	}
	return v.Key, v.Filename, nil
}
