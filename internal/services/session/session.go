// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session issues and parses signed owner login cookies.
package session

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"codeberg.org/willtank/willtank/internal/config"
)

// Data is the content of a session cookie.
type Data struct {
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

// Manager creates and validates session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
}

// NewManager builds a Manager from hex-encoded keys. An empty hash key is
// replaced by a random one, which invalidates sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("no session hash key configured, generating a temporary one")
		hashKey = securecookie.GenerateRandomKey(32)
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)

	return &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid session %s key: must be 32 bytes, got %d", kind, len(key))
	}
	return key, nil
}

// Create returns a cookie holding a new session for the user.
func (m *Manager) Create(userID int64, email string) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Email:     email,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}
	encoded, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return m.cookie(encoded, m.maxAge), nil
}

// Parse returns the session carried by r, or nil when there is none or it
// does not verify.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	c, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // a missing cookie is an anonymous request
	}
	var data Data
	if err := m.codec.Decode(m.name, c.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // invalid cookies are treated as anonymous
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, nil
	}
	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
