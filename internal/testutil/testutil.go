// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"

	"codeberg.org/willtank/willtank/internal/database"
	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
)

// Epoch is the default start time of a test Clock.
var Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a test user in the database.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), email, "Test User", "not-a-real-hash")
	require.NoError(t, err)
	return user
}

// NewTestContact creates a contact for userID.
func NewTestContact(t *testing.T, repo *repository.Repository, userID int64, name string, typ models.ContactType) *models.Contact {
	t.Helper()
	c := &models.Contact{
		UserID: userID,
		Name:   name,
		Email:  name + "@example.com",
		Type:   typ,
	}
	require.NoError(t, repo.CreateContact(context.Background(), c))
	return c
}

// NewTestSettings stores verification settings for userID and a check-in at
// checkedInAt.
func NewTestSettings(
	t *testing.T, repo *repository.Repository, userID int64, frequencyDays, graceDays int, checkedInAt time.Time,
) *models.VerificationSettings {
	t.Helper()
	ctx := context.Background()
	s, err := repo.CreateSettings(ctx, &models.VerificationSettings{
		UserID:               userID,
		CheckInFrequencyDays: frequencyDays,
		GracePeriodDays:      graceDays,
		CheckInEnabled:       true,
		NotificationChannels: models.ChannelEmail,
		UnlockMode:           models.UnlockModePin,
		CreatedAt:            checkedInAt,
		UpdatedAt:            checkedInAt,
	})
	require.NoError(t, err)
	require.NoError(t, repo.CreateCheckin(ctx, &models.CheckinRecord{
		UserID:      userID,
		CheckedInAt: checkedInAt,
		NextCheckIn: checkedInAt.Add(s.Frequency()),
	}))
	return s
}

// Clock is a settable time source for services that take a clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
