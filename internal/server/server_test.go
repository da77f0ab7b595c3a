// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/i18n"
	"codeberg.org/willtank/willtank/internal/middleware"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Host: "localhost", Port: 8080, BaseURL: "http://localhost:8080", MaxBodySize: 10},
		Database: config.DatabaseConfig{DSN: ":memory:"},
		Session: config.SessionConfig{
			CookieName: "_session",
			MaxAge:     3600,
			HashKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		},
		Storage: config.StorageConfig{Driver: "local", LocalDir: t.TempDir()},
		Verification: config.VerificationConfig{
			DefaultFrequencyDays: 30,
			DefaultGraceDays:     7,
			RequestTTL:           7 * 24 * time.Hour,
			AccessTTL:            time.Hour,
			RevokeAfterDownload:  5 * time.Minute,
			DistributeOnDetect:   true,
			ScannerToken:         "scanner-secret",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	require.NoError(t, i18n.Init())
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	e := echo.New()
	setupMiddleware(e, cfg, a)
	setupRoutes(e, a)
	return e
}

func do(e *echo.Echo, method, path, body string, header map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Health(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRoutes_OwnerAPIRequiresSession(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodGet, "/api/me/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutes_RegisterThenSettings(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodPost, "/auth/register",
		`{"email":"owner@example.com","name":"Owner","password":"correct horse battery"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = do(e, http.MethodGet, "/api/me/settings", "", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.InDelta(t, 30, settings["checkInFrequencyDays"], 0)
	assert.InDelta(t, 7, settings["gracePeriodDays"], 0)
	assert.Equal(t, []any{"email"}, settings["notificationChannels"])
	assert.NotNil(t, settings["latestCheckin"])
}

func TestRoutes_ScannerToken(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodPost, "/api/scan", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/api/scan", "", map[string]string{
		middleware.ScannerTokenHeader: "scanner-secret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"scanned"`)
}

func TestRoutes_ScannerRoutesClosedWithoutToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Verification.ScannerToken = ""
	e := newTestServer(t, cfg)

	rec := do(e, http.MethodPost, "/api/trigger-death-verification", `{"userId":1}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoutes_HarnessOnlyWhenEnabled(t *testing.T) {
	headers := map[string]string{echo.HeaderAuthorization: "Bearer scanner-secret"}
	body := `{"action":"setup_test_data"}`

	e := newTestServer(t, testConfig(t))
	rec := do(e, http.MethodPost, "/api/test-executor-access", body, headers)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cfg := testConfig(t)
	cfg.Verification.TestHarness = true
	e = newTestServer(t, cfg)
	rec = do(e, http.MethodPost, "/api/test-executor-access", body, headers)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId"`)
}

func TestRoutes_UnknownPortal(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodGet, "/verify/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/will-unlock/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
