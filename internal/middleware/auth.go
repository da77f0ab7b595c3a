// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the echo middleware that guards routes.
package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/auth"
	"codeberg.org/willtank/willtank/internal/htmx"
	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/services/session"
)

// ScannerTokenHeader carries the shared secret of scheduled callers.
const ScannerTokenHeader = "X-Scanner-Token"

// UserLoader is an interface for loading full user data
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser puts the owner of a valid session cookie into the request
// context. Requests without a session pass through anonymously.
func LoadUser(sm *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			data, err := sm.Parse(c.Request())
			if err != nil || data == nil {
				return next(c)
			}
			user, err := users.GetUserByID(c.Request().Context(), data.UserID)
			if err != nil {
				// deleted account or database trouble, treat as signed out
				slog.Debug("session user not loaded", "user_id", data.UserID, "error", err)
				return next(c)
			}
			c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), user)))
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous requests. API calls get a 401, pages are
// sent to the login.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if auth.IsAuthenticated(c.Request().Context()) {
			return next(c)
		}
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		}
		htmx.Redirect(c.Response(), c.Request(), "/auth/login")
		return nil
	}
}

// RequireScannerToken admits callers presenting the configured token as a
// bearer token or in the X-Scanner-Token header. Without a configured token
// the routes are closed.
func RequireScannerToken(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "scanner token not configured"})
			}
			presented := c.Request().Header.Get(ScannerTokenHeader)
			if bearer, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "); ok {
				presented = bearer
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid scanner token"})
			}
			return next(c)
		}
	}
}
