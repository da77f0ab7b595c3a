// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/htmx"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/access"
	authsvc "codeberg.org/willtank/willtank/internal/services/auth"
	"codeberg.org/willtank/willtank/internal/services/checkin"
	"codeberg.org/willtank/willtank/internal/services/harness"
	"codeberg.org/willtank/willtank/internal/services/verification"
	"codeberg.org/willtank/willtank/internal/storage"
	"codeberg.org/willtank/willtank/internal/templates"
)

// errBadRequest marks malformed input detected by a handler.
var errBadRequest = errors.New("bad request")

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var pwErr *authsvc.PasswordError
	switch {
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrAccessDenied), errors.Is(err, harness.ErrNotTestUser):
		return http.StatusForbidden
	case errors.Is(err, verification.ErrNotFound), errors.Is(err, verification.ErrUserNotFound),
		errors.Is(err, verification.ErrPinNotFound), errors.Is(err, access.ErrDocumentNotFound),
		errors.Is(err, harness.ErrNoRequest), errors.Is(err, repository.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, verification.ErrExpired), errors.Is(err, access.ErrAccessExpired),
		errors.Is(err, storage.ErrInvalidLink):
		return http.StatusGone
	case errors.Is(err, authsvc.ErrUserExists), errors.Is(err, verification.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, errBadRequest), errors.Is(err, authsvc.ErrInvalidEmail), errors.As(err, &pwErr),
		errors.Is(err, harness.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, verification.ErrPinCount), errors.Is(err, checkin.ErrInvalidSettings),
		errors.Is(err, verification.ErrNoContacts):
		return http.StatusUnprocessableEntity
	case errors.Is(err, verification.ErrDelivery):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// apiError writes err as {"error": "..."}. Internal failures are logged and
// their details withheld.
func apiError(c echo.Context, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		msg = "internal error"
	}
	return c.JSON(code, map[string]string{"error": msg})
}

// pageError renders the error page for a portal request. htmx requests are
// sent to the landing page instead of swapping an error into the form.
func pageError(c echo.Context, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("page failed", "path", c.Path(), "error", err)
	}
	if htmx.IsHtmx(c.Request()) && (code == http.StatusGone || code == http.StatusNotFound) {
		htmx.Redirect(c.Response(), c.Request(), "/")
		return nil
	}
	ctx := c.Request().Context()
	var msg string
	switch code {
	case http.StatusNotFound:
		msg = templates.T(ctx, "error_not_found")
	case http.StatusGone:
		msg = templates.T(ctx, "error_expired")
	default:
		msg = http.StatusText(code)
	}
	return Render(c, code, templates.ErrorPage(code, msg))
}
