// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers serves the owner API, the executor endpoints and the
// unlock portal.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/access"
	authsvc "codeberg.org/willtank/willtank/internal/services/auth"
	"codeberg.org/willtank/willtank/internal/services/checkin"
	"codeberg.org/willtank/willtank/internal/services/harness"
	"codeberg.org/willtank/willtank/internal/services/session"
	"codeberg.org/willtank/willtank/internal/services/verification"
	"codeberg.org/willtank/willtank/internal/sse"
	"codeberg.org/willtank/willtank/internal/storage"
	"codeberg.org/willtank/willtank/internal/templates"
)

// Deps are the services the handlers call.
type Deps struct {
	Repo         *repository.Repository
	Auth         *authsvc.Service
	Sessions     *session.Manager
	Checkins     *checkin.Service
	Verification *verification.Service
	Gate         *access.Gate
	Store        storage.Store
	Hub          *sse.Hub
	// Harness is nil unless the test harness is enabled.
	Harness *harness.Harness
	// MaxUpload limits a single document upload in bytes.
	MaxUpload int64
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	Deps
}

// New creates a new Handlers instance.
func New(d Deps) *Handlers {
	if d.MaxUpload <= 0 {
		d.MaxUpload = 25 << 20
	}
	return &Handlers{Deps: d}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if h.Repo != nil {
		if err := h.Repo.DB().PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Home renders the landing page every error page leads back to.
func (h *Handlers) Home(c echo.Context) error {
	return Render(c, http.StatusOK, templates.Home())
}
