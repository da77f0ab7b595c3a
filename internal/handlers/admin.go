// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/services/verification"
)

type adminRequest struct {
	UserID         int64  `json:"userId"`
	VerificationID string `json:"verificationId"`
	ContactID      int64  `json:"contactId"`
	Action         string `json:"action"`
}

// TriggerVerification opens a verification for a user on request of an
// operator.
func (h *Handlers) TriggerVerification(c echo.Context) error {
	var req adminRequest
	if err := bind(c, &req); err != nil {
		return apiError(c, err)
	}
	if req.UserID <= 0 {
		return apiError(c, fmt.Errorf("%w: userId is required", errBadRequest))
	}
	vr, err := h.Verification.Trigger(c.Request().Context(), req.UserID, "operator")
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":        vr.Status != models.StatusFailed,
		"verificationId": vr.ID,
		"status":         vr.Status,
		"expiresAt":      vr.ExpiresAt,
	})
}

// Scan runs one inactivity scan over all users.
func (h *Handlers) Scan(c echo.Context) error {
	res, err := h.Verification.Scan(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SendPin emails a contact their PIN again.
func (h *Handlers) SendPin(c echo.Context) error {
	var req adminRequest
	if err := bind(c, &req); err != nil {
		return apiError(c, err)
	}
	if req.VerificationID == "" || req.ContactID <= 0 {
		return apiError(c, fmt.Errorf("%w: verificationId and contactId are required", errBadRequest))
	}
	err := h.Verification.ResendPin(c.Request().Context(), req.VerificationID, req.ContactID)
	if err != nil && !errors.Is(err, verification.ErrDelivery) {
		return apiError(c, err)
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{"success": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// TestExecutorAccess drives the test harness. It is only routed when the
// harness is enabled.
func (h *Handlers) TestExecutorAccess(c echo.Context) error {
	if h.Harness == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "test harness disabled"})
	}
	var req adminRequest
	if err := bind(c, &req); err != nil {
		return apiError(c, err)
	}
	res, err := h.Harness.Run(c.Request().Context(), req.Action, req.UserID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
