// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/services/access"
)

// executorRequest is the body shared by the executor endpoints.
type executorRequest struct {
	VerificationID string   `json:"verificationId" form:"verificationId"`
	DocumentID     int64    `json:"documentId" form:"documentId"`
	Pins           []string `json:"pins" form:"pins"`
}

func bindExecutor(c echo.Context) (*executorRequest, error) {
	var req executorRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	if req.VerificationID == "" {
		return nil, fmt.Errorf("%w: verificationId is required", errBadRequest)
	}
	return &req, nil
}

// CheckVerification reports the progress of a verification request.
func (h *Handlers) CheckVerification(c echo.Context) error {
	req, err := bindExecutor(c)
	if err != nil {
		return apiError(c, err)
	}
	view, err := h.Verification.Status(c.Request().Context(), req.VerificationID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// SubmitPins checks the collected PINs. A mismatch answers 422 with the
// positions of the wrong PINs.
func (h *Handlers) SubmitPins(c echo.Context) error {
	req, err := bindExecutor(c)
	if err != nil {
		return apiError(c, err)
	}
	res, err := h.Verification.SubmitPins(c.Request().Context(), req.VerificationID, req.Pins)
	if err != nil {
		return apiError(c, err)
	}
	if !res.Success {
		return c.JSON(http.StatusUnprocessableEntity, res)
	}
	return c.JSON(http.StatusOK, res)
}

// ExecutorDocuments lists the will and documents behind an access token.
func (h *Handlers) ExecutorDocuments(c echo.Context) error {
	req, err := bindExecutor(c)
	if err != nil {
		return apiError(c, err)
	}
	listing, err := h.Gate.List(c.Request().Context(), req.VerificationID, accessToken(c))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

type downloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DocumentDownloadURL returns a short-lived link to one document.
func (h *Handlers) DocumentDownloadURL(c echo.Context) error {
	req, err := bindExecutor(c)
	if err != nil {
		return apiError(c, err)
	}
	if req.DocumentID <= 0 {
		return apiError(c, fmt.Errorf("%w: documentId is required", errBadRequest))
	}
	url, expiresAt, err := h.Gate.DownloadURL(c.Request().Context(), req.VerificationID, accessToken(c), req.DocumentID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, downloadURLResponse{URL: url, ExpiresAt: expiresAt})
}

// DocumentsZip streams every document as one archive.
func (h *Handlers) DocumentsZip(c echo.Context) error {
	req, err := bindExecutor(c)
	if err != nil {
		return apiError(c, err)
	}
	return h.streamZip(c, req.VerificationID, accessToken(c), apiError)
}

// streamZip writes the archive. Errors after the first byte can only be
// logged.
func (h *Handlers) streamZip(c echo.Context, id, token string, onError func(echo.Context, error) error) error {
	ctx := c.Request().Context()
	listing, err := h.Gate.List(ctx, id, token)
	if err != nil {
		return onError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/zip")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", access.ZipName(listing.UserName)))
	res.Header().Set("Cache-Control", "no-store")

	if err := h.Gate.Zip(ctx, id, token, res); err != nil {
		if !res.Committed {
			res.Header().Del(echo.HeaderContentDisposition)
			res.Header().Del(echo.HeaderContentType)
			return onError(c, err)
		}
		slog.Error("bulk download aborted", "verification_id", id, "error", err)
	}
	return nil
}
