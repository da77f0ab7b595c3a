// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/htmx"
	"codeberg.org/willtank/willtank/internal/services/verification"
	"codeberg.org/willtank/willtank/internal/templates"
)

func (h *Handlers) portal(ctx context.Context, id string) (templates.Portal, error) {
	view, err := h.Verification.Status(ctx, id)
	if err != nil {
		return templates.Portal{}, err
	}
	return templates.Portal{
		VerificationID: id,
		UserName:       view.UserName,
		ExecutorName:   view.ExecutorName,
		Status:         view.Status,
		PinsRequired:   view.PinsRequired,
		PinsReceived:   view.PinsReceived,
		ExpiresAt:      view.ExpiresAt,
	}, nil
}

// PortalPage renders the unlock page for the executor.
func (h *Handlers) PortalPage(c echo.Context) error {
	p, err := h.portal(c.Request().Context(), c.Param("id"))
	if err != nil {
		return pageError(c, err)
	}
	return Render(c, http.StatusOK, templates.PortalPage(p))
}

// PortalStatus renders the status fragment the page reloads on SSE events.
func (h *Handlers) PortalStatus(c echo.Context) error {
	p, err := h.portal(c.Request().Context(), c.Param("id"))
	if err != nil {
		return pageError(c, err)
	}
	return Render(c, http.StatusOK, templates.PortalStatus(p))
}

// PortalSubmitPins checks the PIN form. Wrong slots are marked and the form
// is shown again; a full match replaces it with the unlocked documents.
func (h *Handlers) PortalSubmitPins(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	form, err := c.FormParams()
	if err != nil {
		return pageError(c, errBadRequest)
	}
	entered := form["pins"]

	res, err := h.Verification.SubmitPins(ctx, id, entered)
	if err != nil && !errors.Is(err, verification.ErrPinCount) {
		return pageError(c, err)
	}
	if err != nil || !res.Success {
		p, perr := h.portal(ctx, id)
		if perr != nil {
			return pageError(c, perr)
		}
		var invalid []int
		if res != nil {
			invalid = res.InvalidPins
		}
		if invalid == nil {
			// wrong number of values, every slot is suspect
			for i := range p.PinsRequired {
				invalid = append(invalid, i)
			}
		}
		// htmx does not swap error responses
		code := http.StatusUnprocessableEntity
		if htmx.IsHtmx(c.Request()) {
			code = http.StatusOK
		}
		return Render(c, code, templates.PinForm(p, entered, invalid))
	}

	listing, err := h.Gate.List(ctx, id, res.AccessToken)
	if err != nil {
		return pageError(c, err)
	}
	return Render(c, http.StatusOK, templates.UnlockedView(templates.Unlocked{
		VerificationID: id,
		Token:          res.AccessToken,
		UserName:       listing.UserName,
		Will:           listing.Will,
		Documents:      listing.Documents,
		ExpiresAt:      listing.ExpiresAt,
	}))
}

// PortalDownload redirects to a short-lived link for one document.
func (h *Handlers) PortalDownload(c echo.Context) error {
	docID, err := idParam(c, "doc")
	if err != nil {
		return pageError(c, err)
	}
	url, _, err := h.Gate.DownloadURL(c.Request().Context(), c.Param("id"), accessToken(c), docID)
	if err != nil {
		return pageError(c, err)
	}
	return c.Redirect(http.StatusSeeOther, url)
}

// PortalZip streams all documents as one archive.
func (h *Handlers) PortalZip(c echo.Context) error {
	return h.streamZip(c, c.Param("id"), accessToken(c), pageError)
}
