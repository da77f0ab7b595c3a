// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/storage"
)

// linkVerifier is implemented by stores that hand out links to this
// application instead of presigned third-party URLs.
type linkVerifier interface {
	VerifyLink(token string) (key, filename string, err error)
}

// File serves a blob behind a signed link of the local storage driver.
func (h *Handlers) File(c echo.Context) error {
	lv, ok := h.Store.(linkVerifier)
	if !ok {
		return echo.ErrNotFound
	}
	key, filename, err := lv.VerifyLink(c.QueryParam("t"))
	if err != nil {
		return c.String(statusFor(err), err.Error())
	}

	ctx := c.Request().Context()
	contentType := "application/octet-stream"
	doc, err := h.Repo.GetDocumentByKey(ctx, key)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// the document was deleted after the link was issued
		return c.String(http.StatusGone, storage.ErrInvalidLink.Error())
	case err != nil:
		return c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	case doc.ContentType != "":
		contentType = doc.ContentType
	}

	rc, err := h.Store.Open(ctx, key)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			slog.Error("failed to open blob", "key", key, "error", err)
		}
		return c.String(code, http.StatusText(code))
	}
	defer rc.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, contentType)
	res.Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	res.Header().Set(echo.HeaderContentLength, fmt.Sprint(doc.Size))
	res.Header().Set("Cache-Control", "no-store")
	res.WriteHeader(http.StatusOK)
	if _, err := io.Copy(res, rc); err != nil {
		slog.Warn("download interrupted", "key", key, "error", err)
	}
	return nil
}
