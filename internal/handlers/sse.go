// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/sse"
)

// heartbeatInterval keeps idle connections open through proxies.
var heartbeatInterval = 30 * time.Second

// Events streams status changes of one verification request.
func (h *Handlers) Events(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	req, err := h.Verification.Get(ctx, id)
	if err != nil {
		return apiError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	res.WriteHeader(http.StatusOK)

	ch := h.Hub.Register(id)
	defer h.Hub.Unregister(id, ch)
	slog.Debug("sse client connected", "verification_id", id,
		"clients", h.Hub.ClientCount(), "topics", h.Hub.TopicCount())

	initial, err := sse.FormatJSONEvent(sse.StatusEvent, sse.StatusChange{
		VerificationID: req.ID,
		Status:         req.Status,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		return err
	}
	if _, err := res.Write([]byte(initial)); err != nil {
		return nil
	}
	res.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := res.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			res.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := res.Write([]byte(msg)); err != nil {
				slog.Debug("sse client gone", "verification_id", id, "error", err)
				return nil
			}
			res.Flush()
		}
	}
}
