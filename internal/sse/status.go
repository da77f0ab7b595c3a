// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"log/slog"
	"time"

	"codeberg.org/willtank/willtank/internal/models"
)

// StatusEvent is the name of the event sent when a request changes status.
const StatusEvent = "status"

// StatusChange is the payload of a StatusEvent.
type StatusChange struct {
	VerificationID string                    `json:"verificationId"`
	Status         models.VerificationStatus `json:"status"`
	ExpiresAt      time.Time                 `json:"expiresAt"`
}

// PublishStatus tells the portal clients of req about its current status.
func (h *Hub) PublishStatus(req *models.VerificationRequest) {
	msg, err := FormatJSONEvent(StatusEvent, StatusChange{
		VerificationID: req.ID,
		Status:         req.Status,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		slog.Error("failed to encode status event", "verification_id", req.ID, "error", err)
		return
	}
	h.Publish(req.ID, msg)
}
