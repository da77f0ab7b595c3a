// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
)

// SubmitResult is the answer to a PIN submission. On success AccessToken
// opens the documents until ExpiresAt.
type SubmitResult struct {
	Success     bool       `json:"success"`
	InvalidPins []int      `json:"invalidPins"`
	AccessToken string     `json:"accessToken,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// SubmitPins checks the PINs an executor collected. Slot i must hold the PIN
// of the i-th issued PIN. A mismatch leaves the request untouched and may be
// retried without limit. A full match unlocks the will and grants document
// access in a single transaction.
func (s *Service) SubmitPins(ctx context.Context, id string, pins []string) (*SubmitResult, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case models.StatusPinsSent:
	case models.StatusExpired:
		return nil, ErrExpired
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, req.Status)
	}

	stored, err := s.repo.ListPins(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(pins) != len(stored) {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrPinCount, len(pins), len(stored))
	}

	invalid := []int{}
	for i, p := range pins {
		entered := strings.TrimSpace(p)
		if subtle.ConstantTimeCompare([]byte(entered), []byte(stored[i].PinCode)) != 1 {
			invalid = append(invalid, i)
		}
	}
	if len(invalid) > 0 {
		slog.Warn("invalid PINs submitted", "verification_id", id, "invalid", len(invalid), "total", len(stored))
		return &SubmitResult{InvalidPins: invalid}, nil
	}

	now := s.now()
	var (
		token     string
		expiresAt time.Time
	)
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.TransitionVerificationRequest(ctx, id, models.StatusPinsSent, models.StatusVerified, "all PINs matched", now); err != nil {
			return err
		}
		if err := tx.CreateAuditLog(ctx, req.UserID, models.AuditVerified,
			fmt.Sprintf("verification %s: %d PINs matched", id, len(stored)), now); err != nil {
			return err
		}
		if err := tx.TransitionVerificationRequest(ctx, id, models.StatusVerified, models.StatusCompleted, "", now); err != nil {
			return err
		}
		if err := tx.TransitionVerificationRequest(ctx, id, models.StatusCompleted, models.StatusWillUnlocked, "", now); err != nil {
			return err
		}
		if err := tx.CreateAuditLog(ctx, req.UserID, models.AuditWillUnlocked,
			fmt.Sprintf("verification %s: will unlocked", id), now); err != nil {
			return err
		}
		if err := tx.MarkPinsUsed(ctx, id); err != nil {
			return err
		}
		var err error
		token, expiresAt, err = s.gate.Grant(ctx, tx, id)
		return err
	})
	if errors.Is(err, repository.ErrConflict) {
		// another submission unlocked it first
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("unlock will: %w", err)
	}

	req.Status = models.StatusWillUnlocked
	req.CompletedAt = &now
	slog.Info("will unlocked", "verification_id", id, "user_id", req.UserID, "access_until", expiresAt)
	s.notify(req)
	return &SubmitResult{
		Success:     true,
		InvalidPins: []int{},
		AccessToken: token,
		ExpiresAt:   &expiresAt,
	}, nil
}
