// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/email"
)

// Outcome is what a scan decided for one user.
type Outcome string

const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomeAlive       Outcome = "alive"
	OutcomeReminded    Outcome = "reminded"
	OutcomeWithinGrace Outcome = "within_grace"
	OutcomeOpen        Outcome = "already_open"
	OutcomeOpened      Outcome = "opened"
	OutcomeFailed      Outcome = "failed"
)

// ScanResult counts the outcomes of one scan pass.
type ScanResult struct {
	Scanned  int `json:"scanned"`
	Reminded int `json:"reminded"`
	Opened   int `json:"opened"`
	Failed   int `json:"failed"`
	Expired  int `json:"expired"`
	Errors   int `json:"errors"`
}

// Scan looks at every user with check-ins enabled. A failure for one user
// is logged and does not stop the pass.
func (s *Service) Scan(ctx context.Context) (*ScanResult, error) {
	res := &ScanResult{}

	expired, err := s.ExpireDue(ctx)
	res.Expired = expired
	if err != nil {
		slog.Error("failed to expire verification requests", "error", err)
		res.Errors++
	}

	list, err := s.repo.ListEnabledSettings(ctx)
	if err != nil {
		return res, fmt.Errorf("list settings: %w", err)
	}
	for _, settings := range list {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		outcome, err := s.ScanUser(ctx, settings.UserID)
		if err != nil {
			slog.Error("scan failed", "user_id", settings.UserID, "error", err)
			res.Errors++
			continue
		}
		switch outcome {
		case OutcomeReminded:
			res.Reminded++
		case OutcomeOpened:
			res.Opened++
		case OutcomeFailed:
			res.Opened++
			res.Failed++
		}
	}
	slog.Info("scan finished", "scanned", res.Scanned, "opened", res.Opened,
		"reminded", res.Reminded, "expired", res.Expired, "errors", res.Errors)
	return res, nil
}

// RunUser adapts ScanUser to the scheduler's job signature.
func (s *Service) RunUser(ctx context.Context, userID int64) error {
	_, err := s.ScanUser(ctx, userID)
	return err
}

// ScanUser checks one user. Past the next check-in the owner gets one
// reminder; past the grace period a verification request is opened unless
// this overdue episode already has one.
func (s *Service) ScanUser(ctx context.Context, userID int64) (Outcome, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", err
	}
	if !settings.CheckInEnabled {
		return OutcomeSkipped, nil
	}
	latest, err := s.repo.GetLatestCheckin(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", err
	}

	now := s.now()
	deadline := latest.NextCheckIn.Add(settings.Grace())
	if !now.After(latest.NextCheckIn) {
		return OutcomeAlive, nil
	}
	if !now.After(deadline) {
		return s.remind(ctx, settings, latest)
	}

	if latest.Status != models.CheckinOverdue {
		if err := s.repo.MarkCheckinOverdue(ctx, latest.ID, nil); err != nil {
			return "", fmt.Errorf("mark check-in overdue: %w", err)
		}
	}

	last, err := s.repo.GetLatestVerificationRequest(ctx, userID)
	switch {
	case err == nil:
		if err := s.expireIfDue(ctx, last); err != nil {
			return "", err
		}
		if last.CreatedAt.After(latest.CheckedInAt) && last.Status != models.StatusExpired {
			if last.Status == models.StatusPending && s.distribute {
				// an earlier distribution was interrupted
				_, err := s.Distribute(ctx, last.ID)
				if err != nil && !errors.Is(err, ErrNoContacts) && !errors.Is(err, ErrInvalidState) {
					return OutcomeOpen, fmt.Errorf("resume PIN distribution: %w", err)
				}
			}
			return OutcomeOpen, nil
		}
	case !errors.Is(err, repository.ErrNotFound):
		return "", err
	}

	req, created, err := s.open(ctx, userID, models.TriggerMissedCheckins, models.InitiatedBySystem)
	if err != nil {
		return "", err
	}
	if !created {
		return OutcomeOpen, nil
	}
	slog.Info("verification opened", "user_id", userID, "verification_id", req.ID,
		"overdue_by", now.Sub(deadline).String())

	if !s.distribute {
		return OutcomeOpened, nil
	}
	if _, err := s.Distribute(ctx, req.ID); err != nil {
		if errors.Is(err, ErrNoContacts) {
			return OutcomeFailed, nil
		}
		return OutcomeOpened, fmt.Errorf("distribute PINs: %w", err)
	}
	return OutcomeOpened, nil
}

func (s *Service) remind(
	ctx context.Context, settings *models.VerificationSettings, latest *models.CheckinRecord,
) (Outcome, error) {
	if latest.ReminderSentAt != nil {
		return OutcomeWithinGrace, nil
	}
	if !settings.HasChannel(models.ChannelEmail) {
		if latest.Status != models.CheckinOverdue {
			return OutcomeWithinGrace, s.repo.MarkCheckinOverdue(ctx, latest.ID, nil)
		}
		return OutcomeWithinGrace, nil
	}

	user, err := s.repo.GetUserByID(ctx, settings.UserID)
	if err != nil {
		return "", err
	}
	err = s.mailer.SendCheckinReminder(ctx, email.ReminderEmail{
		To:         user.Email,
		UserName:   user.DisplayName(),
		DueAt:      latest.NextCheckIn,
		DeadlineAt: latest.NextCheckIn.Add(settings.Grace()),
	})
	if err != nil {
		slog.Error("failed to send check-in reminder", "user_id", user.ID, "error", err)
		return OutcomeWithinGrace, s.repo.MarkCheckinOverdue(ctx, latest.ID, nil)
	}
	now := s.now()
	if err := s.repo.MarkCheckinOverdue(ctx, latest.ID, &now); err != nil {
		return "", err
	}
	slog.Info("check-in reminder sent", "user_id", user.ID, "next_checkin", latest.NextCheckIn)
	return OutcomeReminded, nil
}

// open inserts a pending request and its audit entry. created is false when
// the user already has an open request.
func (s *Service) open(
	ctx context.Context, userID int64, reason, initiatedBy string,
) (*models.VerificationRequest, bool, error) {
	now := s.now()
	req := &models.VerificationRequest{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        models.StatusPending,
		TriggerReason: reason,
		InitiatedBy:   initiatedBy,
		ExpiresAt:     now.Add(s.requestTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	var created bool
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		created, err = tx.CreateVerificationRequest(ctx, req)
		if err != nil || !created {
			return err
		}
		return tx.CreateAuditLog(ctx, userID, models.AuditVerificationOpened,
			fmt.Sprintf("verification %s opened: %s by %s", req.ID, reason, initiatedBy), now)
	})
	if err != nil {
		return nil, false, fmt.Errorf("open verification: %w", err)
	}
	if created {
		s.notify(req)
	}
	return req, created, nil
}

// Trigger starts verification for a user on demand. An open request is
// reused; a pending one gets its PINs distributed.
func (s *Service) Trigger(ctx context.Context, userID int64, initiatedBy string) (*models.VerificationRequest, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if initiatedBy == "" {
		initiatedBy = models.InitiatedBySystem
	}

	req, err := s.openRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		var created bool
		req, created, err = s.open(ctx, userID, models.TriggerManual, initiatedBy)
		if err != nil {
			return nil, err
		}
		if !created {
			// lost a race with the scanner
			if req, err = s.openRequest(ctx, userID); err != nil || req == nil {
				return nil, errors.Join(ErrInvalidState, err)
			}
		} else {
			slog.Info("verification triggered", "user_id", userID, "verification_id", req.ID, "initiated_by", initiatedBy)
		}
	}

	if req.Status != models.StatusPending {
		return req, nil
	}
	if _, err := s.Distribute(ctx, req.ID); err != nil {
		if errors.Is(err, ErrNoContacts) {
			return s.Get(ctx, req.ID)
		}
		return nil, err
	}
	return s.Get(ctx, req.ID)
}

// openRequest returns the open request of a user after the expiry check, or
// nil.
func (s *Service) openRequest(ctx context.Context, userID int64) (*models.VerificationRequest, error) {
	req, err := s.repo.GetOpenVerificationRequest(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDue(ctx, req); err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, nil
	}
	return req, nil
}
