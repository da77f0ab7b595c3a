// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification runs the death verification workflow: overdue
// detection, PIN distribution and the executor unlock.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/access"
	"codeberg.org/willtank/willtank/internal/services/email"
)

var (
	ErrNotFound     = errors.New("verification request not found")
	ErrExpired      = errors.New("verification request has expired")
	ErrInvalidState = errors.New("verification request is not in the required state")
	ErrNoContacts   = errors.New("no contacts found")
	ErrPinCount     = errors.New("wrong number of PINs")
	ErrUserNotFound = errors.New("user not found")
	ErrPinNotFound  = errors.New("no PIN issued to this contact")
	ErrDelivery     = errors.New("email delivery failed")
)

const defaultRequestTTL = 7 * 24 * time.Hour

var openStatuses = []models.VerificationStatus{
	models.StatusPending, models.StatusPinsSent, models.StatusVerified, models.StatusCompleted,
}

// Listener is told about every status change of a request.
type Listener func(req *models.VerificationRequest)

// Service coordinates the verification workflow.
type Service struct {
	repo       *repository.Repository
	mailer     *email.Service
	gate       *access.Gate
	requestTTL time.Duration
	distribute bool
	sendLimit  int
	now        func() time.Time
	listener   Listener
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithListener registers fn for status changes.
func WithListener(fn Listener) Option {
	return func(s *Service) { s.listener = fn }
}

// NewService creates a verification Service.
func NewService(
	repo *repository.Repository, mailer *email.Service, gate *access.Gate, cfg *config.VerificationConfig, opts ...Option,
) *Service {
	s := &Service{
		repo:       repo,
		mailer:     mailer,
		gate:       gate,
		requestTTL: cfg.RequestTTL,
		distribute: cfg.DistributeOnDetect,
		sendLimit:  8,
		now:        time.Now,
	}
	if s.requestTTL <= 0 {
		s.requestTTL = defaultRequestTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) notify(req *models.VerificationRequest) {
	if s.listener != nil && req != nil {
		s.listener(req)
	}
}

// Get returns a request. A non-terminal request past its deadline is moved
// to expired before it is returned.
func (s *Service) Get(ctx context.Context, id string) (*models.VerificationRequest, error) {
	req, err := s.repo.GetVerificationRequest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDue(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// expireIfDue updates req in place when it expired.
func (s *Service) expireIfDue(ctx context.Context, req *models.VerificationRequest) error {
	now := s.now()
	if req.Status.Terminal() || !req.Expired(now) {
		return nil
	}
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.TransitionVerificationRequest(ctx, req.ID, req.Status,
			models.StatusExpired, "expired before unlock", now); err != nil {
			return err
		}
		return tx.CreateAuditLog(ctx, req.UserID, models.AuditVerificationExpired,
			fmt.Sprintf("verification %s expired in status %s", req.ID, req.Status), now)
	})
	if errors.Is(err, repository.ErrConflict) {
		// someone else moved it first
		fresh, err := s.repo.GetVerificationRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		*req = *fresh
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire verification: %w", err)
	}
	slog.Info("verification expired", "verification_id", req.ID, "user_id", req.UserID, "status", req.Status)
	req.Status = models.StatusExpired
	req.UpdatedAt = now
	s.notify(req)
	return nil
}

// ExpireDue marks every open request past its deadline as expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	list, err := s.repo.ListVerificationRequestsByStatus(ctx, openStatuses...)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range list {
		if !list[i].Expired(s.now()) {
			continue
		}
		if err := s.expireIfDue(ctx, &list[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// CancelForCheckin ends verification for an owner who just checked in. It
// runs inside the caller's transaction: an open request is cancelled and
// live access to an already unlocked will is revoked. It returns the
// cancelled request, or nil.
func (s *Service) CancelForCheckin(
	ctx context.Context, tx *repository.Repository, userID int64,
) (*models.VerificationRequest, error) {
	last, err := tx.GetLatestVerificationRequest(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if last.Status == models.StatusWillUnlocked {
		n, err := tx.RevokeAccessSessions(ctx, last.ID, now)
		if err != nil || n == 0 {
			return nil, err
		}
		slog.Info("document access revoked by check-in", "verification_id", last.ID, "user_id", userID, "sessions", n)
		return nil, tx.CreateAuditLog(ctx, userID, models.AuditAccessRevoked,
			fmt.Sprintf("document access for verification %s revoked by check-in", last.ID), now)
	}
	if last.Status.Terminal() {
		return nil, nil
	}

	const reason = "owner checked in"
	if err := tx.TransitionVerificationRequest(ctx, last.ID, last.Status, models.StatusCancelled, reason, now); err != nil {
		return nil, fmt.Errorf("cancel verification: %w", err)
	}
	if err := tx.CreateAuditLog(ctx, userID, models.AuditVerificationCancelled,
		fmt.Sprintf("verification %s cancelled: %s", last.ID, reason), now); err != nil {
		return nil, err
	}
	slog.Info("verification cancelled", "verification_id", last.ID, "user_id", userID, "reason", reason)
	last.Status = models.StatusCancelled
	last.VerificationResult = reason
	last.UpdatedAt = now
	return last, nil
}

// StatusView is what the unlock portal shows before the PINs are entered.
type StatusView struct {
	PinsRequired int                       `json:"pins_required"`
	PinsReceived int                       `json:"pins_received"`
	Status       models.VerificationStatus `json:"status"`
	ExpiresAt    time.Time                 `json:"expires_at"`
	UserName     string                    `json:"user_name"`
	ExecutorName string                    `json:"executor_name"`
}

// Status summarises a request for the executor.
func (s *Service) Status(ctx context.Context, id string) (*StatusView, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	pins, err := s.repo.ListPins(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		PinsRequired: len(pins),
		Status:       req.Status,
		ExpiresAt:    req.ExpiresAt,
		UserName:     user.DisplayName(),
	}
	for _, p := range pins {
		if p.SentAt != nil {
			view.PinsReceived++
		}
	}
	executor, err := s.repo.GetPrimaryExecutor(ctx, req.UserID)
	switch {
	case err == nil:
		view.ExecutorName = executor.Name
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return view, nil
}
