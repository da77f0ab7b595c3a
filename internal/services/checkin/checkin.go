// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package checkin owns the verification settings and the check-in ledger of
// an account owner.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid verification settings")

// Canceller ends the verification of an owner inside a check-in
// transaction.
type Canceller interface {
	CancelForCheckin(ctx context.Context, tx *repository.Repository, userID int64) (*models.VerificationRequest, error)
}

// Scheduler receives the next due times of a user.
type Scheduler interface {
	Arm(userID int64, times ...time.Time)
}

// Service manages settings and check-ins.
type Service struct {
	repo          *repository.Repository
	frequencyDays int
	graceDays     int
	now           func() time.Time
	scheduler     Scheduler
	canceller     Canceller
	onCancel      func(*models.VerificationRequest)
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithScheduler re-arms sch whenever a user's due times change.
func WithScheduler(sch Scheduler) Option {
	return func(s *Service) { s.scheduler = sch }
}

// WithCanceller lets a check-in cancel the owner's open verification.
func WithCanceller(c Canceller) Option {
	return func(s *Service) { s.canceller = c }
}

// WithCancelListener is called after a check-in cancelled an open
// verification request.
func WithCancelListener(fn func(*models.VerificationRequest)) Option {
	return func(s *Service) { s.onCancel = fn }
}

// NewService creates a Service with defaults taken from cfg.
func NewService(repo *repository.Repository, cfg *config.VerificationConfig, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		frequencyDays: cfg.DefaultFrequencyDays,
		graceDays:     cfg.DefaultGraceDays,
		now:           time.Now,
	}
	if s.frequencyDays <= 0 {
		s.frequencyDays = 30
	}
	if s.graceDays < 0 {
		s.graceDays = 7
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) defaults(userID int64, now time.Time) *models.VerificationSettings {
	return &models.VerificationSettings{
		UserID:               userID,
		CheckInFrequencyDays: s.frequencyDays,
		GracePeriodDays:      s.graceDays,
		CheckInEnabled:       true,
		NotificationChannels: models.ChannelEmail,
		UnlockMode:           models.UnlockModePin,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Provision creates default settings and the signup check-in inside tx.
func (s *Service) Provision(ctx context.Context, tx *repository.Repository, userID int64) error {
	now := s.now()
	settings, err := tx.CreateSettings(ctx, s.defaults(userID, now))
	if err != nil {
		return fmt.Errorf("create settings: %w", err)
	}
	rec := &models.CheckinRecord{
		UserID:      userID,
		CheckedInAt: now,
		NextCheckIn: now.Add(settings.Frequency()),
	}
	if err := tx.CreateCheckin(ctx, rec); err != nil {
		return fmt.Errorf("create signup check-in: %w", err)
	}
	s.arm(settings, rec)
	return nil
}

// Settings returns the settings of a user, creating the defaults and a
// first check-in on first access.
func (s *Service) Settings(ctx context.Context, userID int64) (*models.VerificationSettings, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := s.Provision(ctx, tx, userID); err != nil {
			return err
		}
		settings, err = tx.GetSettings(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// SettingsUpdate holds the fields an owner may change. Nil fields are kept.
type SettingsUpdate struct {
	CheckInFrequencyDays *int     `json:"checkInFrequencyDays"`
	GracePeriodDays      *int     `json:"gracePeriodDays"`
	CheckInEnabled       *bool    `json:"checkInEnabled"`
	NotificationChannels []string `json:"notificationChannels"`
	UnlockMode           *string  `json:"unlockMode"`
}

func (u *SettingsUpdate) apply(s *models.VerificationSettings) error {
	if u.CheckInFrequencyDays != nil {
		if *u.CheckInFrequencyDays <= 0 {
			return fmt.Errorf("%w: check-in frequency must be at least one day", ErrInvalidSettings)
		}
		s.CheckInFrequencyDays = *u.CheckInFrequencyDays
	}
	if u.GracePeriodDays != nil {
		if *u.GracePeriodDays < 0 {
			return fmt.Errorf("%w: grace period must not be negative", ErrInvalidSettings)
		}
		s.GracePeriodDays = *u.GracePeriodDays
	}
	if u.CheckInEnabled != nil {
		s.CheckInEnabled = *u.CheckInEnabled
	}
	if u.NotificationChannels != nil {
		channels := make([]string, 0, len(u.NotificationChannels))
		for _, c := range u.NotificationChannels {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != models.ChannelEmail && c != models.ChannelSMS {
				return fmt.Errorf("%w: unknown notification channel %q", ErrInvalidSettings, c)
			}
			if !slices.Contains(channels, c) {
				channels = append(channels, c)
			}
		}
		s.NotificationChannels = strings.Join(channels, ",")
	}
	if u.UnlockMode != nil {
		if *u.UnlockMode != models.UnlockModePin && *u.UnlockMode != models.UnlockModeOther {
			return fmt.Errorf("%w: unknown unlock mode %q", ErrInvalidSettings, *u.UnlockMode)
		}
		s.UnlockMode = *u.UnlockMode
	}
	return nil
}

// UpdateSettings validates and stores an owner's changes. A new frequency
// appends a ledger record with the next due date recomputed from the latest
// check-in time.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, upd SettingsUpdate) (*models.VerificationSettings, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldFrequency := settings.CheckInFrequencyDays
	if err := upd.apply(settings); err != nil {
		return nil, err
	}
	settings.UpdatedAt = s.now()

	var latest *models.CheckinRecord
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.UpdateSettings(ctx, settings); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		var err error
		latest, err = tx.GetLatestCheckin(ctx, userID)
		if err != nil {
			return err
		}
		if settings.CheckInFrequencyDays == oldFrequency {
			return nil
		}
		// Same cycle, so the reminder already sent for it still counts.
		latest = &models.CheckinRecord{
			UserID:         userID,
			CheckedInAt:    latest.CheckedInAt,
			NextCheckIn:    latest.CheckedInAt.Add(settings.Frequency()),
			Status:         latest.Status,
			ReminderSentAt: latest.ReminderSentAt,
		}
		return tx.CreateCheckin(ctx, latest)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("verification settings updated", "user_id", userID,
		"frequency_days", settings.CheckInFrequencyDays, "grace_days", settings.GracePeriodDays,
		"enabled", settings.CheckInEnabled)
	s.arm(settings, latest)
	return settings, nil
}

// CheckIn records that the owner is alive at the current time. An open
// verification request of the owner is cancelled in the same transaction.
func (s *Service) CheckIn(ctx context.Context, userID int64) (*models.CheckinRecord, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &models.CheckinRecord{
		UserID:      userID,
		CheckedInAt: now,
		NextCheckIn: now.Add(settings.Frequency()),
		Status:      models.CheckinAlive,
	}

	var cancelled *models.VerificationRequest
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateCheckin(ctx, rec); err != nil {
			return fmt.Errorf("create check-in: %w", err)
		}
		if s.canceller == nil {
			return nil
		}
		var err error
		cancelled, err = s.canceller.CancelForCheckin(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("checked in", "user_id", userID, "next_checkin", rec.NextCheckIn)
	if cancelled != nil {
		if s.onCancel != nil {
			s.onCancel(cancelled)
		}
	}
	s.arm(settings, rec)
	return rec, nil
}

// Latest returns the authoritative check-in record of a user.
func (s *Service) Latest(ctx context.Context, userID int64) (*models.CheckinRecord, error) {
	return s.repo.GetLatestCheckin(ctx, userID)
}

// History returns up to limit check-ins, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]models.CheckinRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListCheckins(ctx, userID, limit)
}

// ArmAll loads the due times of every enabled user into the scheduler.
func (s *Service) ArmAll(ctx context.Context) (int, error) {
	if s.scheduler == nil {
		return 0, nil
	}
	list, err := s.repo.ListEnabledSettings(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range list {
		latest, err := s.repo.GetLatestCheckin(ctx, list[i].UserID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		s.arm(&list[i], latest)
		n++
	}
	return n, nil
}

// DueTimes returns when a user must be looked at: when the check-in falls
// due (reminder) and just after the grace period ends (overdue).
func DueTimes(settings *models.VerificationSettings, latest *models.CheckinRecord) []time.Time {
	deadline := latest.NextCheckIn.Add(settings.Grace())
	return []time.Time{latest.NextCheckIn, deadline.Add(time.Second)}
}

func (s *Service) arm(settings *models.VerificationSettings, latest *models.CheckinRecord) {
	if s.scheduler == nil || latest == nil {
		return
	}
	if !settings.CheckInEnabled {
		s.scheduler.Arm(settings.UserID)
		return
	}
	s.scheduler.Arm(settings.UserID, DueTimes(settings, latest)...)
}
