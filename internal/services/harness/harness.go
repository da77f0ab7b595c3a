// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package harness seeds and drives demo data for trying the executor flow
// end to end. It is only mounted when enabled in the configuration.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/verification"
)

// Domain is the email domain of every harness-created address.
const Domain = "willtank.test"

const (
	ActionSetup   = "setup_test_data"
	ActionTrigger = "trigger_death_verification"
	ActionStatus  = "get_verification_status"
	ActionCleanup = "cleanup_test_data"
)

var (
	ErrUnknownAction = errors.New("unknown test action")
	ErrNotTestUser   = errors.New("user was not created by the test harness")
	ErrNoRequest     = errors.New("no verification request for this user")
)

// Harness operates on test users only.
type Harness struct {
	repo         *repository.Repository
	verification *verification.Service
	now          func() time.Time
}

// New creates a Harness.
func New(repo *repository.Repository, v *verification.Service, now func() time.Time) *Harness {
	if now == nil {
		now = time.Now
	}
	return &Harness{repo: repo, verification: v, now: now}
}

// Result is the JSON answer of every action. Fields not relevant to the
// action stay empty.
type Result struct {
	Action       string                      `json:"action"`
	UserID       int64                       `json:"userId,omitempty"`
	ContactIDs   []int64                     `json:"contactIds,omitempty"`
	Verification *models.VerificationRequest `json:"verification,omitempty"`
	Status       *verification.StatusView    `json:"status,omitempty"`
	PortalPath   string                      `json:"portalPath,omitempty"`
}

// Run dispatches one action.
func (h *Harness) Run(ctx context.Context, action string, userID int64) (*Result, error) {
	switch action {
	case ActionSetup:
		return h.Setup(ctx)
	case ActionTrigger:
		return h.Trigger(ctx, userID)
	case ActionStatus:
		return h.Status(ctx, userID)
	case ActionCleanup:
		return h.Cleanup(ctx, userID)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// Setup creates a user who missed every check-in, with one contact of each
// type and a will.
func (h *Harness) Setup(ctx context.Context) (*Result, error) {
	now := h.now()
	tag := uuid.NewString()[:8]
	res := &Result{Action: ActionSetup}

	err := h.repo.WithTx(ctx, func(tx *repository.Repository) error {
		user, err := tx.CreateUser(ctx, fmt.Sprintf("owner-%s@%s", tag, Domain), "Test Owner "+tag, "!")
		if err != nil {
			return err
		}
		res.UserID = user.ID

		settings, err := tx.CreateSettings(ctx, &models.VerificationSettings{
			UserID:               user.ID,
			CheckInFrequencyDays: 30,
			GracePeriodDays:      7,
			CheckInEnabled:       true,
			NotificationChannels: models.ChannelEmail,
			UnlockMode:           models.UnlockModePin,
			CreatedAt:            now,
			UpdatedAt:            now,
		})
		if err != nil {
			return err
		}
		last := now.Add(-settings.Frequency() - settings.Grace() - 24*time.Hour)
		if err := tx.CreateCheckin(ctx, &models.CheckinRecord{
			UserID:      user.ID,
			CheckedInAt: last,
			NextCheckIn: last.Add(settings.Frequency()),
			Status:      models.CheckinOverdue,
		}); err != nil {
			return err
		}

		for _, typ := range []models.ContactType{models.ContactExecutor, models.ContactBeneficiary, models.ContactTrusted} {
			c := &models.Contact{
				UserID: user.ID,
				Name:   fmt.Sprintf("Test %s", typ),
				Email:  fmt.Sprintf("%s-%s@%s", typ, tag, Domain),
				Type:   typ,
			}
			if err := tx.CreateContact(ctx, c); err != nil {
				return err
			}
			res.ContactIDs = append(res.ContactIDs, c.ID)
		}

		return tx.UpsertWill(ctx, &models.Will{
			UserID:    user.ID,
			Title:     "Test Will",
			Content:   "This will was created by the test harness.",
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("setup test data: %w", err)
	}
	slog.Info("test data created", "user_id", res.UserID)
	return res, nil
}

func (h *Harness) testUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := h.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, verification.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(user.Email, "@"+Domain) {
		return nil, ErrNotTestUser
	}
	return user, nil
}

// Trigger starts verification for a test user right away.
func (h *Harness) Trigger(ctx context.Context, userID int64) (*Result, error) {
	if _, err := h.testUser(ctx, userID); err != nil {
		return nil, err
	}
	req, err := h.verification.Trigger(ctx, userID, "test_harness")
	if err != nil {
		return nil, err
	}
	return &Result{
		Action:       ActionTrigger,
		UserID:       userID,
		Verification: req,
		PortalPath:   "/verify/" + req.ID,
	}, nil
}

// Status reports the latest verification of a test user.
func (h *Harness) Status(ctx context.Context, userID int64) (*Result, error) {
	if _, err := h.testUser(ctx, userID); err != nil {
		return nil, err
	}
	latest, err := h.repo.GetLatestVerificationRequest(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoRequest
	}
	if err != nil {
		return nil, err
	}
	req, err := h.verification.Get(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	status, err := h.verification.Status(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Action:       ActionStatus,
		UserID:       userID,
		Verification: req,
		Status:       status,
		PortalPath:   "/verify/" + req.ID,
	}, nil
}

// Cleanup removes a test user and everything that belongs to it.
func (h *Harness) Cleanup(ctx context.Context, userID int64) (*Result, error) {
	if _, err := h.testUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := h.repo.DeleteUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("cleanup test data: %w", err)
	}
	slog.Info("test data removed", "user_id", userID)
	return &Result{Action: ActionCleanup, UserID: userID}, nil
}
