// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/willtank/willtank/internal/models"
)

// GetSettings returns the verification settings of a user.
func (r *Repository) GetSettings(ctx context.Context, userID int64) (*models.VerificationSettings, error) {
	var s models.VerificationSettings
	if err := r.q.GetContext(ctx, &s, `SELECT * FROM verification_settings WHERE user_id = ?`, userID); err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// CreateSettings inserts settings unless the user already has a record and
// returns whichever record is stored afterwards.
func (r *Repository) CreateSettings(ctx context.Context, s *models.VerificationSettings) (*models.VerificationSettings, error) {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO verification_settings
			(user_id, checkin_frequency_days, grace_period_days, checkin_enabled, notification_channels, unlock_mode, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		s.UserID, s.CheckInFrequencyDays, s.GracePeriodDays, s.CheckInEnabled,
		s.NotificationChannels, s.UnlockMode, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, s.UserID)
}

// UpdateSettings overwrites the settings of s.UserID.
func (r *Repository) UpdateSettings(ctx context.Context, s *models.VerificationSettings) error {
	return wrapError(expectOne(r.q.ExecContext(ctx,
		`UPDATE verification_settings
		 SET checkin_frequency_days = ?, grace_period_days = ?, checkin_enabled = ?,
		     notification_channels = ?, unlock_mode = ?, updated_at = ?
		 WHERE user_id = ?`,
		s.CheckInFrequencyDays, s.GracePeriodDays, s.CheckInEnabled,
		s.NotificationChannels, s.UnlockMode, s.UpdatedAt.UTC(), s.UserID)))
}

// ListEnabledSettings returns the settings of every user with check-ins on.
func (r *Repository) ListEnabledSettings(ctx context.Context) ([]models.VerificationSettings, error) {
	var list []models.VerificationSettings
	err := r.q.SelectContext(ctx, &list,
		`SELECT * FROM verification_settings WHERE checkin_enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return list, nil
}
