// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/willtank/willtank/internal/models"
)

// CreateCheckin appends a check-in record and sets its ID.
func (r *Repository) CreateCheckin(ctx context.Context, rec *models.CheckinRecord) error {
	if rec.Status == "" {
		rec.Status = models.CheckinAlive
	}
	var sent any
	if rec.ReminderSentAt != nil {
		sent = rec.ReminderSentAt.UTC()
	}
	return r.q.GetContext(ctx, &rec.ID,
		`INSERT INTO checkins (user_id, checked_in_at, next_checkin, status, reminder_sent_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		rec.UserID, rec.CheckedInAt.UTC(), rec.NextCheckIn.UTC(), rec.Status, sent)
}

// GetLatestCheckin returns the authoritative (most recent) check-in record.
func (r *Repository) GetLatestCheckin(ctx context.Context, userID int64) (*models.CheckinRecord, error) {
	var rec models.CheckinRecord
	err := r.q.GetContext(ctx, &rec,
		`SELECT * FROM checkins WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &rec, nil
}

// ListCheckins returns the newest check-in records first.
func (r *Repository) ListCheckins(ctx context.Context, userID int64, limit int) ([]models.CheckinRecord, error) {
	var list []models.CheckinRecord
	err := r.q.SelectContext(ctx, &list,
		`SELECT * FROM checkins WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// MarkCheckinOverdue flags a check-in record as overdue. A non-nil
// reminderSentAt records that the reminder for this cycle went out.
func (r *Repository) MarkCheckinOverdue(ctx context.Context, id int64, reminderSentAt *time.Time) error {
	var sent any
	if reminderSentAt != nil {
		sent = reminderSentAt.UTC()
	}
	return wrapError(expectOne(r.q.ExecContext(ctx,
		`UPDATE checkins SET status = ?, reminder_sent_at = COALESCE(?, reminder_sent_at) WHERE id = ?`,
		models.CheckinOverdue, sent, id)))
}
