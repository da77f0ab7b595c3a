// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Unlock modes.
const (
	UnlockModePin   = "pin"
	UnlockModeOther = "other"
)

// VerificationSettings is the per-user check-in configuration.
type VerificationSettings struct { //nolint:govet // fieldalignment: readability over optimization
	UserID               int64     `db:"user_id" json:"-"`
	CheckInFrequencyDays int       `db:"checkin_frequency_days" json:"checkInFrequencyDays"`
	GracePeriodDays      int       `db:"grace_period_days" json:"gracePeriodDays"`
	CheckInEnabled       bool      `db:"checkin_enabled" json:"checkInEnabled"`
	NotificationChannels string    `db:"notification_channels" json:"-"` // comma-separated
	UnlockMode           string    `db:"unlock_mode" json:"unlockMode"`
	CreatedAt            time.Time `db:"created_at" json:"-"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// Channels returns the notification preferences as a set-like slice.
func (s *VerificationSettings) Channels() []string {
	if s.NotificationChannels == "" {
		return nil
	}
	return strings.Split(s.NotificationChannels, ",")
}

// HasChannel reports whether the given channel is enabled.
func (s *VerificationSettings) HasChannel(channel string) bool {
	for _, c := range s.Channels() {
		if c == channel {
			return true
		}
	}
	return false
}

// Frequency returns the check-in interval as a duration.
func (s *VerificationSettings) Frequency() time.Duration {
	return time.Duration(s.CheckInFrequencyDays) * 24 * time.Hour
}

// Grace returns the grace period as a duration.
func (s *VerificationSettings) Grace() time.Duration {
	return time.Duration(s.GracePeriodDays) * 24 * time.Hour
}

// Check-in statuses.
const (
	CheckinAlive   = "alive"
	CheckinOverdue = "overdue"
)

// CheckinRecord is one entry of the append-style check-in ledger. The
// latest record per user is authoritative.
type CheckinRecord struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"userId"`
	CheckedInAt    time.Time  `db:"checked_in_at" json:"checkedInAt"`
	NextCheckIn    time.Time  `db:"next_checkin" json:"nextCheckIn"`
	Status         string     `db:"status" json:"status"`
	ReminderSentAt *time.Time `db:"reminder_sent_at" json:"reminderSentAt,omitempty"`
}

// VerificationStatus is the lifecycle state of a verification request.
type VerificationStatus string

const (
	StatusPending      VerificationStatus = "pending"
	StatusPinsSent     VerificationStatus = "pins_sent"
	StatusVerified     VerificationStatus = "verified"
	StatusCompleted    VerificationStatus = "completed"
	StatusWillUnlocked VerificationStatus = "will_unlocked"
	StatusFailed       VerificationStatus = "failed"
	StatusExpired      VerificationStatus = "expired"
	StatusCancelled    VerificationStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s VerificationStatus) Terminal() bool {
	switch s {
	case StatusWillUnlocked, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Trigger reasons and initiators.
const (
	TriggerMissedCheckins = "missed_checkins"
	TriggerManual         = "manual"
	InitiatedBySystem     = "system"
)

// VerificationRequest tracks one overdue episode from detection to unlock.
type VerificationRequest struct { //nolint:govet // fieldalignment: readability over optimization
	ID                 string             `db:"id" json:"id"`
	UserID             int64              `db:"user_id" json:"userId"`
	Status             VerificationStatus `db:"status" json:"status"`
	TriggerReason      string             `db:"trigger_reason" json:"triggerReason"`
	InitiatedBy        string             `db:"initiated_by" json:"initiatedBy"`
	ExpiresAt          time.Time          `db:"expires_at" json:"expiresAt"`
	CompletedAt        *time.Time         `db:"completed_at" json:"completedAt,omitempty"`
	VerificationResult string             `db:"verification_result" json:"verificationResult"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether the request has outlived its deadline.
func (r *VerificationRequest) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// VerificationPin is the PIN issued to one contact for one request.
type VerificationPin struct { //nolint:govet // fieldalignment: readability over optimization
	ID                    int64       `db:"id" json:"id"`
	VerificationRequestID string      `db:"verification_request_id" json:"verificationRequestId"`
	ContactID             int64       `db:"contact_id" json:"contactId"`
	ContactType           ContactType `db:"contact_type" json:"contactType"`
	ContactName           string      `db:"contact_name" json:"contactName"`
	ContactEmail          string      `db:"contact_email" json:"-"`
	PinCode               string      `db:"pin_code" json:"-"`
	Used                  bool        `db:"used" json:"used"`
	SentAt                *time.Time  `db:"sent_at" json:"sentAt,omitempty"`
	ExpiresAt             time.Time   `db:"expires_at" json:"expiresAt"`
	CreatedAt             time.Time   `db:"created_at" json:"createdAt"`
}

// DocumentAccessSession is the time-boxed grant that lets an executor read
// the unlocked documents.
type DocumentAccessSession struct { //nolint:govet // fieldalignment: readability over optimization
	ID                    int64      `db:"id" json:"-"`
	VerificationRequestID string     `db:"verification_request_id" json:"verificationRequestId"`
	TokenHash             string     `db:"token_hash" json:"-"`
	GrantedAt             time.Time  `db:"granted_at" json:"grantedAt"`
	ExpiresAt             time.Time  `db:"expires_at" json:"expiresAt"`
	RevokedAt             *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
}

// Active reports whether the session still grants access at now.
func (s *DocumentAccessSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
