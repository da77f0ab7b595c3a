// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Audit actions.
const (
	AuditVerificationOpened    = "verification_opened"
	AuditVerificationFailed    = "verification_failed"
	AuditVerificationCancelled = "verification_cancelled"
	AuditVerificationExpired   = "verification_expired"
	AuditPinsSent              = "pins_sent"
	AuditVerified              = "verification_verified"
	AuditWillUnlocked          = "will_unlocked"
	AuditDocumentsDownloaded   = "documents_downloaded"
	AuditAccessRevoked         = "access_revoked"
)

// AuditLog is an append-only record of a verification state change.
type AuditLog struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
