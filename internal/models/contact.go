// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ContactType is the role a contact plays in the owner's estate plan.
type ContactType string

const (
	ContactBeneficiary ContactType = "beneficiary"
	ContactExecutor    ContactType = "executor"
	ContactTrusted     ContactType = "trusted"
)

// Valid reports whether t is a known contact type.
func (t ContactType) Valid() bool {
	switch t {
	case ContactBeneficiary, ContactExecutor, ContactTrusted:
		return true
	}
	return false
}

// Contact is a beneficiary, executor or trusted person of a user.
type Contact struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64       `db:"id" json:"id"`
	UserID    int64       `db:"user_id" json:"user_id"`
	Name      string      `db:"name" json:"name"`
	Email     string      `db:"email" json:"email"`
	Type      ContactType `db:"contact_type" json:"contact_type"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
