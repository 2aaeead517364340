package domain

import (
	"time"

	"github.com/google/uuid"
)

type PasswordResetStatus string

const (
	PasswordResetPending  PasswordResetStatus = "pending"
	PasswordResetVerified PasswordResetStatus = "verified"
	PasswordResetConsumed PasswordResetStatus = "consumed"
)

func (s PasswordResetStatus) CanTransitionTo(next PasswordResetStatus) bool {
	switch s {
	case PasswordResetPending:
		return next == PasswordResetVerified
	case PasswordResetVerified:
		return next == PasswordResetConsumed
	default:
		return false
	}
}

// PasswordResetAttempt records one phone-verified password reset, from code sent to password changed.
type PasswordResetAttempt struct {
	ID         uuid.UUID
	Phone      string
	UserID     string
	Status     PasswordResetStatus
	Attempts   int
	CreatedAt  time.Time
	VerifiedAt *time.Time
}
