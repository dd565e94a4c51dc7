package models

import (
	"time"

	"github.com/google/uuid"
)

// Password reset token as it stored in the database
// Raw token value is never stored, only its digest
type ResetToken struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil if token not used
}

func (t ResetToken) Used() bool {
	return t.UsedAt != nil
}

// Token is expired when now reached expires_at
func (t ResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
