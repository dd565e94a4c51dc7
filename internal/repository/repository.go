package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/models"
)

type CreateAccountParams struct {
	Email          string
	MemberID       string
	FullName       string
	Role           string
	Status         string
	HashedPassword string
}

// Account repository interface
type AccountRepo interface {
	// Create account
	// If email or member id is taken already has to return apperrors.ErrAccountAlreadyExists
	// Unknown role or status has to return apperrors.ErrRoleInvalid or apperrors.ErrStatusInvalid
	CreateAccount(ctx context.Context, params CreateAccountParams) (models.Account, error)

	// Get account by id or by any of its identifiers (email or member id)
	// If account not found must return apperrors.ErrAccountNotFound
	GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountByIdentifier(ctx context.Context, identifier string) (models.Account, error)

	// Overwrite stored password hash unconditionally
	// If account not found must return apperrors.ErrAccountNotFound
	SetPasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error
}

// Reset token repository interface
type ResetTokenRepo interface {
	// Save new token
	Save(ctx context.Context, token models.ResetToken) (models.ResetToken, error)

	// Get token by its digest even it expired or used already
	// If not found must return apperrors.ErrResetTokenInvalid
	GetByHash(ctx context.Context, tokenHash string) (models.ResetToken, error)

	// Atomically mark token used if it is not used and not expired at 'now'
	// Has to return apperrors.ErrResetTokenInvalid, apperrors.ErrResetTokenUsed or apperrors.ErrResetTokenExpired
	// when token can't be used. Never overwrites existing 'used_at'
	Use(ctx context.Context, tokenHash string, now time.Time) (models.ResetToken, error)

	// Delete tokens expired before the moment, return count of deleted tokens
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Storage interface {
	Account() AccountRepo
	ResetToken() ResetTokenRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
