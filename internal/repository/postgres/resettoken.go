package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

type ResetTokenRepo struct {
	DB DBTX
}

const saveResetToken = `-- name: SaveResetToken
INSERT INTO reset_tokens (id, account_id, token_hash, created_at, expires_at, used_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, account_id, token_hash, created_at, expires_at, used_at
`

func (r *ResetTokenRepo) Save(ctx context.Context, token models.ResetToken) (models.ResetToken, error) {
	rows, _ := r.DB.Query(ctx, saveResetToken, token.ID, token.AccountID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt)
	saved, err := pgx.CollectOneRow(rows, rowToResetToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getResetTokenByHash = `-- name: GetResetTokenByHash
SELECT id, account_id, token_hash, created_at, expires_at, used_at
FROM reset_tokens
WHERE token_hash = $1
`

// Get token
// It should return result even it expired or used already
func (r *ResetTokenRepo) GetByHash(ctx context.Context, tokenHash string) (models.ResetToken, error) {
	rows, _ := r.DB.Query(ctx, getResetTokenByHash, tokenHash)
	token, err := pgx.CollectOneRow(rows, rowToResetToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenInvalid)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

// Concurrent updates of the same row wait for each other, so only one of them sees 'used_at IS NULL'
const useResetToken = `-- name: UseResetToken
UPDATE reset_tokens
SET used_at = $2
WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
RETURNING id, account_id, token_hash, created_at, expires_at, used_at
`

// Mark token used if it usable at 'now'
// When token can't be used the reason is read back to return the exact error
func (r *ResetTokenRepo) Use(ctx context.Context, tokenHash string, now time.Time) (models.ResetToken, error) {
	rows, _ := r.DB.Query(ctx, useResetToken, tokenHash, now)
	token, err := pgx.CollectOneRow(rows, rowToResetToken)

	switch {
	case err == nil:
		return token, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("db error: %w", err)
	}

	token, err = r.GetByHash(ctx, tokenHash)
	switch {
	case err != nil:
		return token, err
	case token.Used():
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenUsed)
	case token.Expired(now):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenExpired)
	default:
		return token, fmt.Errorf("repo error: token state changed concurrently: %w", apperrors.ErrResetTokenInvalid)
	}
}

const deleteExpiredResetTokens = `-- name: DeleteExpiredResetTokens
DELETE FROM reset_tokens
WHERE expires_at < $1
`

func (r *ResetTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredResetTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToResetToken(row pgx.CollectableRow) (models.ResetToken, error) {
	var t models.ResetToken
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	return t, err
}
