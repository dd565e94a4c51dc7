package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

type AccountRepo struct {
	DB DBTX
}

const selectAccount = `
SELECT a.id, a.created_at, a.updated_at, a.email, a.member_id, a.full_name, r.name, s.name, a.password_hash
FROM accounts a
JOIN roles r ON r.id = a.role_id
JOIN account_statuses s ON s.id = a.status_id
`

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, email, member_id, full_name, password_hash, role_id, status_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at
`

func (r *AccountRepo) CreateAccount(ctx context.Context, params repository.CreateAccountParams) (models.Account, error) {
	account := models.Account{
		ID:             uuid.New(),
		Email:          params.Email,
		MemberID:       params.MemberID,
		FullName:       params.FullName,
		Role:           params.Role,
		Status:         params.Status,
		HashedPassword: params.HashedPassword,
	}

	roleID, err := r.lookupID(ctx, `SELECT id FROM roles WHERE name = $1`, params.Role, apperrors.ErrRoleInvalid)
	if err != nil {
		return account, err
	}
	statusID, err := r.lookupID(ctx, `SELECT id FROM account_statuses WHERE name = $1`, params.Status, apperrors.ErrStatusInvalid)
	if err != nil {
		return account, err
	}

	err = r.DB.QueryRow(ctx, createAccount,
		account.ID, account.Email, account.MemberID, account.FullName, account.HashedPassword, roleID, statusID,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrAccountAlreadyExists
		}

		return account, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

// Resolve lookup table name to its id
func (r *AccountRepo) lookupID(ctx context.Context, query string, name string, notFound error) (int16, error) {
	var id int16
	err := r.DB.QueryRow(ctx, query, name).Scan(&id)

	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
		return id, notFound
	default:
		return id, fmt.Errorf("db error: %w", err)
	}
}

const getAccountByID = selectAccount + `WHERE a.id = $1`

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	return collectAccount(rows)
}

// Email match wins if identifier equals email of one account and member id of another
const getAccountByIdentifier = selectAccount + `
WHERE LOWER(a.email) = LOWER($1) OR a.member_id = $1
ORDER BY (LOWER(a.email) = LOWER($1)) DESC
LIMIT 1
`

func (r *AccountRepo) GetAccountByIdentifier(ctx context.Context, identifier string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByIdentifier, identifier)
	return collectAccount(rows)
}

const setPasswordHash = `-- name: SetPasswordHash
UPDATE accounts
SET password_hash = $2, updated_at = NOW()
WHERE id = $1
`

func (r *AccountRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, setPasswordHash, id, hashedPassword)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}

	return nil
}

func collectAccount(rows pgx.Rows) (models.Account, error) {
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.Email, &a.MemberID, &a.FullName, &a.Role, &a.Status, &a.HashedPassword)
	return a, err
}
