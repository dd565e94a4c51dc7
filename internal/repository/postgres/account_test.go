package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/testutil"
)

func testAccountParams() repository.CreateAccountParams {
	return repository.CreateAccountParams{
		Email:          "alice@example.com",
		MemberID:       "M-0001",
		FullName:       "Alice Liddell",
		Role:           models.RoleStudent,
		Status:         models.StatusActive,
		HashedPassword: "hashed-password",
	}
}

func Test_AccountRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create account ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}

			account, err := repo.CreateAccount(t.Context(), testAccountParams())

			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, account.ID)
			require.Equal(t, "alice@example.com", account.Email)
			require.Equal(t, "M-0001", account.MemberID)
			require.Equal(t, models.RoleStudent, account.Role)
			require.Equal(t, models.StatusActive, account.Status)
			require.False(t, account.CreatedAt.IsZero(), "created_at must be set by db")
		})
	})

	t.Run("create account with same email fail", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}
			_, err := repo.CreateAccount(t.Context(), testAccountParams())
			require.NoError(t, err)

			params := testAccountParams()
			params.Email = "ALICE@example.com"
			params.MemberID = "M-0002"
			_, err = repo.CreateAccount(t.Context(), params)

			require.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists, "email must be unique case insensitive")
		})
	})

	t.Run("create account with same member id fail", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}
			_, err := repo.CreateAccount(t.Context(), testAccountParams())
			require.NoError(t, err)

			params := testAccountParams()
			params.Email = "bob@example.com"
			_, err = repo.CreateAccount(t.Context(), params)

			require.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists)
		})
	})

	t.Run("create account with unknown role or status fail", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}

			params := testAccountParams()
			params.Role = "janitor"
			_, err := repo.CreateAccount(t.Context(), params)
			require.ErrorIs(t, err, apperrors.ErrRoleInvalid)

			params = testAccountParams()
			params.Status = "sleeping"
			_, err = repo.CreateAccount(t.Context(), params)
			require.ErrorIs(t, err, apperrors.ErrStatusInvalid)
		})
	})

	t.Run("get account by identifier", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}
			created, err := repo.CreateAccount(t.Context(), testAccountParams())
			require.NoError(t, err)

			for _, identifier := range []string{"alice@example.com", "Alice@Example.COM", "M-0001"} {
				got, err := repo.GetAccountByIdentifier(t.Context(), identifier)

				require.NoError(t, err, "account must be found by %q", identifier)
				assert.Equal(t, created.ID, got.ID)
				assert.Equal(t, models.RoleStudent, got.Role)
				assert.Equal(t, models.StatusActive, got.Status)
				assert.Equal(t, "hashed-password", got.HashedPassword)
			}
		})
	})

	t.Run("get account by identifier prefer email", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}
			byMember, err := repo.CreateAccount(t.Context(), repository.CreateAccountParams{
				Email: "first@example.com", MemberID: "second@example.com", FullName: "First",
				Role: models.RoleTeacher, Status: models.StatusActive, HashedPassword: "h",
			})
			require.NoError(t, err)
			byEmail, err := repo.CreateAccount(t.Context(), repository.CreateAccountParams{
				Email: "second@example.com", MemberID: "M-2", FullName: "Second",
				Role: models.RoleTeacher, Status: models.StatusActive, HashedPassword: "h",
			})
			require.NoError(t, err)

			got, err := repo.GetAccountByIdentifier(t.Context(), "second@example.com")

			require.NoError(t, err)
			require.Equal(t, byEmail.ID, got.ID, "email has to win over member id")
			require.NotEqual(t, byMember.ID, got.ID)
		})
	})

	t.Run("get not existed account", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}

			_, err := repo.GetAccountByIdentifier(t.Context(), "ghost@example.com")
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)

			_, err = repo.GetAccountByID(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("set password hash", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}
			created, err := repo.CreateAccount(t.Context(), testAccountParams())
			require.NoError(t, err)

			err = repo.SetPasswordHash(t.Context(), created.ID, "new-hash")
			require.NoError(t, err)

			got, err := repo.GetAccountByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.Equal(t, "new-hash", got.HashedPassword)
		})
	})

	t.Run("set password hash for not existed account", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AccountRepo{DB: tx}

			err := repo.SetPasswordHash(t.Context(), uuid.New(), "new-hash")

			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})
}
