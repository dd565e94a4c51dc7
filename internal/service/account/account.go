package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
)

type RegisterParams struct {
	Email    string
	MemberID string
	FullName string
	Password string
	Role     string
	Status   string
}

// Account service: registration, login and credentials management
type AccountService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage

	// Hash compared on unknown identifiers so login of missing account takes as long as a real one
	dummyHash string
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) (*AccountService, error) {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("can't prepare dummy hash. Err: %w", err)
	}

	return &AccountService{
		hasher:    hasher,
		storage:   storage,
		dummyHash: dummyHash,
	}, nil
}

// Return service copy that works over provided storage (usually transaction one)
func (s *AccountService) WithStorage(storage repository.Storage) *AccountService {
	return &AccountService{
		hasher:    s.hasher,
		storage:   storage,
		dummyHash: s.dummyHash,
	}
}

func (s *AccountService) Register(ctx context.Context, params RegisterParams) (models.Account, error) {
	var account models.Account

	if params.Password == "" {
		return account, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return account, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	account, err = s.storage.Account().CreateAccount(ctx, repository.CreateAccountParams{
		Email:          strings.TrimSpace(params.Email),
		MemberID:       strings.TrimSpace(params.MemberID),
		FullName:       strings.TrimSpace(params.FullName),
		Role:           params.Role,
		Status:         params.Status,
		HashedPassword: hash,
	})
	if err != nil {
		return account, fmt.Errorf("can't create account. Err: %w", err)
	}

	return account, nil
}

// Authenticate account by identifier and password
// Unknown identifier and wrong password are indistinguishable for caller
func (s *AccountService) Login(ctx context.Context, identifier string, password string) (models.Account, error) {
	account, err := s.FindByIdentifier(ctx, identifier)

	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.Account{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.Account{}, err
	}

	if !s.VerifySecret(account, password) {
		return models.Account{}, apperrors.ErrInvalidCredentials
	}

	return account, nil
}

// Find account by email (case insensitive) or member id
func (s *AccountService) FindByIdentifier(ctx context.Context, identifier string) (models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.Account{}, apperrors.ErrAccountNotFound
	}

	account, err := s.storage.Account().GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		return account, fmt.Errorf("can't find account. Err: %w", err)
	}

	return account, nil
}

func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	account, err := s.storage.Account().GetAccountByID(ctx, id)
	if err != nil {
		return account, fmt.Errorf("can't get account. Err: %w", err)
	}

	return account, nil
}

// Hash new secret and overwrite stored one unconditionally
func (s *AccountService) ReplaceSecret(ctx context.Context, accountID uuid.UUID, newSecret string) error {
	if newSecret == "" {
		return errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return fmt.Errorf("can't use this as password. Err: %w", err)
	}

	err = s.storage.Account().SetPasswordHash(ctx, accountID, hash)
	if err != nil {
		return fmt.Errorf("can't replace password. Err: %w", err)
	}

	return nil
}

func (s *AccountService) VerifySecret(account models.Account, supplied string) bool {
	return s.hasher.Compare(account.HashedPassword, supplied) == nil
}
