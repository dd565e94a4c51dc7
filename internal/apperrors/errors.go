package apperrors

import (
	"errors"
)

var (
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRoleInvalid          = errors.New("role is invalid")
	ErrStatusInvalid        = errors.New("account status is invalid")

	ErrResetTokenInvalid = errors.New("reset token is invalid")
	ErrResetTokenUsed    = errors.New("reset token is used")
	ErrResetTokenExpired = errors.New("reset token is expired")

	ErrRateLimited = errors.New("rate limit exceeded")
)
