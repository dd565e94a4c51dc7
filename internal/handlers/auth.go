package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/service/account"
)

func handleRegister(accountService accountService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		MemberID string `json:"member_id" validate:"required,max=64"`
		FullName string `json:"full_name" validate:"required,max=200"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role" validate:"required"`
		Status   string `json:"status" validate:"required"`
	}
	type response struct {
		Message string          `json:"message"`
		Account accountResponse `json:"account"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		created, err := accountService.Register(r.Context(), account.RegisterParams{
			Email:    data.Email,
			MemberID: data.MemberID,
			FullName: data.FullName,
			Password: data.Password,
			Role:     data.Role,
			Status:   data.Status,
		})
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAccountAlreadyExists):
				render.ServiceError(w, "Account already exists", http.StatusConflict)
			case errors.Is(err, apperrors.ErrRoleInvalid):
				render.ServiceError(w, "Invalid role", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrStatusInvalid):
				render.ServiceError(w, "Invalid status", http.StatusBadRequest)
			default:
				logger.Error("Failed to register account", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		logger.Info("Account registered", "account_id", created.ID)
		render.JSONWithStatus(w, response{Message: "Account created", Account: newAccountResponse(created)}, http.StatusCreated)
	})
}

func handleLogin(accountService accountService, tokenManager tokenManager, logger logger.Logger) http.Handler {
	type request struct {
		Identifier string `json:"identifier" validate:"required_without=Email"`
		Email      string `json:"email"`
		Password   string `json:"password" validate:"required"`
	}
	type response struct {
		Message string          `json:"message"`
		Account accountResponse `json:"account"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		identifier := data.Identifier
		if identifier == "" {
			identifier = data.Email
		}

		acc, err := accountService.Login(r.Context(), identifier, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				render.ServiceError(w, "Invalid credentials", http.StatusBadRequest)
			default:
				logger.Error("Failed to login", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		access, err := tokenManager.GenerateAccess(acc)
		if err != nil {
			logger.Error("Failed to issue access token", "account_id", acc.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Authorization", "Bearer "+access.Value)
		render.JSON(w, response{Message: "Login successful", Account: newAccountResponse(acc)})
	})
}
