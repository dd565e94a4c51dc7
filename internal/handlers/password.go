package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/logger"
)

const forgotPasswordAck = "If the account exists, a reset link has been sent to its email"

type messageResponse struct {
	Message string `json:"message"`
}

// Always answer with the same acknowledgement, so response never tells whether account exists
func handleForgotPassword(resetService resetService, logger logger.Logger) http.Handler {
	type request struct {
		Identifier string `json:"identifier" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := resetService.RequestReset(r.Context(), data.Identifier); err != nil {
			logger.Error("Failed to request password reset", "error", err)
		}

		render.JSON(w, messageResponse{Message: forgotPasswordAck})
	})
}

func handleResetPassword(resetService resetService, logger logger.Logger) http.Handler {
	type request struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = resetService.ConsumeReset(r.Context(), data.Token, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrResetTokenInvalid):
				render.ServiceError(w, "Invalid token", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrResetTokenExpired):
				render.ServiceError(w, "Token expired", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrResetTokenUsed):
				render.ServiceError(w, "Token already used", http.StatusBadRequest)
			default:
				logger.Error("Failed to reset password", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, messageResponse{Message: "Password has been reset"})
	})
}
