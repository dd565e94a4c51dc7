package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/authkeeper/internal/logger"
)

func handleProfileMe(accountService accountService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		acc, err := accountService.GetByID(r.Context(), accountID)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAccountNotFound):
				render.ServiceError(w, "Account not found", http.StatusNotFound)
			default:
				logger.Error("Failed to get profile", "account_id", accountID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, newAccountResponse(acc))
	})
}
