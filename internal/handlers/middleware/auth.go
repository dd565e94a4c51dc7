package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/handlers/userctx"
)

const bearerPrefix = "Bearer "

type accessParser interface {
	ParseAccess(access string) (uuid.UUID, error)
}

// Require valid bearer access token and put its account id to request context
func AuthMiddleware(p accessParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			accountID, err := p.ParseAccess(header[len(bearerPrefix):])
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
