package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// Allow cross origin requests from listed origins only
// Requests without Origin header (curl, server to server) are not affected
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Authorization", RequestIDHeader},
	})

	return c.Handler
}
