package handlers

import (
	"net/http"
)

// Serve single file, reset link points here with token in query
func handleStaticFile(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer")
		http.ServeFile(w, r, path)
	})
}
