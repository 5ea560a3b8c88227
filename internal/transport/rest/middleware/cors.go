package middleware

import (
	"net/http"
	"slices"

	"rpimon/internal/config"
)

const (
	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

// CORS answers preflight requests and echoes allowed origins. An origin of
// "*" in cfg.AllowedOrigins admits every origin.
func CORS(cfg *config.Config) Middleware {
	anyOrigin := slices.Contains(cfg.AllowedOrigins, "*")
	origins := cfg.AllowedOrigins

	allowed := func(origin string) bool {
		return origin != "" && (anyOrigin || slices.Contains(origins, origin))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowed(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
