package middleware

import (
	"context"
	"net/http"

	"rpimon/internal/auth"
	"rpimon/internal/config"
)

type contextKey string

const SubjectKey contextKey = "subject"

// JWT requires an HS256 signed bearer token. With an empty secret every
// request passes through.
func JWT(cfg *config.Config) Middleware {
	verifier := auth.NewVerifier(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r)
			if !ok || token == "" {
				http.Error(w, "Unauthorized: No token found", http.StatusUnauthorized)
				return
			}

			sub, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSubject(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(SubjectKey).(string)
	return sub, ok
}
