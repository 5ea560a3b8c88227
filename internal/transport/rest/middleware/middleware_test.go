package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rpimon/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	return signWith(t, jwt.SigningMethodHS256, secret, claims)
}

func signWith(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestJWT(t *testing.T) {
	var subject string
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = GetSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := JWT(&config.Config{JWTSecret: "secret"})(ok)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, "other", jwt.MapClaims{"sub": "ops"}), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, "secret", jwt.MapClaims{"sub": "ops", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"hs512 rejected", "Bearer " + signWith(t, jwt.SigningMethodHS512, "secret", jwt.MapClaims{"sub": "ops"}), http.StatusUnauthorized},
		{"valid", "Bearer " + sign(t, "secret", jwt.MapClaims{"sub": "ops"}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sampler/stop", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if subject != "ops" {
		t.Fatalf("expected subject in context, got %q", subject)
	}
}

func TestJWTDisabledWithoutSecret(t *testing.T) {
	h := JWT(&config.Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}

func TestCORSAndStackOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	base := Stack{CORS(&config.Config{AllowedOrigins: []string{"http://dash.local"}})}
	h := base.With(mark("a"), mark("b")).
		WrapFunc(func(w http.ResponseWriter, r *http.Request) {})

	if len(base) != 1 {
		t.Fatal("With must not modify the receiver")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}

	req = httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://other.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}
}
