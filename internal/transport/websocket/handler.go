package websocket

import (
	"net/http"
	"slices"

	"rpimon/internal/auth"
	"rpimon/internal/config"
	"rpimon/internal/logger"

	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      logger.Logger
	verifier *auth.Verifier
}

// NewHandler builds the /ws endpoint. Browsers are held to
// cfg.AllowedOrigins; a request without an Origin header is accepted. When
// cfg.JWTSecret is empty no token is required.
func NewHandler(hub *Hub, log logger.Logger, cfg *config.Config) *Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(cfg.AllowedOrigins, "*") || slices.Contains(cfg.AllowedOrigins, origin) {
				return true
			}
			log.Warn("websocket origin rejected", "origin", origin)
			return false
		},
	}

	return &Handler{
		hub:      hub,
		upgrader: upgrader,
		log:      log,
		verifier: auth.NewVerifier(cfg.JWTSecret),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.verifier != nil {
		token, ok := auth.BearerToken(r)
		if !ok {
			token = r.URL.Query().Get("token")
		}

		if _, err := h.verifier.Verify(token); err != nil {
			h.log.Warn("websocket jwt verification failed", "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, h.log)
	if !h.hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
