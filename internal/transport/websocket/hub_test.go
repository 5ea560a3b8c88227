package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rpimon/internal/config"
	"rpimon/internal/domain"
	"rpimon/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

func startHub(t *testing.T, cfg *config.Config) (*Hub, *httptest.Server) {
	t.Helper()

	log := logger.Discard()
	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(NewHandler(hub, log, cfg))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubStreamsSamplesToSubscribers(t *testing.T) {
	hub, srv := startHub(t, &config.Config{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub, _ := json.Marshal(domain.WsClientMessage{Type: domain.WsSubscribe, Channel: domain.WsChannelVitals})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// The subscription is processed asynchronously; keep publishing until
	// the first event arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				hub.PublishValue(context.Background(), domain.Sample{
					Family: domain.FamilyCPUTemp,
					Path:   "environment.rpi.cpu.temperature",
					Value:  318.75,
					Unit:   domain.UnitKelvin,
				})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event struct {
		Channel string        `json:"channel"`
		Event   string        `json:"event"`
		Payload domain.Sample `json:"payload"`
	}
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	if event.Channel != domain.WsChannelVitals || event.Event != domain.WsEventSamplePublished {
		t.Fatalf("unexpected event %s", msg)
	}
	if event.Payload.Path != "environment.rpi.cpu.temperature" || event.Payload.Value != 318.75 {
		t.Fatalf("unexpected payload %+v", event.Payload)
	}
}

func TestHandlerRequiresTokenWhenSecretSet(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s3cret"}
	_, srv := startHub(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		t.Fatal("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "dashboard"}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatal(err)
	}

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial with query token: %v", err)
	}
	conn.Close()
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	_, srv := startHub(t, &config.Config{AllowedOrigins: []string{"http://dashboard.local"}})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header); err == nil {
		t.Fatal("expected foreign origin to be rejected")
	}

	header = http.Header{"Origin": []string{"http://dashboard.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	conn.Close()
}

func TestBroadcastAfterShutdown(t *testing.T) {
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	// Fill the buffer so the closed hub is the only ready case.
	for range cap(hub.events) {
		hub.events <- &domain.WsServerEvent{}
	}

	err := hub.PublishMetadata(context.Background(), "a.b", domain.UnitRatio)
	if !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}
