package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
)

func TestOfflineUUID(t *testing.T) {
	a := OfflineUUID("Steve")
	if a.Version() != 3 || a.Variant() != uuid.RFC4122 {
		t.Errorf("uuid %s is version %d variant %s", a, a.Version(), a.Variant())
	}
	if OfflineUUID("Steve") != a {
		t.Error("offline UUID is not deterministic")
	}
	if OfflineUUID("Alex") == a {
		t.Error("different names share a UUID")
	}
}

func TestSessionJoin(t *testing.T) {
	var got joinRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != joinPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "cubelink/") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		if got.AccessToken != "token" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"ForbiddenOperationException","errorMessage":"Invalid token."}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.ClientData{
		SessionServerURL: srv.URL + "/",
		AccessToken:      "token",
		ProfileID:        "069a79f4-44e9-4726-a5be-fca90e38aaf5",
	}
	if err := NewSessionClient(cfg, "test").Join(context.Background(), "-7c9d5b"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got.SelectedProfile != "069a79f444e94726a5befca90e38aaf5" || got.ServerID != "-7c9d5b" {
		t.Errorf("request = %+v", got)
	}

	cfg.AccessToken = "expired"
	err := NewSessionClient(cfg, "test").Join(context.Background(), "00")
	if err == nil || !strings.Contains(err.Error(), "Invalid token.") {
		t.Errorf("expected service error, got %v", err)
	}
}

func TestOfflineSessionJoin(t *testing.T) {
	if err := (OfflineSession{}).Join(context.Background(), "abc"); err != nil {
		t.Fatal(err)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if NewWebhookNotifier(config.WebhookConfig{}, events.NewEventBus()) != nil {
		t.Fatal("notifier without URL should be nil")
	}

	bus := events.NewEventBus()
	wn := NewWebhookNotifier(config.WebhookConfig{URL: srv.URL, NotifyOnDisconnect: true}, bus)
	wn.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	if bus.HandlerCount(events.EventLoginSucceeded) != 0 {
		t.Error("login notifications were not requested")
	}
	err := bus.EmitSync(context.Background(), events.Event{
		Type:    events.EventDisconnected,
		Payload: events.DisconnectedPayload{Reason: "kicked", Error: "read timeout"},
	})
	if err != nil {
		t.Fatalf("EmitSync: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("got %d webhook posts", len(bodies))
	}
	embed := bodies[0]["embeds"].([]interface{})[0].(map[string]interface{})
	if embed["title"] != "Disconnected" || embed["color"].(float64) != 0xFF0000 {
		t.Errorf("embed = %v", embed)
	}
	if embed["timestamp"] != "2024-01-02T03:04:05Z" {
		t.Errorf("timestamp = %v", embed["timestamp"])
	}
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	wn := NewWebhookNotifier(config.WebhookConfig{URL: srv.URL}, events.NewEventBus())
	if err := wn.Send(context.Background(), "t", "m", LevelInfo); err == nil {
		t.Fatal("expected error for 429")
	}
}
