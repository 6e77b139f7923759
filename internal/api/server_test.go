package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

type fakeSession struct {
	w      *world.World
	closed []uint8
}

func (f *fakeSession) World() *world.World { return f.w }
func (f *fakeSession) Phase() protocol.Phase { return protocol.PhasePlay }
func (f *fakeSession) Version() protocol.Version { return protocol.V1_12_2 }
func (f *fakeSession) Encrypted() bool { return true }
func (f *fakeSession) CompressionThreshold() int32 { return 256 }
func (f *fakeSession) ConnectedAt() time.Time { return time.Unix(0, 0) }
func (f *fakeSession) LastActivity() time.Time { return time.Unix(0, 0) }
func (f *fakeSession) CloseWindow(id uint8) error {
	f.closed = append(f.closed, id)
	return nil
}

func newTestServer(t *testing.T, mutate func(app *config.ApplicationData)) (*Server, *events.EventBus) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ClientData.AccessToken = "mc-token"
	if mutate != nil {
		mutate(&cfg.ApplicationData)
	}
	bus := events.NewEventBus()
	return NewServer(cfg, bus, nil, "test"), bus
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPingAndSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/public/ping", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["connected"] != false {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	if rec := do(s, http.MethodGet, "/api/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rec.Code)
	}
}

func TestRequireToken(t *testing.T) {
	s, _ := newTestServer(t, func(app *config.ApplicationData) { app.Security.APIToken = "secret" })

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"secret", http.StatusUnauthorized},
		{"Bearer secret", http.StatusServiceUnavailable},
		{"bearer secret", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rec := do(s, http.MethodGet, "/api/world/session", "", map[string]string{"Authorization": tt.header})
		if rec.Code != tt.want {
			t.Errorf("Authorization %q = %d, want %d", tt.header, rec.Code, tt.want)
		}
	}
}

func TestIPWhitelist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(IPWhitelist([]string{"10.0.0.0/8", "192.0.2.7"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:5000", http.StatusOK},
		{"192.0.2.7:5000", http.StatusOK},
		{"192.0.2.8:5000", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s = %d, want %d", tt.remote, rec.Code, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(1)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst of two should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("buckets are per client")
	}
	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatal("bucket should refill")
	}

	if !NewRateLimiter(0).Allow("x") {
		t.Error("zero rate disables limiting")
	}
}

func TestChunkSectionRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := world.NewWorld()
	c := world.NewChunk(world.ChunkPos{X: 2, Z: -1})
	c.SetBlock(5, 48, 0, world.NewBlockState(4, 0))
	c.SetBlock(0, 49, 0, world.NewBlockState(17, 2))
	w.LoadColumns([]world.Column{{Chunk: c, Mask: 1 << 3, GroundUp: true}})
	s.Attach(&fakeSession{w: w})

	rec := do(s, http.MethodGet, "/api/world/chunks/2/-1/sections/3", "", nil)
	var body struct {
		NonAir int      `json:"non_air"`
		States []uint16 `json:"states"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body.NonAir != 2 || len(body.States) != world.SectionVolume {
		t.Fatalf("section = %d %+v", rec.Code, body.NonAir)
	}
	if body.States[5] != uint16(world.NewBlockState(4, 0)) || body.States[256] != uint16(world.NewBlockState(17, 2)) {
		t.Errorf("states[5] = %d, states[256] = %d", body.States[5], body.States[256])
	}

	tests := []struct {
		path string
		code int
	}{
		{"/api/world/chunks/2/-1/sections/0", http.StatusOK},
		{"/api/world/chunks/9/9/sections/0", http.StatusNotFound},
		{"/api/world/chunks/2/-1/sections/16", http.StatusBadRequest},
		{"/api/world/chunks/a/-1/sections/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(s, http.MethodGet, tt.path, "", nil); rec.Code != tt.code {
			t.Errorf("%s = %d, want %d", tt.path, rec.Code, tt.code)
		}
	}
}

func TestWorldRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(s, http.MethodGet, "/api/world/player", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("without session = %d", rec.Code)
	}

	w := world.NewWorld()
	w.SpawnEntity(world.NewEntity(7, world.Kind{Category: world.CategoryMob, TypeID: 54}))
	w.SpawnEntity(world.NewEntity(3, world.Kind{Category: world.CategoryObject, TypeID: 1}))
	sess := &fakeSession{w: w}
	s.Attach(sess)

	rec := do(s, http.MethodGet, "/api/world/entities?category=mob", "", nil)
	var list struct {
		Entities []EntityView `json:"entities"`
		Total    int          `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || list.Total != 1 || list.Entities[0].Type != "zombie" {
		t.Errorf("entities = %d %+v", rec.Code, list)
	}

	if rec := do(s, http.MethodGet, "/api/world/entities/99", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing entity = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/world/entities/x", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/world/blocks/0/64/0", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("block in unloaded chunk = %d", rec.Code)
	}

	rec = do(s, http.MethodGet, "/api/world/session", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"version":"1.12.2"`) {
		t.Errorf("session = %d %s", rec.Code, rec.Body.String())
	}

	if rec := do(s, http.MethodPost, "/api/control/windows/2/close", "", nil); rec.Code != http.StatusAccepted {
		t.Errorf("close window = %d", rec.Code)
	}
	if len(sess.closed) != 1 || sess.closed[0] != 2 {
		t.Errorf("closed = %v", sess.closed)
	}

	s.Attach(nil)
	if rec := do(s, http.MethodGet, "/api/world/session", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("detached session = %d", rec.Code)
	}
}

func TestChatRoute(t *testing.T) {
	s, bus := newTestServer(t, nil)

	if rec := do(s, http.MethodPost, "/api/control/chat", `{"message":"hi"}`, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("chat without session = %d", rec.Code)
	}

	var got string
	bus.Subscribe(events.EventSendChat, "test", func(ctx context.Context, e events.Event) error {
		got = e.Payload.(events.SendChatPayload).Message
		return nil
	})

	tests := []struct {
		body string
		want int
	}{
		{`{}`, http.StatusBadRequest},
		{`{"message":"` + strings.Repeat("a", protocol.MaxChatLength+1) + `"}`, http.StatusBadRequest},
		{`{"message":"hello"}`, http.StatusAccepted},
	}
	for _, tt := range tests {
		if rec := do(s, http.MethodPost, "/api/control/chat", tt.body, nil); rec.Code != tt.want {
			t.Errorf("body %.20s = %d, want %d", tt.body, rec.Code, tt.want)
		}
	}
	if got != "hello" {
		t.Errorf("bus received %q", got)
	}

	bus.Unsubscribe(events.EventSendChat, "test")
	bus.Subscribe(events.EventSendChat, "full", func(ctx context.Context, e events.Event) error {
		return protocol.ErrQueueFull
	})
	if rec := do(s, http.MethodPost, "/api/control/chat", `{"message":"x"}`, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("full queue = %d", rec.Code)
	}
}

func TestConfigIsRedacted(t *testing.T) {
	s, _ := newTestServer(t, func(app *config.ApplicationData) {
		app.Webhook.URL = "https://hooks.example.org/abc"
	})
	rec := do(s, http.MethodGet, "/api/system/config", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "mc-token") || strings.Contains(body, "hooks.example.org") {
		t.Errorf("secrets leaked: %s", body)
	}
	if !strings.Contains(body, `"access_token":"`+redacted+`"`) {
		t.Error("access token not masked")
	}
}

func TestHistoryDisabled(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(s, http.MethodGet, "/api/history/chat", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("history without database = %d", rec.Code)
	}
}

func TestLastStatus(t *testing.T) {
	s, bus := newTestServer(t, nil)
	if rec := do(s, http.MethodGet, "/api/public/status", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("before probe = %d", rec.Code)
	}
	bus.EmitSync(context.Background(), events.Event{
		Type:    events.EventStatusReceived,
		Payload: events.StatusReceivedPayload{Address: "a:1", Protocol: 340, Online: 2, Max: 10},
	})
	rec := do(s, http.MethodGet, "/api/public/status", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"protocol":340`) {
		t.Errorf("after probe = %d %s", rec.Code, rec.Body.String())
	}
}
