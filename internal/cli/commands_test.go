package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

type fakeSession struct{ w *world.World }

func (f fakeSession) World() *world.World { return f.w }
func (f fakeSession) Phase() protocol.Phase { return protocol.PhasePlay }
func (f fakeSession) Version() protocol.Version { return protocol.V1_8 }
func (f fakeSession) Encrypted() bool { return false }
func (f fakeSession) CompressionThreshold() int32 { return -1 }
func (f fakeSession) ConnectedAt() time.Time { return time.Now() }

func newTestCLI(t *testing.T) (*CLI, *events.EventBus, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	bus := events.NewEventBus()
	var out bytes.Buffer
	return NewCLI(cfg, bus, nil, strings.NewReader(""), &out), bus, &out
}

func TestExecuteWithoutSession(t *testing.T) {
	c, _, out := newTestCLI(t)
	ctx := context.Background()

	if err := c.Execute(ctx, "help", nil); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "setconfig") {
		t.Error("help does not list setconfig")
	}

	for _, cmd := range []string{"status", "player", "entities", "chunks", "windows", "chat", "respawn"} {
		args := []string{"hi"}
		err := c.Execute(ctx, cmd, args)
		if err == nil {
			t.Errorf("%s without session should fail", cmd)
		}
	}
	if err := c.Execute(ctx, "history", []string{"chat"}); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Errorf("history without database = %v", err)
	}

	out.Reset()
	c.Execute(ctx, "frobnicate", nil)
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEntitiesTable(t *testing.T) {
	c, _, out := newTestCLI(t)
	w := world.NewWorld()
	w.SpawnEntity(world.NewEntity(5, world.Kind{Category: world.CategoryMob, TypeID: 50}))
	w.SpawnEntity(world.NewEntity(6, world.Kind{Category: world.CategoryObject, TypeID: 1}))
	c.Attach(fakeSession{w: w})

	if err := c.Execute(context.Background(), "entities", []string{"MOB"}); err != nil {
		t.Fatalf("entities: %v", err)
	}
	if !strings.Contains(out.String(), "creeper") || strings.Contains(out.String(), "boat") {
		t.Errorf("table = %s", out.String())
	}
	if !strings.Contains(out.String(), "1 entities") {
		t.Error("count missing")
	}

	if err := c.Execute(context.Background(), "block", []string{"0", "64"}); err == nil {
		t.Error("block needs three coordinates")
	}
	if err := c.Execute(context.Background(), "block", []string{"0", "64", "0"}); err == nil {
		t.Error("block in unloaded chunk should fail")
	}
}

func TestChatThroughBus(t *testing.T) {
	c, bus, out := newTestCLI(t)
	var got string
	bus.Subscribe(events.EventSendChat, "session", func(ctx context.Context, e events.Event) error {
		got = e.Payload.(events.SendChatPayload).Message
		return nil
	})

	if err := c.Execute(context.Background(), "say", []string{"hello", "world"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got != "hello world" || !strings.Contains(out.String(), "Sent: hello world") {
		t.Errorf("got %q, output %q", got, out.String())
	}

	long := strings.Repeat("x", protocol.MaxChatLength+1)
	if err := c.Execute(context.Background(), "chat", []string{long}); err == nil {
		t.Error("overlong chat accepted")
	}
}

func TestSetConfig(t *testing.T) {
	c, _, _ := newTestCLI(t)
	ctx := context.Background()

	if err := c.Execute(ctx, "setconfig", []string{"client.username", "Alex"}); err != nil {
		t.Fatalf("setconfig: %v", err)
	}
	if err := c.Execute(ctx, "setconfig", []string{"timers.heartbeat_interval", "15"}); err != nil {
		t.Fatalf("setconfig: %v", err)
	}
	if c.cfg.GetClientData().Username != "Alex" || c.cfg.GetApplicationData().Timers.HeartbeatInterval != 15 {
		t.Error("config not updated")
	}
	if err := c.Execute(ctx, "setconfig", []string{"timers.nope", "1"}); err == nil {
		t.Error("unknown key accepted")
	}
	if err := c.Execute(ctx, "setconfig", []string{"username"}); err == nil {
		t.Error("missing value accepted")
	}
}
