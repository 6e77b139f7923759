package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/util"
	"github.com/cubelink-project/cubelink/internal/world"
)

type fakeSession struct {
	w    *world.World
	last time.Time
}

func (f *fakeSession) World() *world.World { return f.w }
func (f *fakeSession) Phase() protocol.Phase { return protocol.PhasePlay }
func (f *fakeSession) Version() protocol.Version { return protocol.V1_11_2 }
func (f *fakeSession) LastActivity() time.Time { return f.last }

type warnings struct {
	mu     sync.Mutex
	checks []string
}

func (w *warnings) handler(ctx context.Context, e events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checks = append(w.checks, e.Payload.(events.WarningPayload).Check)
	return nil
}

func (w *warnings) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.checks)
}

func newTestManager() (*Manager, *events.EventBus, *warnings) {
	cfg := config.DefaultConfig()
	cfg.ApplicationData.Timers.IdleWarnAfter = 20
	cfg.ApplicationData.Timers.MemoryWarnMB = 100
	bus := events.NewEventBus()
	seen := &warnings{}
	bus.Subscribe(events.EventWarning, "test", seen.handler)
	return NewManager(cfg, bus), bus, seen
}

func TestCheckIdleWarnsOnce(t *testing.T) {
	m, bus, seen := newTestManager()
	now := time.Unix(10_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if m.CheckIdle(ctx) {
		t.Fatal("no session, no warning")
	}

	sess := &fakeSession{w: world.NewWorld(), last: now.Add(-5 * time.Second)}
	m.Attach(sess)
	if m.CheckIdle(ctx) {
		t.Fatal("active session flagged idle")
	}

	sess.last = now.Add(-30 * time.Second)
	if !m.CheckIdle(ctx) {
		t.Fatal("idle session not flagged")
	}
	if m.CheckIdle(ctx) {
		t.Fatal("second warning in the same episode")
	}

	// Traffic re-arms the check.
	sess.last = now
	m.CheckIdle(ctx)
	sess.last = now.Add(-time.Minute)
	if !m.CheckIdle(ctx) {
		t.Fatal("check did not re-arm")
	}

	bus.Wait()
	if seen.count() != 2 {
		t.Errorf("%d warnings emitted, want 2", seen.count())
	}
}

func TestCheckMemory(t *testing.T) {
	m, bus, seen := newTestManager()
	ctx := context.Background()
	rss := uint64(50)
	m.sample = func() (*util.ProcessStats, error) { return &util.ProcessStats{RSSMB: rss}, nil }

	if m.CheckMemory(ctx) {
		t.Fatal("below limit flagged")
	}
	rss = 150
	if !m.CheckMemory(ctx) || m.CheckMemory(ctx) {
		t.Fatal("expected exactly one warning above the limit")
	}
	rss = 10
	m.CheckMemory(ctx)
	rss = 200
	if !m.CheckMemory(ctx) {
		t.Fatal("check did not re-arm")
	}

	m.sample = func() (*util.ProcessStats, error) { return nil, errors.New("no proc") }
	if m.CheckMemory(ctx) {
		t.Fatal("failed sample flagged")
	}

	bus.Wait()
	if seen.count() != 2 {
		t.Errorf("%d warnings emitted, want 2", seen.count())
	}
}

func TestHeartbeat(t *testing.T) {
	m, _, _ := newTestManager()
	now := time.Unix(5_000, 0)
	m.now = func() time.Time { return now }
	m.sample = func() (*util.ProcessStats, error) { return &util.ProcessStats{RSSMB: 64}, nil }

	if hb := m.Heartbeat(); hb.Connected || hb.RSSMB != 64 || hb.Goroutines == 0 {
		t.Errorf("detached heartbeat = %+v", hb)
	}

	w := world.NewWorld()
	w.SpawnEntity(world.NewEntity(1, world.Kind{Category: world.CategoryMob, TypeID: 90}))
	m.Attach(&fakeSession{w: w, last: now.Add(-3 * time.Second)})

	hb := m.Heartbeat()
	if !hb.Connected || hb.Phase != "play" || hb.Version != "1.11.2" || hb.Entities != 1 || hb.IdleSec != 3 {
		t.Errorf("heartbeat = %+v", hb)
	}
}
