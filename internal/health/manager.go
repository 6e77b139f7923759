// Package health runs periodic checks on the running client: session
// liveness, process memory and a heartbeat summary published on the bus.
package health

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/util"
	"github.com/cubelink-project/cubelink/internal/world"
)

// Session is the live connection as seen by the checks.
type Session interface {
	World() *world.World
	Phase() protocol.Phase
	Version() protocol.Version
	LastActivity() time.Time
}

type sessionHolder struct{ s Session }

// Manager runs periodic health checks.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus
	session  atomic.Pointer[sessionHolder]
	now      func() time.Time
	sample   func() (*util.ProcessStats, error)

	// Warnings fire once per episode; these flags re-arm on recovery.
	mu         sync.Mutex
	idleWarned bool
	memWarned  bool
}

// NewManager creates a new health check manager.
func NewManager(cfg *config.Config, eventBus *events.EventBus) *Manager {
	return &Manager{
		cfg:      cfg,
		eventBus: eventBus,
		now:      time.Now,
		sample:   util.GetProcessStats,
	}
}

// Attach sets the session under watch. nil detaches.
func (m *Manager) Attach(sess Session) {
	if sess == nil {
		m.session.Store(nil)
		return
	}
	m.session.Store(&sessionHolder{s: sess})
}

func (m *Manager) current() (Session, bool) {
	h := m.session.Load()
	if h == nil {
		return nil, false
	}
	return h.s, true
}

// Start launches all checks and blocks until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	timers := m.cfg.GetApplicationData().Timers

	checks := []struct {
		name     string
		interval int
		fn       func(context.Context)
	}{
		{"session_idle", timers.IdleCheckInterval, func(ctx context.Context) { m.CheckIdle(ctx) }},
		{"process_memory", timers.MemoryCheckInterval, func(ctx context.Context) { m.CheckMemory(ctx) }},
		{"heartbeat", timers.HeartbeatInterval, m.emitHeartbeat},
	}

	started := 0
	for _, check := range checks {
		if check.interval <= 0 {
			continue
		}
		started++
		go func() {
			ticker := time.NewTicker(time.Duration(check.interval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					check.fn(ctx)
				}
			}
		}()
	}

	log.Info().Str("component", "health").Int("checks", started).Msg("health check manager started")
	<-ctx.Done()
	log.Info().Str("component", "health").Msg("health check manager stopped")
}

// CheckIdle warns when nothing was read or written for longer than the
// configured threshold. It reports whether a warning was raised.
func (m *Manager) CheckIdle(ctx context.Context) bool {
	sess, ok := m.current()
	if !ok {
		return false
	}
	limit := time.Duration(m.cfg.GetApplicationData().Timers.IdleWarnAfter) * time.Second
	if limit <= 0 {
		return false
	}
	idle := m.now().Sub(sess.LastActivity())

	m.mu.Lock()
	if idle < limit {
		m.idleWarned = false
		m.mu.Unlock()
		return false
	}
	if m.idleWarned {
		m.mu.Unlock()
		return false
	}
	m.idleWarned = true
	m.mu.Unlock()

	msg := fmt.Sprintf("no traffic for %s in phase %s", idle.Truncate(time.Second), sess.Phase())
	m.warn(ctx, "session_idle", msg)
	return true
}

// CheckMemory warns when the resident set exceeds the configured limit. It
// reports whether a warning was raised.
func (m *Manager) CheckMemory(ctx context.Context) bool {
	limit := m.cfg.GetApplicationData().Timers.MemoryWarnMB
	if limit <= 0 {
		return false
	}
	stats, err := m.sample()
	if err != nil && stats == nil {
		log.Debug().Err(err).Str("component", "health").Msg("process sample failed")
		return false
	}

	m.mu.Lock()
	if stats.RSSMB < uint64(limit) {
		m.memWarned = false
		m.mu.Unlock()
		return false
	}
	if m.memWarned {
		m.mu.Unlock()
		return false
	}
	m.memWarned = true
	m.mu.Unlock()

	m.warn(ctx, "process_memory", fmt.Sprintf("resident memory %d MB exceeds %d MB", stats.RSSMB, limit))
	return true
}

// Heartbeat builds the current summary.
func (m *Manager) Heartbeat() events.HeartbeatPayload {
	hb := events.HeartbeatPayload{Goroutines: runtime.NumGoroutine()}
	if stats, _ := m.sample(); stats != nil {
		hb.RSSMB = float64(stats.RSSMB)
	}
	if sess, ok := m.current(); ok {
		w := sess.World()
		hb.Connected = true
		hb.Phase = sess.Phase().String()
		hb.Version = sess.Version().String()
		hb.Entities = w.EntityCount()
		hb.Chunks = len(w.Chunks())
		hb.IdleSec = m.now().Sub(sess.LastActivity()).Seconds()
	}
	return hb
}

func (m *Manager) emitHeartbeat(ctx context.Context) {
	m.eventBus.Emit(ctx, events.Event{
		Type:    events.EventHeartbeat,
		Source:  "health",
		Payload: m.Heartbeat(),
	})
}

func (m *Manager) warn(ctx context.Context, check, msg string) {
	log.Warn().Str("component", "health").Str("check", check).Msg(msg)
	m.eventBus.Emit(ctx, events.Event{
		Type:    events.EventWarning,
		Source:  "health",
		Payload: events.WarningPayload{Check: check, Message: msg},
	})
}
