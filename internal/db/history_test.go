package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cubelink-project/cubelink/internal/events"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	hs, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore: %v", err)
	}
	t.Cleanup(func() { hs.Close() })
	return hs
}

func TestRecentIsNewestFirst(t *testing.T) {
	hs := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if err := hs.RecordChat(ctx, ChatRecord{Text: text}); err != nil {
			t.Fatalf("RecordChat: %v", err)
		}
	}

	chat, err := hs.RecentChat(ctx, 2)
	if err != nil {
		t.Fatalf("RecentChat: %v", err)
	}
	if len(chat) != 2 || chat[0].Text != "third" || chat[1].Text != "second" {
		t.Fatalf("chat = %+v", chat)
	}
	if chat[0].CreatedAt.IsZero() {
		t.Error("missing timestamp was not filled in")
	}
}

func TestRecordStatusAndSessions(t *testing.T) {
	hs := newTestStore(t)
	ctx := context.Background()

	err := hs.RecordStatus(ctx, StatusRecord{
		Address: "mc.example.org:25565", Version: "1.12.2", Protocol: 340,
		Online: 3, Max: 20, MOTD: "hello", LatencyMS: 42,
	})
	if err != nil {
		t.Fatalf("RecordStatus: %v", err)
	}
	status, err := hs.RecentStatus(ctx, 10)
	if err != nil || len(status) != 1 {
		t.Fatalf("RecentStatus = %v, %v", status, err)
	}
	if got := status[0]; got.Protocol != 340 || got.Online != 3 || got.MOTD != "hello" || got.LatencyMS != 42 {
		t.Errorf("status = %+v", got)
	}

	hs.RecordSession(ctx, SessionRecord{Kind: SessionLogin, Detail: "Steve"})
	hs.RecordSession(ctx, SessionRecord{Kind: SessionDisconnect, Detail: "kicked", Error: "read timeout"})
	sessions, err := hs.RecentSessions(ctx, 10)
	if err != nil || len(sessions) != 2 {
		t.Fatalf("RecentSessions = %v, %v", sessions, err)
	}
	if sessions[0].Kind != SessionDisconnect || sessions[0].Error != "read timeout" {
		t.Errorf("newest session = %+v", sessions[0])
	}
}

func TestPruneRemovesOldRows(t *testing.T) {
	hs := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	hs.RecordChat(ctx, ChatRecord{Text: "old", CreatedAt: old})
	hs.RecordSession(ctx, SessionRecord{Kind: SessionLogin, CreatedAt: old})
	hs.RecordChat(ctx, ChatRecord{Text: "new"})

	n, err := hs.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d rows, want 2", n)
	}
	chat, _ := hs.RecentChat(ctx, 10)
	if len(chat) != 1 || chat[0].Text != "new" {
		t.Errorf("chat after prune = %+v", chat)
	}
}

func TestAttachRecordsEvents(t *testing.T) {
	hs := newTestStore(t)
	bus := events.NewEventBus()
	hs.Attach(bus)
	ctx := context.Background()

	emit := []events.Event{
		{Type: events.EventChatReceived, Payload: events.ChatReceivedPayload{Text: "hi", Raw: `{"text":"hi"}`, Position: 1}},
		{Type: events.EventLoginSucceeded, Payload: events.LoginPayload{Username: "Steve", UUID: "abc"}},
		{Type: events.EventDisconnected, Payload: events.DisconnectedPayload{Reason: "bye"}},
		{Type: events.EventStatusReceived, Payload: events.StatusReceivedPayload{Address: "a:1", Protocol: 47, Latency: 15 * time.Millisecond}},
		// Wrong payload types are ignored.
		{Type: events.EventChatReceived, Payload: "not a payload"},
	}
	for _, e := range emit {
		if err := bus.EmitSync(ctx, e); err != nil {
			t.Fatalf("EmitSync(%s): %v", e.Type, err)
		}
	}

	chat, _ := hs.RecentChat(ctx, 10)
	if len(chat) != 1 || chat[0].Raw != `{"text":"hi"}` || chat[0].Position != 1 {
		t.Errorf("chat = %+v", chat)
	}
	sessions, _ := hs.RecentSessions(ctx, 10)
	if len(sessions) != 2 || sessions[1].Detail != "Steve abc" || sessions[0].Detail != "bye" {
		t.Errorf("sessions = %+v", sessions)
	}
	status, _ := hs.RecentStatus(ctx, 10)
	if len(status) != 1 || status[0].LatencyMS != 15 {
		t.Errorf("status = %+v", status)
	}
}
