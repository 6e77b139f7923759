package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmitReachesEverySubscriber(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32
	var stamped atomic.Bool

	for _, name := range []string{"a", "b", "c"} {
		bus.Subscribe(EventChatReceived, name, func(ctx context.Context, e Event) error {
			calls.Add(1)
			if !e.Time.IsZero() {
				stamped.Store(true)
			}
			return nil
		})
	}
	bus.Emit(context.Background(), Event{Type: EventChatReceived, Source: "test"})
	bus.Wait()

	if calls.Load() != 3 {
		t.Errorf("handlers called %d times, want 3", calls.Load())
	}
	if !stamped.Load() {
		t.Error("event time was not stamped")
	}
}

func TestEmitSyncReturnsFirstError(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	bus.Subscribe(EventSendChat, "ok", func(ctx context.Context, e Event) error { return nil })
	bus.Subscribe(EventSendChat, "fail", func(ctx context.Context, e Event) error { return boom })

	if err := bus.EmitSync(context.Background(), Event{Type: EventSendChat}); !errors.Is(err, boom) {
		t.Fatalf("EmitSync = %v, want boom", err)
	}
	if err := bus.EmitSync(context.Background(), Event{Type: EventRespawn}); err != nil {
		t.Fatalf("EmitSync without handlers = %v", err)
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	bus := NewEventBus()
	var after atomic.Bool
	bus.Subscribe(EventDisconnected, "panics", func(ctx context.Context, e Event) error { panic("bad handler") })
	bus.Subscribe(EventDisconnected, "fine", func(ctx context.Context, e Event) error {
		after.Store(true)
		return nil
	})

	if err := bus.EmitSync(context.Background(), Event{Type: EventDisconnected}); err != nil {
		t.Fatalf("EmitSync = %v", err)
	}
	if !after.Load() {
		t.Error("a panicking handler must not stop its siblings")
	}
}

func TestUnsubscribeAndStop(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32
	h := func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	}
	bus.SubscribeMany([]EventType{EventEntitySpawned, EventEntityRemoved}, "obs", h)
	if bus.HandlerCount(EventEntitySpawned) != 1 || bus.HandlerCount(EventEntityRemoved) != 1 {
		t.Fatal("SubscribeMany did not register both types")
	}

	bus.Unsubscribe(EventEntitySpawned, "obs")
	if bus.HandlerCount(EventEntitySpawned) != 0 {
		t.Fatal("handler still registered")
	}
	bus.Emit(context.Background(), Event{Type: EventEntitySpawned})
	bus.Wait()
	if calls.Load() != 0 {
		t.Fatal("unsubscribed handler was called")
	}

	bus.Stop()
	bus.Stop()
	select {
	case <-bus.StopCh():
	case <-time.After(time.Second):
		t.Fatal("stop channel not closed")
	}
	bus.Emit(context.Background(), Event{Type: EventEntityRemoved})
	bus.Wait()
	if calls.Load() != 0 {
		t.Error("stopped bus delivered an event")
	}
}
