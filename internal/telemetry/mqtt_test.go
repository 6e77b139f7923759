package telemetry

import (
	"testing"
	"time"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
)

func TestParseChatCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    string
		wantErr bool
	}{
		{"hello there", "hello there", false},
		{"  /spawn \n", "/spawn", false},
		{`{"message": "hi"}`, "hi", false},
		{`{"message": "   "}`, "", true},
		{`{"message": `, "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseChatCommand([]byte(tt.payload))
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestEventTopic(t *testing.T) {
	if got := EventTopic("cubelink/", events.EventChatReceived); got != "cubelink/events/chat_received" {
		t.Errorf("topic = %s", got)
	}
	if qosFor(events.EventEntityMoved) != 0 || qosFor(events.EventDisconnected) != 1 {
		t.Error("unexpected QoS mapping")
	}
}

func TestNewBridge(t *testing.T) {
	if _, err := NewBridge(config.MQTTConfig{}, events.NewEventBus()); err == nil {
		t.Fatal("disabled bridge should not be created")
	}

	b, err := NewBridge(config.MQTTConfig{Enabled: true, BrokerURL: "localhost", Port: 1883, TopicPrefix: "mc/"}, events.NewEventBus())
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	if b.prefix != "mc" {
		t.Errorf("prefix = %q", b.prefix)
	}

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	msg := b.buildMessage(events.Event{Type: events.EventHeartbeat, Time: at, Payload: 1})
	if msg["event"] != events.EventHeartbeat || msg["timestamp"] != "2024-05-06T07:08:09Z" {
		t.Errorf("message = %v", msg)
	}
	if _, ok := msg["hostname"]; !ok {
		t.Error("host metadata missing")
	}
}
