// Package events defines event types and payloads for the cubelink event system.
package events

import (
	"time"

	"github.com/cubelink-project/cubelink/internal/world"
)

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Connection lifecycle events
	EventPhaseChanged   EventType = "phase_changed"
	EventStatusReceived EventType = "status_received"
	EventLoginSucceeded EventType = "login_succeeded"
	EventDisconnected   EventType = "disconnected"
	EventProtocolError  EventType = "protocol_error"

	// World events
	EventEntitySpawned    EventType = "entity_spawned"
	EventEntityRemoved    EventType = "entity_removed"
	EventEntityMoved      EventType = "entity_moved"
	EventBlockChanged     EventType = "block_changed"
	EventChunkLoaded      EventType = "chunk_loaded"
	EventChunkUnloaded    EventType = "chunk_unloaded"
	EventInventoryChanged EventType = "inventory_changed"
	EventChatReceived     EventType = "chat_received"
	EventHealthChanged    EventType = "health_changed"

	// Command events, emitted by the API and console towards the session
	EventSendChat EventType = "cmd_send_chat"
	EventRespawn  EventType = "cmd_respawn"

	// System events
	EventShutdown  EventType = "shutdown"
	EventHeartbeat EventType = "heartbeat"
	EventWarning   EventType = "warning"
)

// AllWorldEvents lists the events observers usually mirror.
var AllWorldEvents = []EventType{
	EventPhaseChanged, EventStatusReceived, EventLoginSucceeded, EventDisconnected,
	EventProtocolError, EventEntitySpawned, EventEntityRemoved, EventEntityMoved,
	EventBlockChanged, EventChunkLoaded, EventChunkUnloaded, EventInventoryChanged,
	EventChatReceived, EventHealthChanged,
}

// AllSystemEvents lists the periodic events of the background checks.
var AllSystemEvents = []EventType{EventHeartbeat, EventWarning}

// ErrorClass categorizes a reported protocol error.
type ErrorClass int

const (
	ErrorClassUnknownPacket ErrorClass = iota
	ErrorClassUnimplemented
	ErrorClassHandler
	ErrorClassFatal
)

var errorClassStrings = map[ErrorClass]string{
	ErrorClassUnknownPacket: "unknown_packet",
	ErrorClassUnimplemented: "unimplemented",
	ErrorClassHandler:       "handler",
	ErrorClassFatal:         "fatal",
}

// String returns the string representation of ErrorClass.
func (c ErrorClass) String() string {
	if s, ok := errorClassStrings[c]; ok {
		return s
	}
	return "fatal"
}

// MarshalJSON serializes ErrorClass as a JSON string (e.g. "handler").
func (c ErrorClass) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// InventoryAction says how a window changed.
type InventoryAction string

const (
	InventoryOpened InventoryAction = "opened"
	InventoryClosed InventoryAction = "closed"
	InventorySlot   InventoryAction = "slot"
	InventoryItems  InventoryAction = "items"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType   `json:"type"`
	Source  string      `json:"source"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// PhaseChangedPayload is emitted on every connection phase transition.
type PhaseChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// StatusReceivedPayload carries the result of a status probe.
type StatusReceivedPayload struct {
	Address     string        `json:"address"`
	VersionName string        `json:"version_name"`
	Protocol    int32         `json:"protocol"`
	Online      int           `json:"online"`
	Max         int           `json:"max"`
	MOTD        string        `json:"motd"`
	Latency     time.Duration `json:"latency"`
}

// LoginPayload is emitted when the server accepts the login.
type LoginPayload struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
}

// EntitySpawnedPayload describes a newly tracked entity.
type EntitySpawnedPayload struct {
	EntityID int32      `json:"entity_id"`
	Category string     `json:"category"`
	Type     string     `json:"type"`
	Position [3]float64 `json:"position"`
}

// EntityRemovedPayload lists entities that were dropped.
type EntityRemovedPayload struct {
	EntityIDs []int32 `json:"entity_ids"`
}

// EntityMovedPayload carries an entity's new position.
type EntityMovedPayload struct {
	EntityID int32      `json:"entity_id"`
	Position [3]float64 `json:"position"`
	OnGround bool       `json:"on_ground"`
}

// BlockChangedPayload lists applied block changes.
type BlockChangedPayload struct {
	Changes []world.BlockChange `json:"changes"`
}

// ChunkPayload names a column.
type ChunkPayload struct {
	Pos world.ChunkPos `json:"pos"`
}

// InventoryChangedPayload describes a window update.
type InventoryChangedPayload struct {
	WindowID int16           `json:"window_id"`
	Action   InventoryAction `json:"action"`
	Slot     int16           `json:"slot,omitempty"`
	Title    string          `json:"title,omitempty"`
}

// ChatReceivedPayload is a received chat line.
type ChatReceivedPayload struct {
	Text     string `json:"text"`
	Raw      string `json:"raw"`
	Position int8   `json:"position"`
}

// HealthChangedPayload mirrors an update health packet.
type HealthChangedPayload struct {
	Health     float32 `json:"health"`
	Food       int32   `json:"food"`
	Saturation float32 `json:"saturation"`
}

// DisconnectedPayload is emitted once when a connection terminates.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// ProtocolErrorPayload reports an error that surfaced through the event
// channel instead of terminating the connection (or, for fatal errors, just
// before it does).
type ProtocolErrorPayload struct {
	Class    ErrorClass `json:"class"`
	Phase    string     `json:"phase"`
	PacketID int32      `json:"packet_id"`
	Error    string     `json:"error"`
}

// SendChatPayload asks the session to send a chat line.
type SendChatPayload struct {
	Message string `json:"message"`
}

// HeartbeatPayload is a periodic summary of the client.
type HeartbeatPayload struct {
	Connected  bool    `json:"connected"`
	Phase      string  `json:"phase,omitempty"`
	Version    string  `json:"version,omitempty"`
	Entities   int     `json:"entities"`
	Chunks     int     `json:"chunks"`
	IdleSec    float64 `json:"idle_sec"`
	RSSMB      float64 `json:"rss_mb"`
	Goroutines int     `json:"goroutines"`
}

// WarningPayload is raised by a background check.
type WarningPayload struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}
