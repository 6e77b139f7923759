package protocol

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

type idRow struct {
	Range
	ID int32
}

// serverboundIDs maps every outbound kind to its id per revision range.
var serverboundIDs = map[PacketKind][]idRow{
	PacketHandshake:          {{since(V1_7_2), 0x00}},
	PacketStatusRequest:      {{since(V1_7_2), 0x00}},
	PacketStatusPing:         {{since(V1_7_2), 0x01}},
	PacketLoginStart:         {{since(V1_7_2), 0x00}},
	PacketEncryptionResponse: {{since(V1_7_2), 0x01}},
	PacketKeepAliveResponse:  {{before(V1_9), 0x00}, {Range{V1_9, V1_11_2}, 0x0B}, {Range{V1_12_1, V1_12_2}, 0x0B}},
	PacketChatSend:           {{before(V1_9), 0x01}, {since(V1_9), 0x02}},
	PacketClientStatus:       {{before(V1_9), 0x16}, {since(V1_9), 0x03}},
	PacketTeleportConfirm:    {{since(V1_9), 0x00}},
	PacketPositionLookSend:   {{before(V1_9), 0x06}, {Range{V1_9, V1_11_2}, 0x0D}, {Range{V1_12_1, V1_12_2}, 0x0E}},
	PacketCloseWindowSend:    {{before(V1_9), 0x0D}, {since(V1_9), 0x08}},
}

// ServerboundID returns the wire id of an outbound kind at revision v.
func ServerboundID(k PacketKind, v Version) (int32, error) {
	for _, row := range serverboundIDs[k] {
		if row.Contains(v) {
			return row.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no id at %s", ErrUnknownPacket, k, v)
}

// Encode serializes an outbound packet and resolves its id.
func Encode(p Outbound, v Version) (int32, []byte, error) {
	id, err := ServerboundID(p.Kind(), v)
	if err != nil {
		return 0, nil, err
	}
	w := NewWriter(v)
	if err := p.Encode(w); err != nil {
		return 0, nil, fmt.Errorf("failed to encode %s: %w", p.Kind(), err)
	}
	data, err := w.Build()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode %s: %w", p.Kind(), err)
	}
	return id, data, nil
}

// Handshake opens the connection and selects the next phase.
type Handshake struct {
	Version Version
	Host    string
	Port    uint16
	Intent  Intent
}

func (*Handshake) Kind() PacketKind { return PacketHandshake }

func (p *Handshake) Encode(w *Writer) error {
	w.WriteVarInt(int32(p.Version)).WriteString(p.Host).WriteUint16(p.Port).WriteVarInt(int32(p.Intent))
	return w.err
}

// StatusRequest asks for the status document.
type StatusRequest struct{}

func (*StatusRequest) Kind() PacketKind       { return PacketStatusRequest }
func (*StatusRequest) Encode(w *Writer) error { return nil }

// StatusPing measures latency; the server echoes Payload.
type StatusPing struct {
	Payload int64
}

func (*StatusPing) Kind() PacketKind { return PacketStatusPing }

func (p *StatusPing) Encode(w *Writer) error {
	w.WriteInt64(p.Payload)
	return w.err
}

// LoginStart names the player.
type LoginStart struct {
	Username string
}

func (*LoginStart) Kind() PacketKind { return PacketLoginStart }

func (p *LoginStart) Encode(w *Writer) error {
	w.WriteString(p.Username)
	return w.err
}

// EncryptionResponse carries the shared secret and verify token, both
// encrypted with the server's public key.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (*EncryptionResponse) Kind() PacketKind { return PacketEncryptionResponse }

func (p *EncryptionResponse) Encode(w *Writer) error {
	rule := w.version.Rule(RuleLoginArrayLength)
	w.WriteByteArray(rule, p.SharedSecret).WriteByteArray(rule, p.VerifyToken)
	return w.err
}

// KeepAliveResponse echoes a keep-alive id.
type KeepAliveResponse struct {
	ID int64
}

func (*KeepAliveResponse) Kind() PacketKind { return PacketKeepAliveResponse }

func (p *KeepAliveResponse) Encode(w *Writer) error {
	w.WriteIntegerRule(RuleKeepAliveID, p.ID)
	return w.err
}

// MaxChatLength is the longest chat line the server accepts.
const MaxChatLength = 100

// ChatSend sends a chat line or command.
type ChatSend struct {
	Message string
}

func (*ChatSend) Kind() PacketKind { return PacketChatSend }

func (p *ChatSend) Encode(w *Writer) error {
	if len(p.Message) > MaxChatLength {
		return fmt.Errorf("%w: chat message of %d bytes", ErrOutOfBounds, len(p.Message))
	}
	w.WriteString(p.Message)
	return w.err
}

// Client status actions.
const (
	ClientActionRespawn    = 0
	ClientActionStatistics = 1
)

// ClientStatus requests a respawn or statistics.
type ClientStatus struct {
	Action int32
}

func (*ClientStatus) Kind() PacketKind { return PacketClientStatus }

func (p *ClientStatus) Encode(w *Writer) error {
	if w.Has(FeaturePackedPosition) {
		w.WriteVarInt(p.Action)
	} else {
		w.WriteInt8(int8(p.Action))
	}
	return w.err
}

// TeleportConfirm acknowledges a server teleport (1.9+).
type TeleportConfirm struct {
	TeleportID int32
}

func (*TeleportConfirm) Kind() PacketKind { return PacketTeleportConfirm }

func (p *TeleportConfirm) Encode(w *Writer) error {
	w.WriteVarInt(p.TeleportID)
	return w.err
}

// PositionLookSend reports the player's position and rotation.
type PositionLookSend struct {
	Position   mgl64.Vec3
	Yaw, Pitch float32
	OnGround   bool
}

func (*PositionLookSend) Kind() PacketKind { return PacketPositionLookSend }

func (p *PositionLookSend) Encode(w *Writer) error {
	w.WriteFloat64(p.Position[0]).WriteFloat64(p.Position[1])
	if !w.Has(FeatureMoveOnGround) {
		// 1.7 sends the head y (stance) after the feet y
		w.WriteFloat64(p.Position[1] + eyeHeight)
	}
	w.WriteFloat64(p.Position[2]).WriteFloat32(p.Yaw).WriteFloat32(p.Pitch).WriteBool(p.OnGround)
	return w.err
}

// CloseWindowSend tells the server a container was closed.
type CloseWindowSend struct {
	WindowID uint8
}

func (*CloseWindowSend) Kind() PacketKind { return PacketCloseWindowSend }

func (p *CloseWindowSend) Encode(w *Writer) error {
	w.WriteUint8(p.WindowID)
	return w.err
}
