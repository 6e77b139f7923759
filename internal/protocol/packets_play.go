package protocol

import (
	"github.com/Tnze/go-mc/chat"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/cubelink-project/cubelink/internal/world"
)

// KeepAlive must be echoed back with the same id.
type KeepAlive struct {
	ID int64
}

func (*KeepAlive) Kind() PacketKind { return PacketKeepAlive }

func decodeKeepAlive(r *Reader) (Packet, error) {
	id, err := r.IntegerRule(RuleKeepAliveID)
	if err != nil {
		return nil, err
	}
	return &KeepAlive{ID: id}, nil
}

// JoinGame starts the play session.
type JoinGame struct {
	EntityID         int32
	GameMode         world.GameMode
	Hardcore         bool
	Dimension        int32
	Difficulty       uint8
	MaxPlayers       uint8
	LevelType        string
	ReducedDebugInfo bool
}

func (*JoinGame) Kind() PacketKind { return PacketJoinGame }

func decodeJoinGame(r *Reader) (Packet, error) {
	p := &JoinGame{}
	var err error
	if p.EntityID, err = r.Int32(); err != nil {
		return nil, err
	}
	mode, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	p.GameMode, p.Hardcore = world.GameMode(mode&0x07), mode&0x08 != 0
	if r.Has(FeatureIntDimension) {
		p.Dimension, err = r.Int32()
	} else {
		var d int8
		d, err = r.Int8()
		p.Dimension = int32(d)
	}
	if err != nil {
		return nil, err
	}
	if p.Difficulty, err = r.Uint8(); err != nil {
		return nil, err
	}
	if p.MaxPlayers, err = r.Uint8(); err != nil {
		return nil, err
	}
	if p.LevelType, err = r.String(); err != nil {
		return nil, err
	}
	if r.Has(FeatureReducedDebugInfo) {
		if p.ReducedDebugInfo, err = r.Bool(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Encode writes the packet; used by test servers.
func (p *JoinGame) Encode(w *Writer) error {
	mode := uint8(p.GameMode)
	if p.Hardcore {
		mode |= 0x08
	}
	w.WriteInt32(p.EntityID).WriteUint8(mode)
	if w.Has(FeatureIntDimension) {
		w.WriteInt32(p.Dimension)
	} else {
		w.WriteInt8(int8(p.Dimension))
	}
	w.WriteUint8(p.Difficulty).WriteUint8(p.MaxPlayers).WriteString(p.LevelType)
	if w.Has(FeatureReducedDebugInfo) {
		w.WriteBool(p.ReducedDebugInfo)
	}
	return w.err
}

// Chat positions.
const (
	ChatPositionChat   = 0
	ChatPositionSystem = 1
	ChatPositionAbove  = 2
)

// ChatMessage is a chat line from the server.
type ChatMessage struct {
	Message  chat.Message
	Position int8
}

func (*ChatMessage) Kind() PacketKind { return PacketChatMessage }

func decodeChatMessage(r *Reader) (Packet, error) {
	p := &ChatMessage{}
	var err error
	if p.Message, err = r.Chat(); err != nil {
		return nil, err
	}
	if r.Has(FeatureChatPosition) {
		if p.Position, err = r.Int8(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// UpdateHealth sets the player's health and food.
type UpdateHealth struct {
	Health     float32
	Food       int32
	Saturation float32
}

func (*UpdateHealth) Kind() PacketKind { return PacketUpdateHealth }

func decodeUpdateHealth(r *Reader) (Packet, error) {
	p := &UpdateHealth{}
	var err error
	if p.Health, err = r.Float32(); err != nil {
		return nil, err
	}
	if r.Has(FeatureHealthVarIntFood) {
		p.Food, err = r.VarInt()
	} else {
		var f int16
		f, err = r.Int16()
		p.Food = int32(f)
	}
	if err != nil {
		return nil, err
	}
	if p.Saturation, err = r.Float32(); err != nil {
		return nil, err
	}
	return p, nil
}

// Respawn moves the player to a (possibly different) dimension.
type Respawn struct {
	Dimension  int32
	Difficulty uint8
	GameMode   world.GameMode
	LevelType  string
}

func (*Respawn) Kind() PacketKind { return PacketRespawn }

func decodeRespawn(r *Reader) (Packet, error) {
	p := &Respawn{}
	var err error
	if p.Dimension, err = r.Int32(); err != nil {
		return nil, err
	}
	if p.Difficulty, err = r.Uint8(); err != nil {
		return nil, err
	}
	mode, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	p.GameMode = world.GameMode(mode & 0x07)
	if p.LevelType, err = r.String(); err != nil {
		return nil, err
	}
	return p, nil
}

// Relative flags of PlayerPositionLook.
const (
	RelativeX uint8 = 1 << iota
	RelativeY
	RelativeZ
	RelativeYaw
	RelativePitch
)

// eyeHeight is the offset 1.7 adds to the y coordinate of position packets.
const eyeHeight = 1.62

// PlayerPositionLook teleports the local player.
type PlayerPositionLook struct {
	Position   mgl64.Vec3
	Yaw, Pitch float32
	Flags      uint8
	OnGround   bool
	TeleportID int32
}

func (*PlayerPositionLook) Kind() PacketKind { return PacketPlayerPositionLook }

// Apply resolves relative fields against the current position and rotation.
func (p *PlayerPositionLook) Apply(pos mgl64.Vec3, yaw, pitch float32) (mgl64.Vec3, float32, float32) {
	out := p.Position
	for i, bit := range []uint8{RelativeX, RelativeY, RelativeZ} {
		if p.Flags&bit != 0 {
			out[i] += pos[i]
		}
	}
	outYaw, outPitch := p.Yaw, p.Pitch
	if p.Flags&RelativeYaw != 0 {
		outYaw += yaw
	}
	if p.Flags&RelativePitch != 0 {
		outPitch += pitch
	}
	return out, outYaw, outPitch
}

func decodePlayerPositionLook(r *Reader) (Packet, error) {
	p := &PlayerPositionLook{}
	var err error
	for i := range p.Position {
		if p.Position[i], err = r.Float64(); err != nil {
			return nil, err
		}
	}
	if p.Yaw, err = r.Float32(); err != nil {
		return nil, err
	}
	if p.Pitch, err = r.Float32(); err != nil {
		return nil, err
	}
	if !r.Has(FeatureMoveOnGround) {
		p.Position[1] -= eyeHeight
		if p.OnGround, err = r.Bool(); err != nil {
			return nil, err
		}
		return p, nil
	}
	if p.Flags, err = r.Uint8(); err != nil {
		return nil, err
	}
	if r.Has(FeatureTeleportID) {
		if p.TeleportID, err = r.VarInt(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// HeldItemChange selects a hotbar slot.
type HeldItemChange struct {
	Slot int8
}

func (*HeldItemChange) Kind() PacketKind { return PacketHeldItemChange }

func decodeHeldItemChange(r *Reader) (Packet, error) {
	v, err := r.Int8()
	if err != nil {
		return nil, err
	}
	return &HeldItemChange{Slot: v}, nil
}

// Game state reasons.
const (
	GameStateInvalidBed     = 0
	GameStateEndRaining     = 1
	GameStateBeginRaining   = 2
	GameStateChangeGameMode = 3
	GameStateExitEnd        = 4
	GameStateDemoMessage    = 5
	GameStateArrowHit       = 6
	GameStateFadeValue      = 7
	GameStateFadeTime       = 8
)

// ChangeGameState reports weather, game mode and similar state changes.
type ChangeGameState struct {
	Reason uint8
	Value  float32
}

func (*ChangeGameState) Kind() PacketKind { return PacketChangeGameState }

func decodeChangeGameState(r *Reader) (Packet, error) {
	p := &ChangeGameState{}
	var err error
	if p.Reason, err = r.Uint8(); err != nil {
		return nil, err
	}
	if p.Value, err = r.Float32(); err != nil {
		return nil, err
	}
	return p, nil
}

// Disconnect ends the play session.
type Disconnect struct {
	Reason chat.Message
}

func (*Disconnect) Kind() PacketKind { return PacketDisconnect }

func decodeDisconnect(r *Reader) (Packet, error) {
	reason, err := r.Chat()
	if err != nil {
		return nil, err
	}
	return &Disconnect{Reason: reason}, nil
}

// ---- windows ----

// legacyWindowTypes maps the numeric 1.7 window types to identifiers.
var legacyWindowTypes = map[uint8]string{
	0: "minecraft:chest", 1: "minecraft:crafting_table", 2: "minecraft:furnace",
	3: "minecraft:dispenser", 4: "minecraft:enchanting_table", 5: "minecraft:brewing_stand",
	6: "minecraft:villager", 7: "minecraft:beacon", 8: "minecraft:anvil",
	9: "minecraft:hopper", 10: "minecraft:dropper", 11: "EntityHorse",
}

// OpenWindow opens a container.
type OpenWindow struct {
	WindowID uint8
	Type     string
	Title    string
	Slots    uint8
	EntityID int32
}

func (*OpenWindow) Kind() PacketKind { return PacketOpenWindow }

func decodeOpenWindow(r *Reader) (Packet, error) {
	p := &OpenWindow{}
	var err error
	if p.WindowID, err = r.Uint8(); err != nil {
		return nil, err
	}
	if r.Has(FeatureStringWindowType) {
		if p.Type, err = r.String(); err != nil {
			return nil, err
		}
		title, err := r.Chat()
		if err != nil {
			return nil, err
		}
		p.Title = title.ClearString()
		if p.Slots, err = r.Uint8(); err != nil {
			return nil, err
		}
	} else {
		typ, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		p.Type = legacyWindowTypes[typ]
		if p.Title, err = r.String(); err != nil {
			return nil, err
		}
		if p.Slots, err = r.Uint8(); err != nil {
			return nil, err
		}
		if _, err = r.Bool(); err != nil {
			return nil, err
		}
	}
	if p.Type == "EntityHorse" {
		if p.EntityID, err = r.Int32(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// CloseWindow invalidates a container.
type CloseWindow struct {
	WindowID uint8
}

func (*CloseWindow) Kind() PacketKind { return PacketCloseWindow }

func decodeCloseWindow(r *Reader) (Packet, error) {
	v, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	return &CloseWindow{WindowID: v}, nil
}

// SetSlot replaces one slot of a window.
type SetSlot struct {
	WindowID int8
	Slot     int16
	Item     *world.ItemStack
}

func (*SetSlot) Kind() PacketKind { return PacketSetSlot }

func decodeSetSlot(r *Reader) (Packet, error) {
	p := &SetSlot{}
	var err error
	if p.WindowID, err = r.Int8(); err != nil {
		return nil, err
	}
	if p.Slot, err = r.Int16(); err != nil {
		return nil, err
	}
	if p.Item, err = r.Slot(); err != nil {
		return nil, err
	}
	return p, nil
}

// WindowItems replaces every slot of a window.
type WindowItems struct {
	WindowID uint8
	Items    []*world.ItemStack
}

func (*WindowItems) Kind() PacketKind { return PacketWindowItems }

func decodeWindowItems(r *Reader) (Packet, error) {
	p := &WindowItems{}
	var err error
	if p.WindowID, err = r.Uint8(); err != nil {
		return nil, err
	}
	if p.Items, err = r.Slots(); err != nil {
		return nil, err
	}
	return p, nil
}
