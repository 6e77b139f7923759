package protocol

import "fmt"

// MaxPacketSize bounds the declared length of a single frame.
const MaxPacketSize = 2 << 20

// PacketKind tags every packet variant, inbound and outbound.
type PacketKind uint16

// Inbound (clientbound) kinds.
const (
	PacketNone PacketKind = iota

	PacketStatusResponse
	PacketStatusPong

	PacketLoginDisconnect
	PacketEncryptionRequest
	PacketLoginSuccess
	PacketLoginSetCompression

	PacketKeepAlive
	PacketJoinGame
	PacketChatMessage
	PacketTimeUpdate
	PacketEntityEquipment
	PacketSpawnPosition
	PacketUpdateHealth
	PacketRespawn
	PacketPlayerPositionLook
	PacketHeldItemChange
	PacketSpawnPlayer
	PacketSpawnObject
	PacketSpawnMob
	PacketSpawnExperienceOrb
	PacketEntityVelocity
	PacketDestroyEntities
	PacketEntityRelativeMove
	PacketEntityLook
	PacketEntityLookRelativeMove
	PacketEntityTeleport
	PacketEntityHeadLook
	PacketEntityMetadata
	PacketChunkData
	PacketMultiBlockChange
	PacketBlockChange
	PacketMapChunkBulk
	PacketUnloadChunk
	PacketChangeGameState
	PacketOpenWindow
	PacketCloseWindow
	PacketSetSlot
	PacketWindowItems
	PacketUpdateSign
	PacketUpdateBlockEntity
	PacketDisconnect
	PacketPlaySetCompression

	inboundKindEnd
)

// Outbound (serverbound) kinds.
const (
	PacketHandshake PacketKind = iota + 0x100
	PacketStatusRequest
	PacketStatusPing
	PacketLoginStart
	PacketEncryptionResponse
	PacketKeepAliveResponse
	PacketChatSend
	PacketClientStatus
	PacketTeleportConfirm
	PacketPositionLookSend
	PacketCloseWindowSend

	outboundKindEnd
)

type kindInfo struct {
	name  string
	phase Phase
}

var kindTable = map[PacketKind]kindInfo{
	PacketStatusResponse: {"status_response", PhaseStatus},
	PacketStatusPong:     {"status_pong", PhaseStatus},

	PacketLoginDisconnect:     {"login_disconnect", PhaseLogin},
	PacketEncryptionRequest:   {"encryption_request", PhaseLogin},
	PacketLoginSuccess:        {"login_success", PhaseLogin},
	PacketLoginSetCompression: {"login_set_compression", PhaseLogin},

	PacketKeepAlive:              {"keep_alive", PhasePlay},
	PacketJoinGame:               {"join_game", PhasePlay},
	PacketChatMessage:            {"chat_message", PhasePlay},
	PacketTimeUpdate:             {"time_update", PhasePlay},
	PacketEntityEquipment:        {"entity_equipment", PhasePlay},
	PacketSpawnPosition:          {"spawn_position", PhasePlay},
	PacketUpdateHealth:           {"update_health", PhasePlay},
	PacketRespawn:                {"respawn", PhasePlay},
	PacketPlayerPositionLook:     {"player_position_look", PhasePlay},
	PacketHeldItemChange:         {"held_item_change", PhasePlay},
	PacketSpawnPlayer:            {"spawn_player", PhasePlay},
	PacketSpawnObject:            {"spawn_object", PhasePlay},
	PacketSpawnMob:               {"spawn_mob", PhasePlay},
	PacketSpawnExperienceOrb:     {"spawn_experience_orb", PhasePlay},
	PacketEntityVelocity:         {"entity_velocity", PhasePlay},
	PacketDestroyEntities:        {"destroy_entities", PhasePlay},
	PacketEntityRelativeMove:     {"entity_relative_move", PhasePlay},
	PacketEntityLook:             {"entity_look", PhasePlay},
	PacketEntityLookRelativeMove: {"entity_look_relative_move", PhasePlay},
	PacketEntityTeleport:         {"entity_teleport", PhasePlay},
	PacketEntityHeadLook:         {"entity_head_look", PhasePlay},
	PacketEntityMetadata:         {"entity_metadata", PhasePlay},
	PacketChunkData:              {"chunk_data", PhasePlay},
	PacketMultiBlockChange:       {"multi_block_change", PhasePlay},
	PacketBlockChange:            {"block_change", PhasePlay},
	PacketMapChunkBulk:           {"map_chunk_bulk", PhasePlay},
	PacketUnloadChunk:            {"unload_chunk", PhasePlay},
	PacketChangeGameState:        {"change_game_state", PhasePlay},
	PacketOpenWindow:             {"open_window", PhasePlay},
	PacketCloseWindow:            {"close_window", PhasePlay},
	PacketSetSlot:                {"set_slot", PhasePlay},
	PacketWindowItems:            {"window_items", PhasePlay},
	PacketUpdateSign:             {"update_sign", PhasePlay},
	PacketUpdateBlockEntity:      {"update_block_entity", PhasePlay},
	PacketDisconnect:             {"disconnect", PhasePlay},
	PacketPlaySetCompression:     {"play_set_compression", PhasePlay},

	PacketHandshake:          {"handshake", PhaseHandshake},
	PacketStatusRequest:      {"status_request", PhaseStatus},
	PacketStatusPing:         {"status_ping", PhaseStatus},
	PacketLoginStart:         {"login_start", PhaseLogin},
	PacketEncryptionResponse: {"encryption_response", PhaseLogin},
	PacketKeepAliveResponse:  {"keep_alive_response", PhasePlay},
	PacketChatSend:           {"chat_send", PhasePlay},
	PacketClientStatus:       {"client_status", PhasePlay},
	PacketTeleportConfirm:    {"teleport_confirm", PhasePlay},
	PacketPositionLookSend:   {"position_look_send", PhasePlay},
	PacketCloseWindowSend:    {"close_window_send", PhasePlay},
}

func (k PacketKind) String() string {
	if info, ok := kindTable[k]; ok {
		return info.name
	}
	return fmt.Sprintf("packet(%d)", uint16(k))
}

// Phase returns the only phase in which the kind is legal.
func (k PacketKind) Phase() Phase {
	if info, ok := kindTable[k]; ok {
		return info.phase
	}
	return PhaseDisconnecting
}

// Inbound reports whether the kind is clientbound.
func (k PacketKind) Inbound() bool {
	return k > PacketNone && k < inboundKindEnd
}

// Packet is a decoded, immutable protocol unit. The concrete type is one of
// the variants in this package; Kind identifies it without reflection.
type Packet interface {
	Kind() PacketKind
}

// Outbound is a packet the client can encode and send.
type Outbound interface {
	Packet
	Encode(w *Writer) error
}
