package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// DecodeFunc decodes one payload into a typed packet.
type DecodeFunc func(r *Reader) (Packet, error)

// Route is what the catalog knows about one inbound id. A route without a
// decoder is recognized but not implemented.
type Route struct {
	Name   string
	Kind   PacketKind
	Decode DecodeFunc
}

// Implemented reports whether the route can produce a packet.
func (r Route) Implemented() bool { return r.Decode != nil }

// Partition holds the inbound ids of one phase for one revision range.
type Partition struct {
	Phase  Phase
	Range  Range
	Routes map[int32]Route
}

// Catalog is the version-partitioned registry of inbound packet ids.
type Catalog struct {
	byPhase map[Phase][]*Partition
}

// NewCatalog builds a catalog. Within a phase, partitions are searched from
// the narrowest range to the widest; the first one that contains both the
// revision and the id wins, so a narrow partition overrides the ids it
// redefines and inherits the rest.
func NewCatalog(parts ...Partition) *Catalog {
	c := &Catalog{byPhase: make(map[Phase][]*Partition)}
	for i := range parts {
		p := parts[i]
		c.byPhase[p.Phase] = append(c.byPhase[p.Phase], &p)
	}
	for _, list := range c.byPhase {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Range.Width() < list[j].Range.Width()
		})
	}
	return c
}

// Lookup resolves an inbound id. Misses yield ErrUnknownPacket; ids the
// catalog names but cannot decode yield ErrUnimplementedPacket along with
// the route.
func (c *Catalog) Lookup(phase Phase, v Version, id int32) (Route, error) {
	for _, p := range c.byPhase[phase] {
		if !p.Range.Contains(v) {
			continue
		}
		route, ok := p.Routes[id]
		if !ok {
			continue
		}
		if !route.Implemented() {
			return route, fmt.Errorf("%w: %s 0x%02X (%s) at %s", ErrUnimplementedPacket, phase, id, route.Name, v)
		}
		return route, nil
	}
	return Route{}, fmt.Errorf("%w: %s 0x%02X at %s", ErrUnknownPacket, phase, id, v)
}

// Decode resolves and decodes one payload. Trailing bytes beyond what the
// routine consumes are ignored; the frame length already bounded them.
// A routine that panics on hostile input yields a *DecodeError.
func (c *Catalog) Decode(phase Phase, v Version, id int32, payload []byte, opts DecodeOptions) (pkt Packet, err error) {
	route, err := c.Lookup(phase, v, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			pkt = nil
			err = &DecodeError{Phase: phase, ID: id, Version: v, Cause: fmt.Errorf("%w: %v", ErrDecoderPanic, rec)}
		}
	}()
	r := NewReader(payload, v)
	r.Options = opts
	pkt, err = route.Decode(r)
	if err != nil {
		return nil, &DecodeError{Phase: phase, ID: id, Version: v, Cause: err}
	}
	return pkt, nil
}

// Kinds lists every kind some partition can decode.
func (c *Catalog) Kinds() []PacketKind {
	seen := make(map[PacketKind]bool)
	var out []PacketKind
	for _, list := range c.byPhase {
		for _, p := range list {
			for _, route := range p.Routes {
				if route.Implemented() && !seen[route.Kind] {
					seen[route.Kind] = true
					out = append(out, route.Kind)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the catalog of every supported revision.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog = NewCatalog(defaultPartitions()...)
	})
	return defaultCatalog
}

func impl(k PacketKind, fn DecodeFunc) Route { return Route{Name: k.String(), Kind: k, Decode: fn} }
func stub(name string) Route                 { return Route{Name: name} }

func defaultPartitions() []Partition {
	return []Partition{
		{Phase: PhaseStatus, Range: since(V1_7_2), Routes: map[int32]Route{
			0x00: impl(PacketStatusResponse, decodeStatusResponse),
			0x01: impl(PacketStatusPong, decodeStatusPong),
		}},
		{Phase: PhaseLogin, Range: since(V1_7_2), Routes: map[int32]Route{
			0x00: impl(PacketLoginDisconnect, decodeLoginDisconnect),
			0x01: impl(PacketEncryptionRequest, decodeEncryptionRequest),
			0x02: impl(PacketLoginSuccess, decodeLoginSuccess),
		}},
		{Phase: PhaseLogin, Range: since(V1_8), Routes: map[int32]Route{
			0x03: impl(PacketLoginSetCompression, decodeSetCompression),
		}},
		{Phase: PhasePlay, Range: Range{V1_7_2, V1_8}, Routes: legacyPlayRoutes()},
		{Phase: PhasePlay, Range: Range{V1_8, V1_8}, Routes: map[int32]Route{
			0x41: stub("server_difficulty"),
			0x42: stub("combat_event"),
			0x43: stub("camera"),
			0x44: stub("world_border"),
			0x45: stub("title"),
			0x46: impl(PacketPlaySetCompression, decodePlaySetCompression),
			0x47: stub("player_list_header_footer"),
			0x48: stub("resource_pack_send"),
			0x49: stub("update_entity_nbt"),
		}},
		{Phase: PhasePlay, Range: Range{V1_9, V1_11_2}, Routes: combatPlayRoutes()},
		{Phase: PhasePlay, Range: Range{V1_9, V1_9_2}, Routes: map[int32]Route{
			0x46: impl(PacketUpdateSign, decodeUpdateSign),
			0x47: stub("sound_effect"),
			0x48: stub("player_list_header_footer"),
			0x49: stub("collect_item"),
			0x4A: impl(PacketEntityTeleport, decodeEntityTeleport),
			0x4B: stub("entity_properties"),
			0x4C: stub("entity_effect"),
		}},
		{Phase: PhasePlay, Range: Range{V1_9_4, V1_11_2}, Routes: map[int32]Route{
			0x46: stub("sound_effect"),
			0x47: stub("player_list_header_footer"),
			0x48: stub("collect_item"),
			0x49: impl(PacketEntityTeleport, decodeEntityTeleport),
			0x4A: stub("entity_properties"),
			0x4B: stub("entity_effect"),
		}},
		{Phase: PhasePlay, Range: Range{V1_12_1, V1_12_2}, Routes: worldOfColorPlayRoutes()},
	}
}

// legacyPlayRoutes covers 1.7 and 1.8, which share their play ids.
func legacyPlayRoutes() map[int32]Route {
	return map[int32]Route{
		0x00: impl(PacketKeepAlive, decodeKeepAlive),
		0x01: impl(PacketJoinGame, decodeJoinGame),
		0x02: impl(PacketChatMessage, decodeChatMessage),
		0x03: impl(PacketTimeUpdate, decodeTimeUpdate),
		0x04: impl(PacketEntityEquipment, decodeEntityEquipment),
		0x05: impl(PacketSpawnPosition, decodeSpawnPosition),
		0x06: impl(PacketUpdateHealth, decodeUpdateHealth),
		0x07: impl(PacketRespawn, decodeRespawn),
		0x08: impl(PacketPlayerPositionLook, decodePlayerPositionLook),
		0x09: impl(PacketHeldItemChange, decodeHeldItemChange),
		0x0A: stub("use_bed"),
		0x0B: stub("animation"),
		0x0C: impl(PacketSpawnPlayer, decodeSpawnPlayer),
		0x0D: stub("collect_item"),
		0x0E: impl(PacketSpawnObject, decodeSpawnObject),
		0x0F: impl(PacketSpawnMob, decodeSpawnMob),
		0x10: stub("spawn_painting"),
		0x11: impl(PacketSpawnExperienceOrb, decodeSpawnExperienceOrb),
		0x12: impl(PacketEntityVelocity, decodeEntityVelocity),
		0x13: impl(PacketDestroyEntities, decodeDestroyEntities),
		0x14: stub("entity"),
		0x15: impl(PacketEntityRelativeMove, decodeEntityRelativeMove),
		0x16: impl(PacketEntityLook, decodeEntityLook),
		0x17: impl(PacketEntityLookRelativeMove, decodeEntityLookRelativeMove),
		0x18: impl(PacketEntityTeleport, decodeEntityTeleport),
		0x19: impl(PacketEntityHeadLook, decodeEntityHeadLook),
		0x1A: stub("entity_status"),
		0x1B: stub("attach_entity"),
		0x1C: impl(PacketEntityMetadata, decodeEntityMetadata),
		0x1D: stub("entity_effect"),
		0x1E: stub("remove_entity_effect"),
		0x1F: stub("set_experience"),
		0x20: stub("entity_properties"),
		0x21: impl(PacketChunkData, decodeChunkData),
		0x22: impl(PacketMultiBlockChange, decodeMultiBlockChange),
		0x23: impl(PacketBlockChange, decodeBlockChange),
		0x24: stub("block_action"),
		0x25: stub("block_break_animation"),
		0x26: impl(PacketMapChunkBulk, decodeMapChunkBulk),
		0x27: stub("explosion"),
		0x28: stub("effect"),
		0x29: stub("sound_effect"),
		0x2A: stub("particle"),
		0x2B: impl(PacketChangeGameState, decodeChangeGameState),
		0x2C: stub("spawn_global_entity"),
		0x2D: impl(PacketOpenWindow, decodeOpenWindow),
		0x2E: impl(PacketCloseWindow, decodeCloseWindow),
		0x2F: impl(PacketSetSlot, decodeSetSlot),
		0x30: impl(PacketWindowItems, decodeWindowItems),
		0x31: stub("window_property"),
		0x32: stub("confirm_transaction"),
		0x33: impl(PacketUpdateSign, decodeUpdateSign),
		0x34: stub("maps"),
		0x35: impl(PacketUpdateBlockEntity, decodeUpdateBlockEntity),
		0x36: stub("open_sign_editor"),
		0x37: stub("statistics"),
		0x38: stub("player_list_item"),
		0x39: stub("player_abilities"),
		0x3A: stub("tab_complete"),
		0x3B: stub("scoreboard_objective"),
		0x3C: stub("update_score"),
		0x3D: stub("display_scoreboard"),
		0x3E: stub("teams"),
		0x3F: stub("plugin_message"),
		0x40: impl(PacketDisconnect, decodeDisconnect),
	}
}

// combatPlayRoutes covers the ids 1.9 through 1.11.2 share.
func combatPlayRoutes() map[int32]Route {
	return map[int32]Route{
		0x00: impl(PacketSpawnObject, decodeSpawnObject),
		0x01: impl(PacketSpawnExperienceOrb, decodeSpawnExperienceOrb),
		0x02: stub("spawn_global_entity"),
		0x03: impl(PacketSpawnMob, decodeSpawnMob),
		0x04: stub("spawn_painting"),
		0x05: impl(PacketSpawnPlayer, decodeSpawnPlayer),
		0x06: stub("animation"),
		0x07: stub("statistics"),
		0x08: stub("block_break_animation"),
		0x09: impl(PacketUpdateBlockEntity, decodeUpdateBlockEntity),
		0x0A: stub("block_action"),
		0x0B: impl(PacketBlockChange, decodeBlockChange),
		0x0C: stub("boss_bar"),
		0x0D: stub("server_difficulty"),
		0x0E: stub("tab_complete"),
		0x0F: impl(PacketChatMessage, decodeChatMessage),
		0x10: impl(PacketMultiBlockChange, decodeMultiBlockChange),
		0x11: stub("confirm_transaction"),
		0x12: impl(PacketCloseWindow, decodeCloseWindow),
		0x13: impl(PacketOpenWindow, decodeOpenWindow),
		0x14: impl(PacketWindowItems, decodeWindowItems),
		0x15: stub("window_property"),
		0x16: impl(PacketSetSlot, decodeSetSlot),
		0x17: stub("set_cooldown"),
		0x18: stub("plugin_message"),
		0x19: stub("named_sound_effect"),
		0x1A: impl(PacketDisconnect, decodeDisconnect),
		0x1B: stub("entity_status"),
		0x1C: stub("explosion"),
		0x1D: impl(PacketUnloadChunk, decodeUnloadChunk),
		0x1E: impl(PacketChangeGameState, decodeChangeGameState),
		0x1F: impl(PacketKeepAlive, decodeKeepAlive),
		0x20: impl(PacketChunkData, decodeChunkData),
		0x21: stub("effect"),
		0x22: stub("particle"),
		0x23: impl(PacketJoinGame, decodeJoinGame),
		0x24: stub("map"),
		0x25: impl(PacketEntityRelativeMove, decodeEntityRelativeMove),
		0x26: impl(PacketEntityLookRelativeMove, decodeEntityLookRelativeMove),
		0x27: impl(PacketEntityLook, decodeEntityLook),
		0x28: stub("entity"),
		0x29: stub("vehicle_move"),
		0x2A: stub("open_sign_editor"),
		0x2B: stub("player_abilities"),
		0x2C: stub("combat_event"),
		0x2D: stub("player_list_item"),
		0x2E: impl(PacketPlayerPositionLook, decodePlayerPositionLook),
		0x2F: stub("use_bed"),
		0x30: impl(PacketDestroyEntities, decodeDestroyEntities),
		0x31: stub("remove_entity_effect"),
		0x32: stub("resource_pack_send"),
		0x33: impl(PacketRespawn, decodeRespawn),
		0x34: impl(PacketEntityHeadLook, decodeEntityHeadLook),
		0x35: stub("world_border"),
		0x36: stub("camera"),
		0x37: impl(PacketHeldItemChange, decodeHeldItemChange),
		0x38: stub("display_scoreboard"),
		0x39: impl(PacketEntityMetadata, decodeEntityMetadata),
		0x3A: stub("attach_entity"),
		0x3B: impl(PacketEntityVelocity, decodeEntityVelocity),
		0x3C: impl(PacketEntityEquipment, decodeEntityEquipment),
		0x3D: stub("set_experience"),
		0x3E: impl(PacketUpdateHealth, decodeUpdateHealth),
		0x3F: stub("scoreboard_objective"),
		0x40: stub("set_passengers"),
		0x41: stub("teams"),
		0x42: stub("update_score"),
		0x43: impl(PacketSpawnPosition, decodeSpawnPosition),
		0x44: impl(PacketTimeUpdate, decodeTimeUpdate),
		0x45: stub("title"),
	}
}

// worldOfColorPlayRoutes covers 1.12.1 and 1.12.2.
func worldOfColorPlayRoutes() map[int32]Route {
	return map[int32]Route{
		0x00: impl(PacketSpawnObject, decodeSpawnObject),
		0x01: impl(PacketSpawnExperienceOrb, decodeSpawnExperienceOrb),
		0x02: stub("spawn_global_entity"),
		0x03: impl(PacketSpawnMob, decodeSpawnMob),
		0x04: stub("spawn_painting"),
		0x05: impl(PacketSpawnPlayer, decodeSpawnPlayer),
		0x06: stub("animation"),
		0x07: stub("statistics"),
		0x08: stub("block_break_animation"),
		0x09: impl(PacketUpdateBlockEntity, decodeUpdateBlockEntity),
		0x0A: stub("block_action"),
		0x0B: impl(PacketBlockChange, decodeBlockChange),
		0x0C: stub("boss_bar"),
		0x0D: stub("server_difficulty"),
		0x0E: stub("tab_complete"),
		0x0F: impl(PacketChatMessage, decodeChatMessage),
		0x10: impl(PacketMultiBlockChange, decodeMultiBlockChange),
		0x11: stub("confirm_transaction"),
		0x12: impl(PacketCloseWindow, decodeCloseWindow),
		0x13: impl(PacketOpenWindow, decodeOpenWindow),
		0x14: impl(PacketWindowItems, decodeWindowItems),
		0x15: stub("window_property"),
		0x16: impl(PacketSetSlot, decodeSetSlot),
		0x17: stub("set_cooldown"),
		0x18: stub("plugin_message"),
		0x19: stub("named_sound_effect"),
		0x1A: impl(PacketDisconnect, decodeDisconnect),
		0x1B: stub("entity_status"),
		0x1C: stub("explosion"),
		0x1D: impl(PacketUnloadChunk, decodeUnloadChunk),
		0x1E: impl(PacketChangeGameState, decodeChangeGameState),
		0x1F: impl(PacketKeepAlive, decodeKeepAlive),
		0x20: impl(PacketChunkData, decodeChunkData),
		0x21: stub("effect"),
		0x22: stub("particle"),
		0x23: impl(PacketJoinGame, decodeJoinGame),
		0x24: stub("map"),
		0x25: stub("entity"),
		0x26: impl(PacketEntityRelativeMove, decodeEntityRelativeMove),
		0x27: impl(PacketEntityLookRelativeMove, decodeEntityLookRelativeMove),
		0x28: impl(PacketEntityLook, decodeEntityLook),
		0x29: stub("vehicle_move"),
		0x2A: stub("open_sign_editor"),
		0x2B: stub("craft_recipe_response"),
		0x2C: stub("player_abilities"),
		0x2D: stub("combat_event"),
		0x2E: stub("player_list_item"),
		0x2F: impl(PacketPlayerPositionLook, decodePlayerPositionLook),
		0x30: stub("use_bed"),
		0x31: stub("unlock_recipes"),
		0x32: impl(PacketDestroyEntities, decodeDestroyEntities),
		0x33: stub("remove_entity_effect"),
		0x34: stub("resource_pack_send"),
		0x35: impl(PacketRespawn, decodeRespawn),
		0x36: impl(PacketEntityHeadLook, decodeEntityHeadLook),
		0x37: stub("select_advancement_tab"),
		0x38: stub("world_border"),
		0x39: stub("camera"),
		0x3A: impl(PacketHeldItemChange, decodeHeldItemChange),
		0x3B: stub("display_scoreboard"),
		0x3C: impl(PacketEntityMetadata, decodeEntityMetadata),
		0x3D: stub("attach_entity"),
		0x3E: impl(PacketEntityVelocity, decodeEntityVelocity),
		0x3F: impl(PacketEntityEquipment, decodeEntityEquipment),
		0x40: stub("set_experience"),
		0x41: impl(PacketUpdateHealth, decodeUpdateHealth),
		0x42: stub("scoreboard_objective"),
		0x43: stub("set_passengers"),
		0x44: stub("teams"),
		0x45: stub("update_score"),
		0x46: impl(PacketSpawnPosition, decodeSpawnPosition),
		0x47: impl(PacketTimeUpdate, decodeTimeUpdate),
		0x48: stub("title"),
		0x49: stub("sound_effect"),
		0x4A: stub("player_list_header_footer"),
		0x4B: stub("collect_item"),
		0x4C: impl(PacketEntityTeleport, decodeEntityTeleport),
		0x4D: stub("advancements"),
		0x4E: stub("entity_properties"),
		0x4F: stub("entity_effect"),
	}
}
