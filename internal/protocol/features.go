package protocol

import "fmt"

// Feature is a wire-layout switch that is either present or absent for a
// given revision. Decode routines ask the table instead of comparing
// version literals; a new revision adds rows, not call sites.
type Feature uint8

const (
	FeatureSpawnPlayerProperties Feature = iota // property list in spawn player
	FeatureMoveOnGround                         // trailing on-ground flag in entity moves and teleports
	FeaturePackedPosition                       // block positions packed into one long
	FeatureChatPosition                         // chat position byte
	FeatureInlineSlotTags                       // slot tags inline instead of gzip with a short length
	FeatureHealthVarIntFood                     // food level as varint in update health
	FeatureReducedDebugInfo                     // reduced debug flag in join game
	FeatureStringWindowType                     // window type as identifier string with chat title
	FeatureVarIntBlockRecords                   // multi-block records with varint states
	FeatureChatSignLines                        // sign lines as chat components
	FeatureEntityUUIDs                          // uuid in object and mob spawns
	FeatureObjectVelocityAlways                 // spawn object always carries velocity
	FeatureSpawnPlayerHeldItem                  // held item short in spawn player
	FeatureTypedMetadata                        // metadata as index + varint type, 0xFF terminated
	FeaturePaletteChunks                        // paletted chunk sections
	FeatureTeleportID                           // teleport id in position and look, teleport confirm
	FeatureIntDimension                         // int dimension in join game
	FeatureChunkBlockEntities                   // block entities embedded in chunk data
	FeatureOffHand                              // off-hand slot in the player inventory
	FeatureTagMetadata                          // tag value metadata type
	featureCount
)

var featureNames = [featureCount]string{
	"spawn_player_properties", "move_on_ground", "packed_position", "chat_position",
	"inline_slot_tags", "health_varint_food", "reduced_debug_info", "string_window_type",
	"varint_block_records", "chat_sign_lines", "entity_uuids", "object_velocity_always",
	"spawn_player_held_item", "typed_metadata", "palette_chunks", "teleport_id",
	"int_dimension", "chunk_block_entities", "off_hand", "tag_metadata",
}

func (f Feature) String() string {
	if f < featureCount {
		return featureNames[f]
	}
	return fmt.Sprintf("feature(%d)", uint8(f))
}

func since(v Version) Range  { return Range{Min: v, Max: Latest} }
func before(v Version) Range { return Range{Min: V1_7_2, Max: v - 1} }

// featureTable maps every feature to the revisions that carry it.
var featureTable = [featureCount]Range{
	FeatureSpawnPlayerProperties: since(V1_7_6),
	FeatureMoveOnGround:          since(V1_8),
	FeaturePackedPosition:        since(V1_8),
	FeatureChatPosition:          since(V1_8),
	FeatureInlineSlotTags:        since(V1_8),
	FeatureHealthVarIntFood:      since(V1_8),
	FeatureReducedDebugInfo:      since(V1_8),
	FeatureStringWindowType:      since(V1_8),
	FeatureVarIntBlockRecords:    since(V1_8),
	FeatureChatSignLines:         since(V1_8),
	FeatureEntityUUIDs:           since(V1_9),
	FeatureObjectVelocityAlways:  since(V1_9),
	FeatureSpawnPlayerHeldItem:   before(V1_9),
	FeatureTypedMetadata:         since(V1_9),
	FeaturePaletteChunks:         since(V1_9),
	FeatureTeleportID:            since(V1_9),
	FeatureIntDimension:          since(V1_9_1),
	FeatureChunkBlockEntities:    since(V1_9_4),
	FeatureOffHand:               since(V1_9),
	FeatureTagMetadata:           since(V1_12),
}

// Has reports whether revision v carries feature f.
func (v Version) Has(f Feature) bool {
	if f >= featureCount {
		return false
	}
	return featureTable[f].Contains(v)
}

// NumberKind is the wire representation of a numeric field.
type NumberKind uint8

const (
	KindByte NumberKind = iota
	KindShort
	KindInt
	KindLong
	KindVarInt
	KindDouble
)

// NumberRule describes how a numeric field is encoded: its wire kind and,
// for fixed-point fields, the divisor applied on decode.
type NumberRule struct {
	Kind    NumberKind
	Divisor float64
}

// Rule names a numeric field whose width or scale depends on the revision.
type Rule uint8

const (
	RuleMoveDelta        Rule = iota // relative entity move component
	RuleAbsolutePosition             // absolute entity position component
	RuleVelocity                     // entity velocity component
	RuleEntityID                     // entity id in entity packets
	RuleKeepAliveID                  // keep-alive id
	RuleMobType                      // mob type in spawn mob
	RuleLoginArrayLength             // byte array lengths in the login phase
	RuleDestroyCount                 // entry count of destroy entities
	ruleCount
)

type ruleRow struct {
	Range
	NumberRule
}

var ruleTable = [ruleCount][]ruleRow{
	RuleMoveDelta: {
		{before(V1_9), NumberRule{KindByte, 32}},
		{since(V1_9), NumberRule{KindShort, 4096}},
	},
	RuleAbsolutePosition: {
		{before(V1_9), NumberRule{KindInt, 32}},
		{since(V1_9), NumberRule{KindDouble, 1}},
	},
	RuleVelocity: {
		{since(V1_7_2), NumberRule{KindShort, 8000}},
	},
	RuleEntityID: {
		{before(V1_8), NumberRule{KindInt, 1}},
		{since(V1_8), NumberRule{KindVarInt, 1}},
	},
	RuleKeepAliveID: {
		{before(V1_8), NumberRule{KindInt, 1}},
		{Range{V1_8, V1_12_2 - 1}, NumberRule{KindVarInt, 1}},
		{since(V1_12_2), NumberRule{KindLong, 1}},
	},
	RuleMobType: {
		{before(V1_11), NumberRule{KindByte, 1}},
		{since(V1_11), NumberRule{KindVarInt, 1}},
	},
	RuleLoginArrayLength: {
		{before(V1_8), NumberRule{KindShort, 1}},
		{since(V1_8), NumberRule{KindVarInt, 1}},
	},
	RuleDestroyCount: {
		{before(V1_8), NumberRule{KindByte, 1}},
		{since(V1_8), NumberRule{KindVarInt, 1}},
	},
}

// Rule returns the encoding of a numeric field at revision v. Revisions
// outside every row fall back to the newest row.
func (v Version) Rule(r Rule) NumberRule {
	rows := ruleTable[r]
	for _, row := range rows {
		if row.Contains(v) {
			return row.NumberRule
		}
	}
	return rows[len(rows)-1].NumberRule
}
