package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// GameMode is the player's game mode as sent in Join Game.
type GameMode uint8

const (
	Survival GameMode = iota
	Creative
	Adventure
	Spectator
)

func (g GameMode) String() string {
	switch g & 0x07 {
	case Survival:
		return "survival"
	case Creative:
		return "creative"
	case Adventure:
		return "adventure"
	case Spectator:
		return "spectator"
	default:
		return "unknown"
	}
}

// Dimension ids.
const (
	DimensionNether    int32 = -1
	DimensionOverworld int32 = 0
	DimensionEnd       int32 = 1
)

// Player is the state of the local player.
type Player struct {
	EntityID   int32      `json:"entity_id"`
	UUID       uuid.UUID  `json:"uuid"`
	Name       string     `json:"name"`
	GameMode   GameMode   `json:"game_mode"`
	Hardcore   bool       `json:"hardcore"`
	Dimension  int32      `json:"dimension"`
	Difficulty uint8      `json:"difficulty"`
	LevelType  string     `json:"level_type"`
	MaxPlayers int32      `json:"max_players"`
	Position   mgl64.Vec3 `json:"position"`
	Yaw        float32    `json:"yaw"`
	Pitch      float32    `json:"pitch"`
	OnGround   bool       `json:"on_ground"`
	Health     float32    `json:"health"`
	Food       int32      `json:"food"`
	Saturation float32    `json:"saturation"`
	HeldSlot   int8       `json:"held_slot"`
	Spawn      BlockPos   `json:"spawn"`
	Spawned    bool       `json:"spawned"`
}

// HasSkyLight reports whether chunk data of the current dimension carries
// sky light arrays.
func (p Player) HasSkyLight() bool {
	return p.Dimension == DimensionOverworld
}

// Dead reports whether the last health update left the player at zero health.
func (p Player) Dead() bool {
	return p.Spawned && p.Health <= 0
}
