package network

import (
	"encoding/json"
	"fmt"

	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

func handleKeepAlive(c *Connection, p protocol.Packet) error {
	return c.Send(&protocol.KeepAliveResponse{ID: p.(*protocol.KeepAlive).ID})
}

func handleJoinGame(c *Connection, p protocol.Packet) error {
	jg := p.(*protocol.JoinGame)
	c.world.UpdatePlayer(func(pl *world.Player) {
		pl.EntityID = jg.EntityID
		pl.GameMode = jg.GameMode
		pl.Hardcore = jg.Hardcore
		pl.Dimension = jg.Dimension
		pl.Difficulty = jg.Difficulty
		pl.MaxPlayers = int32(jg.MaxPlayers)
		pl.LevelType = jg.LevelType
	})
	c.logger.Info().
		Int32("entity_id", jg.EntityID).
		Str("game_mode", jg.GameMode.String()).
		Int32("dimension", jg.Dimension).
		Msg("joined game")
	return nil
}

// handleRespawn switches dimension. Chunks and entities of the old dimension
// are dropped; the inventory survives.
func handleRespawn(c *Connection, p protocol.Packet) error {
	rs := p.(*protocol.Respawn)
	c.world.ChangeDimension(rs.Dimension)
	c.world.UpdatePlayer(func(pl *world.Player) {
		pl.Difficulty = rs.Difficulty
		pl.GameMode = rs.GameMode
		pl.LevelType = rs.LevelType
		pl.Spawned = false
	})
	c.logger.Info().Int32("dimension", rs.Dimension).Msg("respawned")
	return nil
}

func handleChatMessage(c *Connection, p protocol.Packet) error {
	msg := p.(*protocol.ChatMessage)
	raw, err := json.Marshal(msg.Message)
	if err != nil {
		return err
	}
	text := msg.Message.ClearString()
	c.logger.Info().Int8("position", msg.Position).Str("text", text).Msg("chat")
	c.emit(events.EventChatReceived, events.ChatReceivedPayload{
		Text:     text,
		Raw:      string(raw),
		Position: msg.Position,
	})
	return nil
}

func handleTimeUpdate(c *Connection, p protocol.Packet) error {
	tu := p.(*protocol.TimeUpdate)
	c.world.SetTime(tu.WorldAge, tu.TimeOfDay)
	return nil
}

func handleSpawnPosition(c *Connection, p protocol.Packet) error {
	pos := p.(*protocol.SpawnPosition).Pos
	c.world.UpdatePlayer(func(pl *world.Player) { pl.Spawn = pos })
	return nil
}

func handleUpdateHealth(c *Connection, p protocol.Packet) error {
	uh := p.(*protocol.UpdateHealth)
	c.world.UpdatePlayer(func(pl *world.Player) {
		pl.Health = uh.Health
		pl.Food = uh.Food
		pl.Saturation = uh.Saturation
	})
	c.emit(events.EventHealthChanged, events.HealthChangedPayload{
		Health:     uh.Health,
		Food:       uh.Food,
		Saturation: uh.Saturation,
	})
	return nil
}

// handlePlayerPositionLook confirms a server teleport. The replies are queued
// before the player record changes so a full queue leaves it untouched.
func handlePlayerPositionLook(c *Connection, p protocol.Packet) error {
	ppl := p.(*protocol.PlayerPositionLook)
	cur := c.world.Player()
	pos, yaw, pitch := ppl.Apply(cur.Position, cur.Yaw, cur.Pitch)

	if c.version.Has(protocol.FeatureTeleportID) {
		if err := c.Send(&protocol.TeleportConfirm{TeleportID: ppl.TeleportID}); err != nil {
			return err
		}
	}
	err := c.Send(&protocol.PositionLookSend{Position: pos, Yaw: yaw, Pitch: pitch, OnGround: ppl.OnGround})
	if err != nil {
		return err
	}

	c.world.UpdatePlayer(func(pl *world.Player) {
		pl.Position = pos
		pl.Yaw, pl.Pitch = yaw, pitch
		pl.OnGround = ppl.OnGround
		pl.Spawned = true
	})
	c.logger.Debug().
		Float64("x", pos.X()).Float64("y", pos.Y()).Float64("z", pos.Z()).
		Msg("position set by server")
	return nil
}

func handleHeldItemChange(c *Connection, p protocol.Packet) error {
	slot := p.(*protocol.HeldItemChange).Slot
	if slot < 0 || slot > 8 {
		return fmt.Errorf("hotbar slot %d out of range", slot)
	}
	c.world.UpdatePlayer(func(pl *world.Player) { pl.HeldSlot = slot })
	return nil
}

func handleChangeGameState(c *Connection, p protocol.Packet) error {
	gs := p.(*protocol.ChangeGameState)
	switch gs.Reason {
	case protocol.GameStateChangeGameMode:
		mode := world.GameMode(gs.Value)
		c.world.UpdatePlayer(func(pl *world.Player) { pl.GameMode = mode })
		c.logger.Info().Str("game_mode", mode.String()).Msg("game mode changed")
	default:
		c.logger.Debug().Uint8("reason", gs.Reason).Float32("value", gs.Value).Msg("game state changed")
	}
	return nil
}

func handleDisconnect(c *Connection, p protocol.Packet) error {
	reason := p.(*protocol.Disconnect).Reason.ClearString()
	c.shutdown("kicked", &DisconnectError{Reason: reason})
	return nil
}
