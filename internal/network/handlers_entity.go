package network

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

// Spawn packets are authoritative: they always insert, replacing a stale
// record that reuses the id. Every other entity packet is a no-op for ids
// the world does not track.

func (c *Connection) spawn(e *world.Entity) {
	c.world.SpawnEntity(e)
	c.logger.Trace().Int32("entity_id", e.ID).Str("kind", e.Info().Name).Msg("entity spawned")
	c.emit(events.EventEntitySpawned, events.EntitySpawnedPayload{
		EntityID: e.ID,
		Category: e.Kind.Category.String(),
		Type:     e.Info().Name,
		Position: e.Position,
	})
}

func handleSpawnPlayer(c *Connection, p protocol.Packet) error {
	sp := p.(*protocol.SpawnPlayer)
	e := world.NewEntity(sp.EntityID, world.Kind{Category: world.CategoryPlayer})
	e.UUID = sp.UUID
	e.Position = sp.Position
	e.Yaw, e.Pitch = sp.Yaw, sp.Pitch
	e.ApplyMetadata(sp.Metadata)
	if sp.HeldItem > 0 {
		e.SetEquipment(0, &world.ItemStack{ID: sp.HeldItem, Count: 1})
	}
	c.spawn(e)
	return nil
}

func handleSpawnObject(c *Connection, p protocol.Packet) error {
	so := p.(*protocol.SpawnObject)
	e := world.NewEntity(so.EntityID, world.Kind{Category: world.CategoryObject, TypeID: int32(so.Type)})
	e.UUID = so.UUID
	e.Position = so.Position
	e.Yaw, e.Pitch = so.Yaw, so.Pitch
	e.Data = so.Data
	e.Velocity = so.Velocity
	c.spawn(e)
	return nil
}

func handleSpawnMob(c *Connection, p protocol.Packet) error {
	sm := p.(*protocol.SpawnMob)
	e := world.NewEntity(sm.EntityID, world.Kind{Category: world.CategoryMob, TypeID: sm.Type})
	e.UUID = sm.UUID
	e.Position = sm.Position
	e.Yaw, e.Pitch = sm.Yaw, sm.Pitch
	e.HeadYaw = sm.HeadYaw
	e.Velocity = sm.Velocity
	e.ApplyMetadata(sm.Metadata)
	c.spawn(e)
	return nil
}

func handleSpawnExperienceOrb(c *Connection, p protocol.Packet) error {
	so := p.(*protocol.SpawnExperienceOrb)
	e := world.NewEntity(so.EntityID, world.Kind{Category: world.CategoryExperienceOrb})
	e.Position = so.Position
	e.Data = int32(so.Count)
	c.spawn(e)
	return nil
}

func handleDestroyEntities(c *Connection, p protocol.Packet) error {
	removed := c.world.RemoveEntities(p.(*protocol.DestroyEntities).EntityIDs)
	if len(removed) > 0 {
		c.emit(events.EventEntityRemoved, events.EntityRemovedPayload{EntityIDs: removed})
	}
	return nil
}

// handleEntityMove serves relative move, look, and look and relative move.
func handleEntityMove(c *Connection, p protocol.Packet) error {
	m := p.(protocol.Mover).Move()
	pos, ok := c.world.MoveEntity(m.EntityID, world.Motion{
		Delta:    m.Delta,
		Yaw:      m.Yaw,
		Pitch:    m.Pitch,
		OnGround: m.OnGround,
		HasDelta: m.HasDelta,
		HasLook:  m.HasLook,
	})
	if ok && m.HasDelta {
		c.emitMoved(m.EntityID, pos, m.OnGround)
	}
	return nil
}

func handleEntityTeleport(c *Connection, p protocol.Packet) error {
	et := p.(*protocol.EntityTeleport)
	ok := c.world.UpdateEntity(et.EntityID, func(e *world.Entity) {
		e.Position = et.Position
		e.Yaw, e.Pitch = et.Yaw, et.Pitch
		e.OnGround = et.OnGround
	})
	if ok {
		c.emitMoved(et.EntityID, et.Position, et.OnGround)
	}
	return nil
}

func (c *Connection) emitMoved(id int32, pos mgl64.Vec3, onGround bool) {
	c.emit(events.EventEntityMoved, events.EntityMovedPayload{EntityID: id, Position: pos, OnGround: onGround})
}

func handleEntityVelocity(c *Connection, p protocol.Packet) error {
	ev := p.(*protocol.EntityVelocity)
	c.world.UpdateEntity(ev.EntityID, func(e *world.Entity) {
		if e.Caps.Has(world.HasVelocity) {
			e.Velocity = ev.Velocity
		}
	})
	return nil
}

func handleEntityHeadLook(c *Connection, p protocol.Packet) error {
	hl := p.(*protocol.EntityHeadLook)
	c.world.UpdateEntity(hl.EntityID, func(e *world.Entity) {
		if e.Caps.Has(world.HasHeadLook) {
			e.HeadYaw = hl.HeadYaw
		}
	})
	return nil
}

func handleEntityMetadata(c *Connection, p protocol.Packet) error {
	em := p.(*protocol.EntityMetadata)
	c.world.UpdateEntity(em.EntityID, func(e *world.Entity) {
		e.ApplyMetadata(em.Metadata)
	})
	return nil
}

func handleEntityEquipment(c *Connection, p protocol.Packet) error {
	eq := p.(*protocol.EntityEquipment)
	c.world.UpdateEntity(eq.EntityID, func(e *world.Entity) {
		e.SetEquipment(int(eq.Slot), eq.Item)
	})
	return nil
}
