package network

import (
	"fmt"

	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

// ---- Chunks and blocks ----

type tagPosition struct {
	X int32 `nbt:"x"`
	Y int32 `nbt:"y"`
	Z int32 `nbt:"z"`
}

// handleChunkData merges one column. Embedded block entities are resolved
// before the world is touched, so a bad tag leaves the world as it was.
func handleChunkData(c *Connection, p protocol.Packet) error {
	cd := p.(*protocol.ChunkData)
	col := cd.Column
	pos := col.Chunk.Pos
	if cd.Unload() {
		if c.world.UnloadChunk(pos) {
			c.emit(events.EventChunkUnloaded, events.ChunkPayload{Pos: pos})
		}
		return nil
	}

	if len(cd.BlockEntities) > 0 {
		col.BlockEntities = make(map[world.BlockPos]*world.BlockEntity, len(cd.BlockEntities))
	}
	for _, tag := range cd.BlockEntities {
		var tp tagPosition
		if err := tag.Unmarshal(&tp); err != nil {
			return fmt.Errorf("block entity in chunk %s: %w", pos, err)
		}
		bp := world.BlockPos{X: tp.X, Y: tp.Y, Z: tp.Z}
		if bp.Chunk() != pos {
			return fmt.Errorf("block entity at %s outside chunk %s", bp, pos)
		}
		col.BlockEntities[bp] = &world.BlockEntity{Pos: bp, Data: tag}
	}

	c.world.LoadColumns([]world.Column{col})
	c.emit(events.EventChunkLoaded, events.ChunkPayload{Pos: pos})
	return nil
}

func handleMapChunkBulk(c *Connection, p protocol.Packet) error {
	cols := p.(*protocol.MapChunkBulk).Columns
	c.world.LoadColumns(cols)
	for _, col := range cols {
		c.emit(events.EventChunkLoaded, events.ChunkPayload{Pos: col.Chunk.Pos})
	}
	return nil
}

func handleUnloadChunk(c *Connection, p protocol.Packet) error {
	pos := p.(*protocol.UnloadChunk).Pos
	if c.world.UnloadChunk(pos) {
		c.emit(events.EventChunkUnloaded, events.ChunkPayload{Pos: pos})
	}
	return nil
}

func handleBlockChange(c *Connection, p protocol.Packet) error {
	return c.applyBlockChanges([]world.BlockChange{p.(*protocol.BlockChange).Change})
}

func handleMultiBlockChange(c *Connection, p protocol.Packet) error {
	return c.applyBlockChanges(p.(*protocol.MultiBlockChange).Changes)
}

func (c *Connection) applyBlockChanges(changes []world.BlockChange) error {
	n := c.world.SetBlocks(changes)
	c.logger.Trace().Int("changes", len(changes)).Int("applied", n).Msg("blocks changed")
	if n > 0 {
		c.emit(events.EventBlockChanged, events.BlockChangedPayload{Changes: changes})
	}
	return nil
}

func handleUpdateSign(c *Connection, p protocol.Packet) error {
	us := p.(*protocol.UpdateSign)
	c.world.SetBlockEntity(&world.BlockEntity{Pos: us.Pos, SignText: us.Lines})
	return nil
}

func handleUpdateBlockEntity(c *Connection, p protocol.Packet) error {
	ub := p.(*protocol.UpdateBlockEntity)
	c.world.SetBlockEntity(&world.BlockEntity{Pos: ub.Pos, Action: ub.Action, Data: ub.Data})
	return nil
}

// ---- Windows ----

func handleOpenWindow(c *Connection, p protocol.Packet) error {
	ow := p.(*protocol.OpenWindow)
	id := int16(ow.WindowID)
	if !c.world.OpenWindow(id, ow.Type, ow.Title, int(ow.Slots), ow.EntityID) {
		return fmt.Errorf("window %d cannot be opened", id)
	}
	c.emitInventory(id, events.InventoryOpened, 0, ow.Title)
	return nil
}

// handleCloseWindow invalidates a container. Window 0 is never closed.
func handleCloseWindow(c *Connection, p protocol.Packet) error {
	id := int16(p.(*protocol.CloseWindow).WindowID)
	if c.world.CloseWindow(id) {
		c.emitInventory(id, events.InventoryClosed, 0, "")
	}
	return nil
}

func handleSetSlot(c *Connection, p protocol.Packet) error {
	ss := p.(*protocol.SetSlot)
	id := int16(ss.WindowID)
	if c.world.SetSlot(id, ss.Slot, ss.Item) {
		c.emitInventory(id, events.InventorySlot, ss.Slot, "")
	}
	return nil
}

func handleWindowItems(c *Connection, p protocol.Packet) error {
	wi := p.(*protocol.WindowItems)
	id := int16(wi.WindowID)
	if c.world.SetWindowItems(id, wi.Items) {
		c.emitInventory(id, events.InventoryItems, 0, "")
	}
	return nil
}

func (c *Connection) emitInventory(id int16, action events.InventoryAction, slot int16, title string) {
	c.emit(events.EventInventoryChanged, events.InventoryChangedPayload{
		WindowID: id,
		Action:   action,
		Slot:     slot,
		Title:    title,
	})
}
