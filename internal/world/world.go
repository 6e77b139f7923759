package world

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// BlockChange is one absolute block update.
type BlockChange struct {
	Pos   BlockPos   `json:"pos"`
	State BlockState `json:"state"`
}

// Column is a decoded chunk column ready to be merged into the world.
// BlockEntities are merged after the sections, under the same lock.
type Column struct {
	Chunk         *Chunk
	Mask          uint16
	GroundUp      bool
	BlockEntities map[BlockPos]*BlockEntity
}

// World mirrors chunks, entities, windows and the local player for one
// connection. Ids are only unique within that connection's lifetime.
type World struct {
	mu        sync.RWMutex
	chunks    map[ChunkPos]*Chunk
	entities  map[int32]*Entity
	windows   map[int16]*Window
	cursor    *ItemStack
	player    Player
	worldAge  int64
	timeOfDay int64
}

// NewWorld creates an empty world whose player inventory is already open.
func NewWorld() *World {
	w := &World{}
	w.reset()
	return w
}

func (w *World) reset() {
	w.chunks = make(map[ChunkPos]*Chunk)
	w.entities = make(map[int32]*Entity)
	w.windows = map[int16]*Window{
		PlayerWindowID: newWindow(PlayerWindowID, "minecraft:inventory", "Inventory", PlayerInventorySize),
	}
	w.cursor = nil
}

// Clear drops every chunk, entity and container. Used when the connection
// is torn down.
func (w *World) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
	w.player = Player{}
}

// ChangeDimension unloads all chunks and entities. The player record and
// the personal inventory survive.
func (w *World) ChangeDimension(dimension int32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv := w.windows[PlayerWindowID]
	w.reset()
	w.windows[PlayerWindowID] = inv
	w.player.Dimension = dimension
}

// ---- Chunks and blocks ----

// LoadColumns merges decoded columns. The whole batch is applied under one
// lock so readers never observe half of a bulk load.
func (w *World) LoadColumns(cols []Column) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, col := range cols {
		pos := col.Chunk.Pos
		existing, ok := w.chunks[pos]
		if !ok {
			existing = NewChunk(pos)
			w.chunks[pos] = existing
		}
		existing.Merge(col.Chunk, col.Mask, col.GroundUp)
		for pos, be := range col.BlockEntities {
			existing.BlockEntities[pos] = be
		}
	}
}

// UnloadChunk forgets a column and the block entities it carried.
func (w *World) UnloadChunk(pos ChunkPos) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.chunks[pos]; !ok {
		return false
	}
	delete(w.chunks, pos)
	return true
}

// SetBlocks applies every change in order, creating missing columns. It
// returns the number of changed slots.
func (w *World) SetBlocks(changes []BlockChange) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range changes {
		if w.setBlockLocked(c.Pos, c.State) {
			n++
		}
	}
	return n
}

func (w *World) setBlockLocked(pos BlockPos, state BlockState) bool {
	cp := pos.Chunk()
	c, ok := w.chunks[cp]
	if !ok {
		c = NewChunk(cp)
		w.chunks[cp] = c
	}
	if !c.SetBlock(int(pos.X&0x0F), int(pos.Y), int(pos.Z&0x0F), state) {
		return false
	}
	if state == Air {
		delete(c.BlockEntities, pos)
	}
	return true
}

// Block returns the state at pos, or air for unloaded columns.
func (w *World) Block(pos BlockPos) BlockState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[pos.Chunk()]
	if !ok {
		return Air
	}
	return c.Block(int(pos.X&0x0F), int(pos.Y), int(pos.Z&0x0F))
}

// SetBlockEntity stores side data for a block in a loaded column. Updates
// for columns that are not loaded are dropped.
func (w *World) SetBlockEntity(be *BlockEntity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.chunks[be.Pos.Chunk()]
	if !ok {
		return false
	}
	if prev, ok := c.BlockEntities[be.Pos]; ok && be.Data == nil && prev.Data != nil {
		be.Data = prev.Data
	}
	c.BlockEntities[be.Pos] = be
	return true
}

// BlockEntity returns a copy of the side data at pos.
func (w *World) BlockEntity(pos BlockPos) (BlockEntity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[pos.Chunk()]
	if !ok {
		return BlockEntity{}, false
	}
	be, ok := c.BlockEntities[pos]
	if !ok {
		return BlockEntity{}, false
	}
	return *be, true
}

// HasChunk reports whether the column is loaded.
func (w *World) HasChunk(pos ChunkPos) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.chunks[pos]
	return ok
}

// ChunkBlocks copies the block states of one section of a loaded column.
func (w *World) ChunkBlocks(pos ChunkPos, section int) ([SectionVolume]BlockState, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out [SectionVolume]BlockState
	c, ok := w.chunks[pos]
	if !ok || section < 0 || section >= SectionsPerColumn {
		return out, false
	}
	if s := c.Sections[section]; s != nil {
		out = s.States
	}
	return out, true
}

// Chunks lists summaries of the loaded columns sorted by position.
func (w *World) Chunks() []ChunkSummary {
	w.mu.RLock()
	out := make([]ChunkSummary, 0, len(w.chunks))
	for _, c := range w.chunks {
		out = append(out, c.summary())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.X != out[j].Pos.X {
			return out[i].Pos.X < out[j].Pos.X
		}
		return out[i].Pos.Z < out[j].Pos.Z
	})
	return out
}

// ---- Entities ----

// SpawnEntity inserts the entity, replacing any stale record with the same id.
func (w *World) SpawnEntity(e *Entity) {
	w.mu.Lock()
	w.entities[e.ID] = e
	w.mu.Unlock()
}

// RemoveEntities drops the listed ids and returns the ones that existed.
func (w *World) RemoveEntities(ids []int32) []int32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed := make([]int32, 0, len(ids))
	for _, id := range ids {
		if _, ok := w.entities[id]; ok {
			delete(w.entities, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// UpdateEntity runs fn on the entity with the given id. Unknown ids are a
// no-op and report false.
func (w *World) UpdateEntity(id int32, fn func(e *Entity)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return false
	}
	fn(e)
	return true
}

// Motion is a relative update: a position delta, a new look, or both.
type Motion struct {
	Delta      mgl64.Vec3
	Yaw, Pitch float32
	OnGround   bool
	HasDelta   bool
	HasLook    bool
}

// MoveEntity applies m and returns the resulting position.
func (w *World) MoveEntity(id int32, m Motion) (mgl64.Vec3, bool) {
	var pos mgl64.Vec3
	ok := w.UpdateEntity(id, func(e *Entity) {
		if m.HasDelta {
			e.Position = e.Position.Add(m.Delta)
		}
		if m.HasLook {
			e.Yaw, e.Pitch = m.Yaw, m.Pitch
		}
		e.OnGround = m.OnGround
		pos = e.Position
	})
	return pos, ok
}

// Entity returns a copy of the entity.
func (w *World) Entity(id int32) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Entities returns copies of every entity sorted by id.
func (w *World) Entities() []*Entity {
	w.mu.RLock()
	out := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e.Clone())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntityCount returns the number of tracked entities.
func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// ---- Windows ----

// OpenWindow registers a container. Window 0 can never be replaced.
func (w *World) OpenWindow(id int16, typ, title string, size int, entity int32) bool {
	if id == PlayerWindowID {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	win := newWindow(id, typ, title, size)
	win.Entity = entity
	w.windows[id] = win
	return true
}

// CloseWindow invalidates a container. Closing window 0 is ignored.
func (w *World) CloseWindow(id int16) bool {
	if id == PlayerWindowID {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.windows[id]; !ok {
		return false
	}
	delete(w.windows, id)
	w.cursor = nil
	return true
}

// SetSlot updates a single slot. Window -1 slot -1 is the cursor.
func (w *World) SetSlot(window int16, slot int16, item *ItemStack) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if window == CursorWindowID && slot == CursorSlot {
		w.cursor = item
		return true
	}
	win, ok := w.windows[window]
	if !ok {
		return false
	}
	return win.set(int(slot), item)
}

// SetWindowItems replaces the contents of a window.
func (w *World) SetWindowItems(window int16, items []*ItemStack) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	win, ok := w.windows[window]
	if !ok {
		return false
	}
	slots := make([]*ItemStack, len(items))
	copy(slots, items)
	if window == PlayerWindowID && len(slots) < PlayerInventorySize {
		grown := make([]*ItemStack, PlayerInventorySize)
		copy(grown, slots)
		slots = grown
	}
	win.Slots = slots
	return true
}

// Window returns a copy of an open window.
func (w *World) Window(id int16) (Window, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	win, ok := w.windows[id]
	if !ok {
		return Window{}, false
	}
	return win.clone(), true
}

// Windows returns copies of all open windows sorted by id.
func (w *World) Windows() []Window {
	w.mu.RLock()
	out := make([]Window, 0, len(w.windows))
	for _, win := range w.windows {
		out = append(out, win.clone())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Cursor returns the stack held by the cursor.
func (w *World) Cursor() *ItemStack {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cursor.Clone()
}

// ---- Player and time ----

// UpdatePlayer runs fn on the player record.
func (w *World) UpdatePlayer(fn func(p *Player)) {
	w.mu.Lock()
	fn(&w.player)
	w.mu.Unlock()
}

// Player returns a copy of the player record.
func (w *World) Player() Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.player
}

// SetTime stores the world age and time of day.
func (w *World) SetTime(age, timeOfDay int64) {
	w.mu.Lock()
	w.worldAge, w.timeOfDay = age, timeOfDay
	w.mu.Unlock()
}

// Time returns the world age and time of day.
func (w *World) Time() (age, timeOfDay int64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.worldAge, w.timeOfDay
}
