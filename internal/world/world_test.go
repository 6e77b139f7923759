package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSetBlocksUpsertsColumns(t *testing.T) {
	w := NewWorld()
	stone := NewBlockState(1, 0)
	wool := NewBlockState(35, 14)

	n := w.SetBlocks([]BlockChange{
		{Pos: BlockPos{X: 5, Y: 64, Z: 5}, State: stone},
		{Pos: BlockPos{X: -1, Y: 0, Z: -17}, State: wool},
		{Pos: BlockPos{X: 0, Y: 300, Z: 0}, State: stone},
	})
	if n != 2 {
		t.Fatalf("changed %d blocks, want 2", n)
	}
	if got := w.Block(BlockPos{X: 5, Y: 64, Z: 5}); got != stone {
		t.Errorf("block = %d, want %d", got, stone)
	}
	if got := w.Block(BlockPos{X: -1, Y: 0, Z: -17}); got != wool || got.ID() != 35 || got.Meta() != 14 {
		t.Errorf("block = %d", got)
	}
	if !w.HasChunk(ChunkPos{X: -1, Z: -2}) {
		t.Error("negative coordinates should land in chunk [-1, -2]")
	}
	if got := w.Block(BlockPos{X: 1000, Y: 10, Z: 1000}); got != Air {
		t.Errorf("unloaded block = %d, want air", got)
	}
}

func TestLoadColumnsMerge(t *testing.T) {
	w := NewWorld()
	pos := ChunkPos{X: 3, Z: 4}

	full := NewChunk(pos)
	full.SetBlock(0, 10, 0, NewBlockState(2, 0))
	full.SetBlock(0, 40, 0, NewBlockState(3, 0))
	full.Biomes = make([]byte, 256)
	w.LoadColumns([]Column{{Chunk: full, Mask: 0b101, GroundUp: true}})

	partial := NewChunk(pos)
	partial.SetBlock(0, 40, 0, NewBlockState(4, 0))
	w.LoadColumns([]Column{{Chunk: partial, Mask: 0b100, GroundUp: false}})

	if got := w.Block(BlockPos{X: 48, Y: 10, Z: 64}); got.ID() != 2 {
		t.Errorf("section 0 lost on partial update: %d", got.ID())
	}
	if got := w.Block(BlockPos{X: 48, Y: 40, Z: 64}); got.ID() != 4 {
		t.Errorf("section 2 not replaced: %d", got.ID())
	}

	summaries := w.Chunks()
	if len(summaries) != 1 || summaries[0].Sections != 0b101 || summaries[0].NonAirBlocks != 2 {
		t.Errorf("summary = %+v", summaries)
	}

	if !w.UnloadChunk(pos) || w.HasChunk(pos) {
		t.Error("unload failed")
	}
	if w.UnloadChunk(pos) {
		t.Error("second unload should report false")
	}
}

func TestBlockEntities(t *testing.T) {
	w := NewWorld()
	pos := BlockPos{X: 1, Y: 70, Z: 1}

	if w.SetBlockEntity(&BlockEntity{Pos: pos, SignText: [4]string{"hi"}}) {
		t.Fatal("block entity in an unloaded column must be dropped")
	}

	w.SetBlocks([]BlockChange{{Pos: pos, State: NewBlockState(63, 0)}})
	if !w.SetBlockEntity(&BlockEntity{Pos: pos, SignText: [4]string{"hi"}}) {
		t.Fatal("block entity in a loaded column was rejected")
	}
	be, ok := w.BlockEntity(pos)
	if !ok || be.SignText[0] != "hi" {
		t.Fatalf("block entity = %+v, %v", be, ok)
	}

	w.SetBlocks([]BlockChange{{Pos: pos, State: Air}})
	if _, ok := w.BlockEntity(pos); ok {
		t.Error("setting air should clear the block entity")
	}
}

func TestLoadColumnsMergesBlockEntities(t *testing.T) {
	w := NewWorld()
	pos := ChunkPos{X: -1, Z: 0}
	chest := BlockPos{X: -3, Y: 65, Z: 4}
	sign := BlockPos{X: -10, Y: 80, Z: 9}

	src := NewChunk(pos)
	w.LoadColumns([]Column{{
		Chunk:         src,
		GroundUp:      true,
		BlockEntities: map[BlockPos]*BlockEntity{chest: {Pos: chest}},
	}})
	if _, ok := w.BlockEntity(chest); !ok {
		t.Fatal("block entity of a ground-up column was dropped")
	}
	if len(src.BlockEntities) != 0 {
		t.Error("source chunk was modified")
	}

	// A partial column adds to what is loaded.
	w.LoadColumns([]Column{{Chunk: NewChunk(pos), Mask: 1 << 5, BlockEntities: map[BlockPos]*BlockEntity{sign: {Pos: sign}}}})
	for _, p := range []BlockPos{chest, sign} {
		if _, ok := w.BlockEntity(p); !ok {
			t.Errorf("block entity at %s missing after partial load", p)
		}
	}

	// A ground-up column replaces them.
	w.LoadColumns([]Column{{Chunk: NewChunk(pos), GroundUp: true}})
	if _, ok := w.BlockEntity(chest); ok {
		t.Error("ground-up column kept stale block entities")
	}
}

func TestEntityLifecycle(t *testing.T) {
	w := NewWorld()
	e := NewEntity(7, Kind{Category: CategoryMob, TypeID: 54})
	e.Position = mgl64.Vec3{10, 64, 10}
	w.SpawnEntity(e)

	pos, ok := w.MoveEntity(7, Motion{Delta: mgl64.Vec3{0.5, -1, 0}, HasDelta: true, OnGround: true})
	if !ok || pos != (mgl64.Vec3{10.5, 63, 10}) {
		t.Fatalf("move = %v, %v", pos, ok)
	}
	if _, ok := w.MoveEntity(99, Motion{Delta: mgl64.Vec3{1, 1, 1}, HasDelta: true}); ok {
		t.Error("moving an unknown entity must be a no-op")
	}
	// A look-only update keeps the position.
	pos, _ = w.MoveEntity(7, Motion{Yaw: 90, Pitch: -10, HasLook: true, OnGround: true})
	if pos != (mgl64.Vec3{10.5, 63, 10}) {
		t.Errorf("look moved the entity to %v", pos)
	}

	got, ok := w.Entity(7)
	if !ok || !got.OnGround || got.Yaw != 90 || got.Pitch != -10 || got.Info().Name != "zombie" {
		t.Fatalf("entity = %+v, %v", got, ok)
	}
	got.Position = mgl64.Vec3{}
	if again, _ := w.Entity(7); again.Position == (mgl64.Vec3{}) {
		t.Error("Entity must return a copy")
	}

	if !got.Caps.Has(HasEquipment) {
		t.Error("zombie should carry equipment")
	}

	removed := w.RemoveEntities([]int32{7, 8})
	if len(removed) != 1 || removed[0] != 7 || w.EntityCount() != 0 {
		t.Errorf("removed = %v, count = %d", removed, w.EntityCount())
	}
}

func TestWindows(t *testing.T) {
	w := NewWorld()

	if w.OpenWindow(PlayerWindowID, "chest", "Chest", 27, 0) {
		t.Error("window 0 must not be replaceable")
	}
	if w.CloseWindow(PlayerWindowID) {
		t.Error("window 0 must not be closable")
	}

	if !w.OpenWindow(3, "minecraft:chest", "Chest", 27, 0) {
		t.Fatal("open failed")
	}
	item := &ItemStack{ID: 264, Count: 3}
	if !w.SetSlot(3, 5, item) {
		t.Fatal("set slot failed")
	}
	if !w.SetSlot(3, 40, item) {
		t.Fatal("slot beyond the advertised size should grow the window")
	}
	win, ok := w.Window(3)
	if !ok || win.Filled() != 2 || len(win.Slots) != 41 {
		t.Fatalf("window = %+v", win)
	}

	w.SetSlot(CursorWindowID, CursorSlot, item)
	if c := w.Cursor(); c == nil || c.ID != 264 {
		t.Errorf("cursor = %v", c)
	}
	if !w.CloseWindow(3) {
		t.Fatal("close failed")
	}
	if w.Cursor() != nil {
		t.Error("closing a window should drop the cursor stack")
	}
	if w.SetSlot(3, 0, item) {
		t.Error("slot update for a closed window must fail")
	}

	if !w.SetWindowItems(PlayerWindowID, []*ItemStack{item}) {
		t.Fatal("set window items failed")
	}
	inv, _ := w.Window(PlayerWindowID)
	if len(inv.Slots) != PlayerInventorySize {
		t.Errorf("player inventory has %d slots", len(inv.Slots))
	}
}

func TestChangeDimensionKeepsInventory(t *testing.T) {
	w := NewWorld()
	w.SetSlot(PlayerWindowID, 36, &ItemStack{ID: 1, Count: 1})
	w.SetBlocks([]BlockChange{{Pos: BlockPos{Y: 1}, State: NewBlockState(1, 0)}})
	w.SpawnEntity(NewEntity(1, Kind{Category: CategoryMob, TypeID: 90}))
	w.UpdatePlayer(func(p *Player) { p.Name = "Steve" })

	w.ChangeDimension(DimensionNether)

	if len(w.Chunks()) != 0 || w.EntityCount() != 0 {
		t.Error("dimension change must drop chunks and entities")
	}
	if inv, _ := w.Window(PlayerWindowID); inv.Filled() != 1 {
		t.Error("dimension change must keep the player inventory")
	}
	p := w.Player()
	if p.Name != "Steve" || p.Dimension != DimensionNether || p.HasSkyLight() {
		t.Errorf("player = %+v", p)
	}

	w.Clear()
	if w.Player().Name != "" {
		t.Error("clear must reset the player")
	}
}
