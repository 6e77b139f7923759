// Package world holds the locally mirrored, server-authoritative game state:
// chunk columns, blocks, block entities, entities, windows and the player.
//
// A World has exactly one logical writer (the inbound flow of a connection).
// Every exported read method returns copies so that external readers such as
// the REST API or the console can inspect a possibly stale snapshot without
// racing the writer.
package world

import (
	"fmt"

	"github.com/Tnze/go-mc/nbt"
)

// BlockPos is an absolute block coordinate.
type BlockPos struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// Chunk returns the column position containing the block.
func (p BlockPos) Chunk() ChunkPos {
	return ChunkPos{X: p.X >> 4, Z: p.Z >> 4}
}

func (p BlockPos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// ChunkPos identifies one 16x256x16 column.
type ChunkPos struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

func (p ChunkPos) String() string {
	return fmt.Sprintf("[%d, %d]", p.X, p.Z)
}

// BlockState is a legacy numeric block state: id<<4 | meta.
type BlockState uint16

// NewBlockState packs a block id and its 4-bit meta value.
func NewBlockState(id uint16, meta uint8) BlockState {
	return BlockState(id<<4 | uint16(meta&0x0F))
}

// ID returns the block id.
func (s BlockState) ID() uint16 { return uint16(s) >> 4 }

// Meta returns the 4-bit block metadata.
func (s BlockState) Meta() uint8 { return uint8(s & 0x0F) }

// Air is the empty block state.
const Air BlockState = 0

// Tag is a named structured tag value, kept as an opaque tree that the
// tag decoder can unmarshal on demand.
type Tag struct {
	Name string
	nbt.RawMessage
}

// Unmarshal decodes the tag payload into v.
func (t *Tag) Unmarshal(v any) error {
	if t == nil {
		return fmt.Errorf("nil tag")
	}
	return t.RawMessage.Unmarshal(v)
}

// ItemStack is the content of a single slot. A nil *ItemStack is an empty slot.
type ItemStack struct {
	ID     int16 `json:"id"`
	Count  int8  `json:"count"`
	Damage int16 `json:"damage"`
	Tag    *Tag  `json:"-"`
}

// Clone returns a copy of the stack. The tag payload is shared; tags are
// immutable once decoded.
func (s *ItemStack) Clone() *ItemStack {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *ItemStack) String() string {
	if s == nil {
		return "empty"
	}
	return fmt.Sprintf("%dx%d:%d", s.Count, s.ID, s.Damage)
}
