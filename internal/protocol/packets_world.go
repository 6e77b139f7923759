package protocol

import (
	"fmt"

	"github.com/Tnze/go-mc/chat"

	"github.com/cubelink-project/cubelink/internal/world"
)

// ChunkData loads (or partially updates) one column.
type ChunkData struct {
	Column        world.Column
	BlockEntities []*world.Tag
}

func (*ChunkData) Kind() PacketKind { return PacketChunkData }

// Unload reports the pre-1.9 idiom of a ground-up column with no sections,
// which tells the client to drop the column.
func (p *ChunkData) Unload() bool {
	return p.Column.GroundUp && p.Column.Mask == 0
}

func decodeChunkData(r *Reader) (Packet, error) {
	x, err := r.Int32()
	if err != nil {
		return nil, err
	}
	z, err := r.Int32()
	if err != nil {
		return nil, err
	}
	pos := world.ChunkPos{X: x, Z: z}
	groundUp, err := r.Bool()
	if err != nil {
		return nil, err
	}
	p := &ChunkData{Column: world.Column{GroundUp: groundUp}}
	switch {
	case r.Has(FeaturePaletteChunks):
		mask, err := r.VarInt()
		if err != nil {
			return nil, err
		}
		p.Column.Mask = uint16(mask)
		size, err := r.Length()
		if err != nil {
			return nil, err
		}
		data, _ := r.take(size)
		sub := NewReader(data, r.version)
		if p.Column.Chunk, err = readPalettedColumn(sub, pos, p.Column.Mask, groundUp, r.Options.SkyLight); err != nil {
			return nil, err
		}
		if r.Has(FeatureChunkBlockEntities) {
			n, err := r.Length()
			if err != nil {
				return nil, err
			}
			p.BlockEntities = make([]*world.Tag, 0, n)
			for i := 0; i < n; i++ {
				t, err := r.Tag()
				if err != nil {
					return nil, err
				}
				if t != nil {
					p.BlockEntities = append(p.BlockEntities, t)
				}
			}
		}
	case r.Has(FeaturePackedPosition):
		mask, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		p.Column.Mask = mask
		size, err := r.Length()
		if err != nil {
			return nil, err
		}
		data, _ := r.take(size)
		if p.Column.Chunk, err = readFlatColumn(NewReader(data, r.version), pos, mask, groundUp, r.Options.SkyLight); err != nil {
			return nil, err
		}
	default:
		mask, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		addMask, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		p.Column.Mask = mask
		size, err := r.Int32()
		if err != nil {
			return nil, err
		}
		compressed, err := r.take(int(size))
		if err != nil {
			return nil, err
		}
		data, err := inflate(compressed)
		if err != nil {
			return nil, err
		}
		if p.Column.Chunk, _, err = readLegacyColumn(data, pos, mask, addMask, groundUp, r.Options.SkyLight); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// MapChunkBulk loads several full columns at once (1.7 and 1.8).
type MapChunkBulk struct {
	Columns []world.Column
}

func (*MapChunkBulk) Kind() PacketKind { return PacketMapChunkBulk }

type bulkMeta struct {
	pos           world.ChunkPos
	mask, addMask uint16
}

func decodeMapChunkBulk(r *Reader) (Packet, error) {
	if r.Has(FeaturePackedPosition) {
		return decodeFlatChunkBulk(r)
	}
	count, err := r.Int16()
	if err != nil {
		return nil, err
	}
	size, err := r.Int32()
	if err != nil {
		return nil, err
	}
	skyLight, err := r.Bool()
	if err != nil {
		return nil, err
	}
	compressed, err := r.take(int(size))
	if err != nil {
		return nil, err
	}
	// Each column header is 12 bytes.
	if count < 0 || int(count)*12 > r.Remaining() {
		return nil, fmt.Errorf("%w: %d bulk columns, %d bytes remaining", ErrOutOfBounds, count, r.Remaining())
	}
	metas := make([]bulkMeta, count)
	for i := range metas {
		m := &metas[i]
		if m.pos.X, err = r.Int32(); err != nil {
			return nil, err
		}
		if m.pos.Z, err = r.Int32(); err != nil {
			return nil, err
		}
		if m.mask, err = r.Uint16(); err != nil {
			return nil, err
		}
		if m.addMask, err = r.Uint16(); err != nil {
			return nil, err
		}
	}
	data, err := inflate(compressed)
	if err != nil {
		return nil, err
	}
	p := &MapChunkBulk{Columns: make([]world.Column, 0, len(metas))}
	for _, m := range metas {
		c, used, err := readLegacyColumn(data, m.pos, m.mask, m.addMask, true, skyLight)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", m.pos, err)
		}
		data = data[used:]
		p.Columns = append(p.Columns, world.Column{Chunk: c, Mask: m.mask, GroundUp: true})
	}
	return p, nil
}

func decodeFlatChunkBulk(r *Reader) (Packet, error) {
	skyLight, err := r.Bool()
	if err != nil {
		return nil, err
	}
	count, err := r.Length()
	if err != nil {
		return nil, err
	}
	metas := make([]bulkMeta, count)
	for i := range metas {
		m := &metas[i]
		if m.pos.X, err = r.Int32(); err != nil {
			return nil, err
		}
		if m.pos.Z, err = r.Int32(); err != nil {
			return nil, err
		}
		if m.mask, err = r.Uint16(); err != nil {
			return nil, err
		}
	}
	p := &MapChunkBulk{Columns: make([]world.Column, 0, len(metas))}
	for _, m := range metas {
		c, err := readFlatColumn(r, m.pos, m.mask, true, skyLight)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", m.pos, err)
		}
		p.Columns = append(p.Columns, world.Column{Chunk: c, Mask: m.mask, GroundUp: true})
	}
	return p, nil
}

// UnloadChunk drops a column (1.9+).
type UnloadChunk struct {
	Pos world.ChunkPos
}

func (*UnloadChunk) Kind() PacketKind { return PacketUnloadChunk }

func decodeUnloadChunk(r *Reader) (Packet, error) {
	p := &UnloadChunk{}
	var err error
	if p.Pos.X, err = r.Int32(); err != nil {
		return nil, err
	}
	if p.Pos.Z, err = r.Int32(); err != nil {
		return nil, err
	}
	return p, nil
}

// BlockChange sets one block.
type BlockChange struct {
	Change world.BlockChange
}

func (*BlockChange) Kind() PacketKind { return PacketBlockChange }

func decodeBlockChange(r *Reader) (Packet, error) {
	p := &BlockChange{}
	if r.Has(FeaturePackedPosition) {
		pos, err := r.Position()
		if err != nil {
			return nil, err
		}
		state, err := r.VarInt()
		if err != nil {
			return nil, err
		}
		p.Change = world.BlockChange{Pos: pos, State: world.BlockState(state)}
		return p, nil
	}
	x, err := r.Int32()
	if err != nil {
		return nil, err
	}
	y, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	z, err := r.Int32()
	if err != nil {
		return nil, err
	}
	id, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	meta, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	p.Change = world.BlockChange{
		Pos:   world.BlockPos{X: x, Y: int32(y), Z: z},
		State: world.NewBlockState(uint16(id), meta),
	}
	return p, nil
}

// MultiBlockChange sets several blocks of one column. The record list is
// decoded completely before the packet exists, so a truncated payload
// never yields a partial update.
type MultiBlockChange struct {
	Chunk   world.ChunkPos
	Changes []world.BlockChange
}

func (*MultiBlockChange) Kind() PacketKind { return PacketMultiBlockChange }

func decodeMultiBlockChange(r *Reader) (Packet, error) {
	p := &MultiBlockChange{}
	var err error
	if p.Chunk.X, err = r.Int32(); err != nil {
		return nil, err
	}
	if p.Chunk.Z, err = r.Int32(); err != nil {
		return nil, err
	}
	baseX, baseZ := p.Chunk.X<<4, p.Chunk.Z<<4
	if r.Has(FeatureVarIntBlockRecords) {
		n, err := r.Length()
		if err != nil {
			return nil, err
		}
		changes := make([]world.BlockChange, n)
		for i := range changes {
			xz, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			y, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			state, err := r.VarInt()
			if err != nil {
				return nil, err
			}
			changes[i] = world.BlockChange{
				Pos:   world.BlockPos{X: baseX + int32(xz>>4), Y: int32(y), Z: baseZ + int32(xz&0x0F)},
				State: world.BlockState(state),
			}
		}
		p.Changes = changes
		return p, nil
	}
	n, err := r.Int16()
	if err != nil {
		return nil, err
	}
	size, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(size) != int(n)*4 {
		return nil, fmt.Errorf("%w: %d records in %d bytes", ErrOutOfBounds, n, size)
	}
	changes := make([]world.BlockChange, n)
	for i := range changes {
		rec, err := r.Int32()
		if err != nil {
			return nil, err
		}
		u := uint32(rec)
		changes[i] = world.BlockChange{
			Pos: world.BlockPos{
				X: baseX + int32(u>>28&0x0F),
				Y: int32(u >> 16 & 0xFF),
				Z: baseZ + int32(u>>24&0x0F),
			},
			State: world.NewBlockState(uint16(u>>4&0xFFF), uint8(u&0x0F)),
		}
	}
	p.Changes = changes
	return p, nil
}

// Encode writes the record list in the revision's layout.
func (p *MultiBlockChange) Encode(w *Writer) error {
	w.WriteInt32(p.Chunk.X).WriteInt32(p.Chunk.Z)
	if w.Has(FeatureVarIntBlockRecords) {
		w.WriteVarInt(int32(len(p.Changes)))
		for _, c := range p.Changes {
			w.WriteUint8(uint8(c.Pos.X&0x0F)<<4 | uint8(c.Pos.Z&0x0F))
			w.WriteUint8(uint8(c.Pos.Y))
			w.WriteVarInt(int32(c.State))
		}
		return w.err
	}
	w.WriteInt16(int16(len(p.Changes))).WriteInt32(int32(len(p.Changes) * 4))
	for _, c := range p.Changes {
		rec := uint32(c.Pos.X&0x0F)<<28 | uint32(c.Pos.Z&0x0F)<<24 | uint32(c.Pos.Y&0xFF)<<16 |
			uint32(c.State.ID()&0xFFF)<<4 | uint32(c.State.Meta())
		w.WriteInt32(int32(rec))
	}
	return w.err
}

// UpdateSign sets the four text lines of a sign (up to 1.9.2).
type UpdateSign struct {
	Pos   world.BlockPos
	Lines [4]string
}

func (*UpdateSign) Kind() PacketKind { return PacketUpdateSign }

func decodeUpdateSign(r *Reader) (Packet, error) {
	p := &UpdateSign{}
	var err error
	if p.Pos, err = r.legacyBlockPos(); err != nil {
		return nil, err
	}
	for i := range p.Lines {
		if r.Has(FeatureChatSignLines) {
			var msg chat.Message
			if msg, err = r.Chat(); err != nil {
				return nil, err
			}
			p.Lines[i] = msg.ClearString()
		} else if p.Lines[i], err = r.String(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// UpdateBlockEntity replaces the tag data of a block entity.
type UpdateBlockEntity struct {
	Pos    world.BlockPos
	Action uint8
	Data   *world.Tag
}

func (*UpdateBlockEntity) Kind() PacketKind { return PacketUpdateBlockEntity }

func decodeUpdateBlockEntity(r *Reader) (Packet, error) {
	p := &UpdateBlockEntity{}
	var err error
	if p.Pos, err = r.legacyBlockPos(); err != nil {
		return nil, err
	}
	if p.Action, err = r.Uint8(); err != nil {
		return nil, err
	}
	if r.Has(FeatureInlineSlotTags) {
		p.Data, err = r.Tag()
	} else {
		p.Data, err = r.GzipTag()
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// legacyBlockPos reads a packed position, or the 1.7 int/short/int triple.
func (r *Reader) legacyBlockPos() (world.BlockPos, error) {
	if r.Has(FeaturePackedPosition) {
		return r.Position()
	}
	var p world.BlockPos
	var err error
	if p.X, err = r.Int32(); err != nil {
		return p, err
	}
	y, err := r.Int16()
	if err != nil {
		return p, err
	}
	p.Y = int32(y)
	if p.Z, err = r.Int32(); err != nil {
		return p, err
	}
	return p, nil
}

// SpawnPosition sets the world spawn point.
type SpawnPosition struct {
	Pos world.BlockPos
}

func (*SpawnPosition) Kind() PacketKind { return PacketSpawnPosition }

func decodeSpawnPosition(r *Reader) (Packet, error) {
	if r.Has(FeaturePackedPosition) {
		pos, err := r.Position()
		if err != nil {
			return nil, err
		}
		return &SpawnPosition{Pos: pos}, nil
	}
	p := &SpawnPosition{}
	var err error
	if p.Pos.X, err = r.Int32(); err != nil {
		return nil, err
	}
	if p.Pos.Y, err = r.Int32(); err != nil {
		return nil, err
	}
	if p.Pos.Z, err = r.Int32(); err != nil {
		return nil, err
	}
	return p, nil
}

// TimeUpdate carries the world age and time of day.
type TimeUpdate struct {
	WorldAge  int64
	TimeOfDay int64
}

func (*TimeUpdate) Kind() PacketKind { return PacketTimeUpdate }

func decodeTimeUpdate(r *Reader) (Packet, error) {
	p := &TimeUpdate{}
	var err error
	if p.WorldAge, err = r.Int64(); err != nil {
		return nil, err
	}
	if p.TimeOfDay, err = r.Int64(); err != nil {
		return nil, err
	}
	return p, nil
}
