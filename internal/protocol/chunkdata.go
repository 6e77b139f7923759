package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/cubelink-project/cubelink/internal/world"
)

const (
	nibbleArray  = world.SectionVolume / 2
	biomeArray   = 256
	globalBits   = 13
	maxChunkData = 2 << 20
)

// DecodeOptions carries connection state that changes how some payloads
// are laid out but is not part of the payload itself.
type DecodeOptions struct {
	// SkyLight is true in dimensions whose chunk sections carry sky light.
	SkyLight bool
}

func popcount16(mask uint16) int {
	n := 0
	for ; mask != 0; mask &= mask - 1 {
		n++
	}
	return n
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed chunk data: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxChunkData))
	if err != nil {
		return nil, fmt.Errorf("failed to inflate chunk data: %w", err)
	}
	return out, nil
}

// readLegacyColumn decodes the type-grouped layout used before 1.8: all block
// id arrays, then metadata, block light, sky light, add nibbles and biomes.
func readLegacyColumn(data []byte, pos world.ChunkPos, mask, addMask uint16, groundUp, skyLight bool) (*world.Chunk, int, error) {
	r := NewReader(data, V1_7_2)
	sections := popcount16(mask)
	ids, err := r.take(sections * world.SectionVolume)
	if err != nil {
		return nil, 0, err
	}
	metas, err := r.take(sections * nibbleArray)
	if err != nil {
		return nil, 0, err
	}
	blockLight, err := r.take(sections * nibbleArray)
	if err != nil {
		return nil, 0, err
	}
	var sky []byte
	if skyLight {
		if sky, err = r.take(sections * nibbleArray); err != nil {
			return nil, 0, err
		}
	}
	adds, err := r.take(popcount16(addMask&mask) * nibbleArray)
	if err != nil {
		return nil, 0, err
	}
	c := world.NewChunk(pos)
	n, a := 0, 0
	for i := 0; i < world.SectionsPerColumn; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		s := &world.Section{}
		base := n * world.SectionVolume
		for j := 0; j < world.SectionVolume; j++ {
			id := uint16(ids[base+j])
			meta := nibble(metas[n*nibbleArray:], j)
			if addMask&(1<<i) != 0 {
				id |= uint16(nibble(adds[a*nibbleArray:], j)) << 8
			}
			s.States[j] = world.NewBlockState(id, meta)
		}
		if addMask&(1<<i) != 0 {
			a++
		}
		s.BlockLight = append([]byte(nil), blockLight[n*nibbleArray:(n+1)*nibbleArray]...)
		if skyLight {
			s.SkyLight = append([]byte(nil), sky[n*nibbleArray:(n+1)*nibbleArray]...)
		}
		c.Sections[i] = s
		n++
	}
	if groundUp {
		if c.Biomes, err = r.Bytes(biomeArray); err != nil {
			return nil, 0, err
		}
	}
	return c, r.Offset(), nil
}

func nibble(arr []byte, i int) uint8 {
	b := arr[i>>1]
	if i&1 == 0 {
		return b & 0x0F
	}
	return b >> 4
}

// readFlatColumn decodes the 1.8 layout: little-endian shorts holding
// id<<4|meta for every section, then light arrays and biomes.
func readFlatColumn(r *Reader, pos world.ChunkPos, mask uint16, groundUp, skyLight bool) (*world.Chunk, error) {
	sections := popcount16(mask)
	states, err := r.take(sections * world.SectionVolume * 2)
	if err != nil {
		return nil, err
	}
	blockLight, err := r.take(sections * nibbleArray)
	if err != nil {
		return nil, err
	}
	var sky []byte
	if skyLight {
		if sky, err = r.take(sections * nibbleArray); err != nil {
			return nil, err
		}
	}
	c := world.NewChunk(pos)
	n := 0
	for i := 0; i < world.SectionsPerColumn; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		s := &world.Section{}
		base := n * world.SectionVolume * 2
		for j := 0; j < world.SectionVolume; j++ {
			s.States[j] = world.BlockState(uint16(states[base+2*j]) | uint16(states[base+2*j+1])<<8)
		}
		s.BlockLight = append([]byte(nil), blockLight[n*nibbleArray:(n+1)*nibbleArray]...)
		if skyLight {
			s.SkyLight = append([]byte(nil), sky[n*nibbleArray:(n+1)*nibbleArray]...)
		}
		c.Sections[i] = s
		n++
	}
	if groundUp {
		if c.Biomes, err = r.Bytes(biomeArray); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// readPalettedColumn decodes the 1.9+ layout: per section a bits-per-block
// byte, a palette (empty for the global palette), a long array of packed
// indices that may straddle long boundaries, and light arrays.
func readPalettedColumn(r *Reader, pos world.ChunkPos, mask uint16, groundUp, skyLight bool) (*world.Chunk, error) {
	c := world.NewChunk(pos)
	for i := 0; i < world.SectionsPerColumn; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		s, err := readPalettedSection(r, skyLight)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		c.Sections[i] = s
	}
	if groundUp {
		var err error
		if c.Biomes, err = r.Bytes(biomeArray); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func readPalettedSection(r *Reader, skyLight bool) (*world.Section, error) {
	bits, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if bits == 0 || bits > 64 {
		return nil, fmt.Errorf("%w: %d bits per block", ErrOutOfBounds, bits)
	}
	if bits < 4 {
		bits = 4
	}
	paletteLen, err := r.Length()
	if err != nil {
		return nil, err
	}
	palette := make([]int32, paletteLen)
	for i := range palette {
		if palette[i], err = r.VarInt(); err != nil {
			return nil, err
		}
	}
	if bits > 8 {
		palette = nil
	}
	longs, err := r.Length()
	if err != nil {
		return nil, err
	}
	data := make([]uint64, longs)
	for i := range data {
		v, err := r.Int64()
		if err != nil {
			return nil, err
		}
		data[i] = uint64(v)
	}
	if need := (world.SectionVolume*int(bits) + 63) / 64; longs < need {
		return nil, fmt.Errorf("%w: %d longs for %d bits per block", ErrBufferUnderrun, longs, bits)
	}
	s := &world.Section{}
	valueMask := uint64(1)<<bits - 1
	for i := 0; i < world.SectionVolume; i++ {
		bitIndex := i * int(bits)
		start, offset := bitIndex/64, uint(bitIndex%64)
		end := ((i+1)*int(bits) - 1) / 64
		v := data[start] >> offset
		if start != end {
			v |= data[end] << (64 - offset)
		}
		v &= valueMask
		if palette != nil {
			if int(v) >= len(palette) {
				return nil, fmt.Errorf("%w: palette index %d of %d", ErrOutOfBounds, v, len(palette))
			}
			v = uint64(palette[v])
		}
		s.States[i] = world.BlockState(v)
	}
	if s.BlockLight, err = r.Bytes(nibbleArray); err != nil {
		return nil, err
	}
	if skyLight {
		if s.SkyLight, err = r.Bytes(nibbleArray); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ---- encoders, used by tests and tools that replay captured chunks ----

// EncodePalettedSection writes a section in the 1.9+ format using the global
// palette width.
func EncodePalettedSection(w *Writer, s *world.Section, skyLight bool) {
	w.WriteUint8(globalBits)
	w.WriteVarInt(0)
	longs := world.SectionVolume * globalBits / 64
	data := make([]uint64, longs)
	for i, st := range s.States {
		bitIndex := i * globalBits
		start, offset := bitIndex/64, uint(bitIndex%64)
		end := ((i+1)*globalBits - 1) / 64
		v := uint64(st) & (1<<globalBits - 1)
		data[start] |= v << offset
		if start != end {
			data[end] |= v >> (64 - offset)
		}
	}
	w.WriteVarInt(int32(longs))
	for _, v := range data {
		w.WriteInt64(int64(v))
	}
	w.WriteBytes(lightOrZero(s.BlockLight))
	if skyLight {
		w.WriteBytes(lightOrZero(s.SkyLight))
	}
}

// EncodeFlatSections writes the 1.8 section arrays for the masked sections.
func EncodeFlatSections(w *Writer, c *world.Chunk, mask uint16, skyLight bool) {
	for i := 0; i < world.SectionsPerColumn; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		s := sectionOrEmpty(c, i)
		for _, st := range s.States {
			w.WriteUint8(uint8(st)).WriteUint8(uint8(st >> 8))
		}
	}
	for i := 0; i < world.SectionsPerColumn; i++ {
		if mask&(1<<i) != 0 {
			w.WriteBytes(lightOrZero(sectionOrEmpty(c, i).BlockLight))
		}
	}
	if skyLight {
		for i := 0; i < world.SectionsPerColumn; i++ {
			if mask&(1<<i) != 0 {
				w.WriteBytes(lightOrZero(sectionOrEmpty(c, i).SkyLight))
			}
		}
	}
}

// Encode writes the column in the layout of w's revision. Block entity tags
// are carried from 1.9.4 on and dropped before.
func (p *ChunkData) Encode(w *Writer, skyLight bool) error {
	c, mask, groundUp := p.Column.Chunk, p.Column.Mask, p.Column.GroundUp
	if c == nil {
		return fmt.Errorf("chunk data without a column")
	}
	w.WriteInt32(c.Pos.X).WriteInt32(c.Pos.Z).WriteBool(groundUp)
	data := NewWriter(w.Version())
	switch {
	case w.Has(FeaturePaletteChunks):
		for i := 0; i < world.SectionsPerColumn; i++ {
			if mask&(1<<i) != 0 {
				EncodePalettedSection(data, sectionOrEmpty(c, i), skyLight)
			}
		}
		if groundUp {
			data.WriteBytes(biomesOrZero(c.Biomes))
		}
		body, err := data.Build()
		if err != nil {
			return err
		}
		w.WriteVarInt(int32(mask)).WriteVarInt(int32(len(body))).WriteBytes(body)
		if w.Has(FeatureChunkBlockEntities) {
			w.WriteVarInt(int32(len(p.BlockEntities)))
			for _, t := range p.BlockEntities {
				w.WriteTag(t)
			}
		}
	case w.Has(FeaturePackedPosition):
		EncodeFlatSections(data, c, mask, skyLight)
		if groundUp {
			data.WriteBytes(biomesOrZero(c.Biomes))
		}
		body, err := data.Build()
		if err != nil {
			return err
		}
		w.WriteUint16(mask).WriteVarInt(int32(len(body))).WriteBytes(body)
	default:
		addMask := encodeLegacySections(data, c, mask, skyLight)
		if groundUp {
			data.WriteBytes(biomesOrZero(c.Biomes))
		}
		body, err := data.Build()
		if err != nil {
			return err
		}
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		if _, err := zw.Write(body); err != nil {
			return fmt.Errorf("failed to compress chunk data: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress chunk data: %w", err)
		}
		w.WriteUint16(mask).WriteUint16(addMask).WriteInt32(int32(compressed.Len())).WriteBytes(compressed.Bytes())
	}
	return w.err
}

// encodeLegacySections writes the pre-1.8 type-grouped arrays and returns
// the mask of sections that needed add nibbles.
func encodeLegacySections(w *Writer, c *world.Chunk, mask uint16, skyLight bool) uint16 {
	var sections []*world.Section
	var addMask uint16
	for i := 0; i < world.SectionsPerColumn; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		s := sectionOrEmpty(c, i)
		sections = append(sections, s)
		for _, st := range s.States {
			if st.ID() > 0xFF {
				addMask |= 1 << i
				break
			}
		}
	}
	for _, s := range sections {
		for _, st := range s.States {
			w.WriteUint8(uint8(st.ID()))
		}
	}
	nibbles := func(s *world.Section, f func(world.BlockState) uint8) {
		arr := make([]byte, nibbleArray)
		for j, st := range s.States {
			arr[j>>1] |= (f(st) & 0x0F) << (4 * (j & 1))
		}
		w.WriteBytes(arr)
	}
	for _, s := range sections {
		nibbles(s, func(st world.BlockState) uint8 { return st.Meta() })
	}
	for _, s := range sections {
		w.WriteBytes(lightOrZero(s.BlockLight))
	}
	if skyLight {
		for _, s := range sections {
			w.WriteBytes(lightOrZero(s.SkyLight))
		}
	}
	n := 0
	for i := 0; i < world.SectionsPerColumn; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		if addMask&(1<<i) != 0 {
			nibbles(sections[n], func(st world.BlockState) uint8 { return uint8(st.ID() >> 8) })
		}
		n++
	}
	return addMask
}

func biomesOrZero(b []byte) []byte {
	if len(b) == biomeArray {
		return b
	}
	return make([]byte, biomeArray)
}

func sectionOrEmpty(c *world.Chunk, i int) *world.Section {
	if s := c.Sections[i]; s != nil {
		return s
	}
	return &world.Section{}
}

func lightOrZero(b []byte) []byte {
	if len(b) == nibbleArray {
		return b
	}
	return make([]byte, nibbleArray)
}
