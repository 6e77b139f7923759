package world

// SectionVolume is the number of blocks in one 16x16x16 section.
const SectionVolume = 16 * 16 * 16

// SectionsPerColumn is the number of vertical sections in a column.
const SectionsPerColumn = 16

// Section is one 16x16x16 cube of block states, indexed y<<8 | z<<4 | x.
type Section struct {
	States     [SectionVolume]BlockState
	BlockLight []byte
	SkyLight   []byte
}

// SectionIndex returns the linear index of a section-local coordinate.
func SectionIndex(x, y, z int) int {
	return (y&0x0F)<<8 | (z&0x0F)<<4 | (x & 0x0F)
}

// NonAir counts the non-air blocks of the section.
func (s *Section) NonAir() int {
	n := 0
	for _, st := range s.States {
		if st != Air {
			n++
		}
	}
	return n
}

// BlockEntity is the side data attached to a single block: sign text or a
// structured tag describing a container, spawner, banner and so on.
type BlockEntity struct {
	Pos      BlockPos  `json:"pos"`
	Action   uint8     `json:"action,omitempty"`
	SignText [4]string `json:"sign_text,omitempty"`
	Data     *Tag      `json:"-"`
}

// Chunk is one loaded column. Missing sections are all air.
type Chunk struct {
	Pos           ChunkPos
	Sections      [SectionsPerColumn]*Section
	Biomes        []byte
	BlockEntities map[BlockPos]*BlockEntity
}

// NewChunk creates an empty column.
func NewChunk(pos ChunkPos) *Chunk {
	return &Chunk{
		Pos:           pos,
		BlockEntities: make(map[BlockPos]*BlockEntity),
	}
}

// Block returns the state at column-local x/z (0..15) and absolute y.
func (c *Chunk) Block(x, y, z int) BlockState {
	if y < 0 || y >= SectionsPerColumn*16 {
		return Air
	}
	s := c.Sections[y>>4]
	if s == nil {
		return Air
	}
	return s.States[SectionIndex(x, y, z)]
}

// SetBlock stores a state at column-local x/z and absolute y, allocating the
// section on demand. Out-of-range heights are ignored.
func (c *Chunk) SetBlock(x, y, z int, state BlockState) bool {
	if y < 0 || y >= SectionsPerColumn*16 {
		return false
	}
	s := c.Sections[y>>4]
	if s == nil {
		if state == Air {
			return true
		}
		s = &Section{}
		c.Sections[y>>4] = s
	}
	s.States[SectionIndex(x, y, z)] = state
	return true
}

// Merge copies the sections named by mask from src. A full (ground-up)
// column replaces everything, including biomes and block entities.
func (c *Chunk) Merge(src *Chunk, mask uint16, groundUp bool) {
	for i := 0; i < SectionsPerColumn; i++ {
		if mask&(1<<i) != 0 {
			c.Sections[i] = src.Sections[i]
		} else if groundUp {
			c.Sections[i] = nil
		}
	}
	if groundUp {
		c.Biomes = src.Biomes
		c.BlockEntities = make(map[BlockPos]*BlockEntity, len(src.BlockEntities))
	}
	for pos, be := range src.BlockEntities {
		c.BlockEntities[pos] = be
	}
}

// ChunkSummary is a read-only view of a column for external readers.
type ChunkSummary struct {
	Pos           ChunkPos `json:"pos"`
	Sections      uint16   `json:"sections"`
	NonAirBlocks  int      `json:"non_air_blocks"`
	BlockEntities int      `json:"block_entities"`
}

func (c *Chunk) summary() ChunkSummary {
	s := ChunkSummary{Pos: c.Pos, BlockEntities: len(c.BlockEntities)}
	for i, sec := range c.Sections {
		if sec == nil {
			continue
		}
		s.Sections |= 1 << i
		s.NonAirBlocks += sec.NonAir()
	}
	return s
}
