package protocol

import (
	"bytes"
	"testing"

	"github.com/Tnze/go-mc/nbt"

	"github.com/cubelink-project/cubelink/internal/world"
)

func paletteChunkPayload(t *testing.T, v Version, pos world.ChunkPos, sec *world.Section) []byte {
	t.Helper()

	column := NewWriter(v)
	EncodePalettedSection(column, sec, true)
	column.WriteBytes(bytes.Repeat([]byte{1}, biomeArray))
	data, err := column.Build()
	if err != nil {
		t.Fatalf("encode section: %v", err)
	}

	w := NewWriter(v).
		WriteInt32(pos.X).
		WriteInt32(pos.Z).
		WriteBool(true).
		WriteVarInt(1 << 4).
		WriteVarInt(int32(len(data))).
		WriteBytes(data)
	if v.Has(FeatureChunkBlockEntities) {
		w.WriteVarInt(0)
	}
	payload, err := w.Build()
	if err != nil {
		t.Fatalf("encode chunk: %v", err)
	}
	return payload
}

func TestPalettedChunkRoundTrip(t *testing.T) {
	sec := &world.Section{}
	for i := range sec.States {
		sec.States[i] = world.BlockState(i % 4000)
	}
	pos := world.ChunkPos{X: -3, Z: 7}

	for _, v := range []Version{V1_9, V1_12_2} {
		payload := paletteChunkPayload(t, v, pos, sec)
		pkt, err := DefaultCatalog().Decode(PhasePlay, v, 0x20, payload, DecodeOptions{SkyLight: true})
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		cd, ok := pkt.(*ChunkData)
		if !ok {
			t.Fatalf("%s: decoded %T", v, pkt)
		}
		if cd.Column.Mask != 1<<4 || !cd.Column.GroundUp || cd.Unload() {
			t.Fatalf("%s: column = mask %b ground-up %v", v, cd.Column.Mask, cd.Column.GroundUp)
		}
		got := cd.Column.Chunk.Sections[4]
		if got == nil {
			t.Fatalf("%s: section 4 missing", v)
		}
		if got.States != sec.States {
			t.Errorf("%s: block states differ after round trip", v)
		}
		if len(got.SkyLight) != nibbleArray {
			t.Errorf("%s: sky light of %d bytes", v, len(got.SkyLight))
		}
		if len(cd.Column.Chunk.Biomes) != biomeArray {
			t.Errorf("%s: biomes of %d bytes", v, len(cd.Column.Chunk.Biomes))
		}
	}
}

func TestPalettedChunkTruncated(t *testing.T) {
	sec := &world.Section{}
	sec.States[0] = world.NewBlockState(87, 0)
	payload := paletteChunkPayload(t, V1_10, world.ChunkPos{}, sec)

	if _, err := DefaultCatalog().Decode(PhasePlay, V1_10, 0x20, payload, DecodeOptions{SkyLight: true}); err != nil {
		t.Fatalf("overworld decode: %v", err)
	}
	if _, err := DefaultCatalog().Decode(PhasePlay, V1_10, 0x20, payload[:len(payload)-nibbleArray-1], DecodeOptions{SkyLight: true}); err == nil {
		t.Fatal("truncated column decoded without error")
	}
}

func TestChunkDataEncodeAcrossVersions(t *testing.T) {
	pos := world.ChunkPos{X: 5, Z: -2}
	src := world.NewChunk(pos)
	for _, i := range []int{0, 3} {
		s := &world.Section{BlockLight: bytes.Repeat([]byte{0x21}, nibbleArray), SkyLight: bytes.Repeat([]byte{0xF0}, nibbleArray)}
		for j := range s.States {
			s.States[j] = world.NewBlockState(uint16(j%3), uint8(j%16))
		}
		s.States[17] = world.NewBlockState(300, 5)
		src.Sections[i] = s
	}
	src.Biomes = bytes.Repeat([]byte{4}, biomeArray)

	raw, err := nbt.Marshal(struct {
		X int32 `nbt:"x"`
		Y int32 `nbt:"y"`
		Z int32 `nbt:"z"`
	}{X: 81, Y: 3, Z: -30})
	if err != nil {
		t.Fatalf("marshal tag: %v", err)
	}
	tag, err := NewReader(raw, V1_12_2).Tag()
	if err != nil {
		t.Fatalf("read tag: %v", err)
	}

	tests := []struct {
		version  Version
		id       int32
		entities int
	}{
		{V1_7_2, 0x21, 0},
		{V1_8, 0x21, 0},
		{V1_9, 0x20, 0},
		{V1_12_2, 0x20, 1},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			cd := &ChunkData{
				Column:        world.Column{Chunk: src, Mask: 1<<0 | 1<<3, GroundUp: true},
				BlockEntities: []*world.Tag{tag},
			}
			w := NewWriter(tt.version)
			if err := cd.Encode(w, true); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			payload, _ := w.Build()

			pkt, err := DefaultCatalog().Decode(PhasePlay, tt.version, tt.id, payload, DecodeOptions{SkyLight: true})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			got := pkt.(*ChunkData)
			if got.Column.Mask != cd.Column.Mask || got.Column.Chunk.Pos != pos {
				t.Fatalf("column mask %b at %s", got.Column.Mask, got.Column.Chunk.Pos)
			}
			for _, i := range []int{0, 3} {
				s := got.Column.Chunk.Sections[i]
				if s == nil || s.States != src.Sections[i].States {
					t.Errorf("section %d states differ", i)
					continue
				}
				if !bytes.Equal(s.BlockLight, src.Sections[i].BlockLight) || !bytes.Equal(s.SkyLight, src.Sections[i].SkyLight) {
					t.Errorf("section %d light differs", i)
				}
			}
			if got.Column.Chunk.Sections[1] != nil {
				t.Error("unmasked section decoded")
			}
			if !bytes.Equal(got.Column.Chunk.Biomes, src.Biomes) {
				t.Error("biomes differ")
			}
			if len(got.BlockEntities) != tt.entities {
				t.Errorf("%d block entities, want %d", len(got.BlockEntities), tt.entities)
			}
		})
	}

	if err := (&ChunkData{}).Encode(NewWriter(V1_8), true); err == nil {
		t.Error("encoding without a column must fail")
	}
}
