package protocol

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/cubelink-project/cubelink/internal/world"
)

// Metadata value types that have no natural Go equivalent.
type (
	// IntVector is the legacy three-int metadata value.
	IntVector [3]int32
	// Direction is a block face (0 down .. 5 east).
	Direction int32
	// OptBlockState is an optional block state; zero means absent.
	OptBlockState int32
)

type metaReader func(r *Reader) (any, error)

// Legacy header format: type in the top three bits of the index byte.
var legacyMetaTypes = map[uint8]metaReader{
	0: func(r *Reader) (any, error) { return r.Int8() },
	1: func(r *Reader) (any, error) { return r.Int16() },
	2: func(r *Reader) (any, error) { return r.Int32() },
	3: func(r *Reader) (any, error) { return r.Float32() },
	4: func(r *Reader) (any, error) { return r.String() },
	5: func(r *Reader) (any, error) { return r.Slot() },
	6: func(r *Reader) (any, error) {
		var v IntVector
		for i := range v {
			var err error
			if v[i], err = r.Int32(); err != nil {
				return nil, err
			}
		}
		return v, nil
	},
	7: readRotation,
}

// Typed format: index byte, varint type id, value. The tag type joined at 1.12.
var typedMetaTypes = []struct {
	Range
	types map[int32]metaReader
}{
	{since(V1_9), map[int32]metaReader{
		0:  func(r *Reader) (any, error) { return r.Int8() },
		1:  func(r *Reader) (any, error) { return r.VarInt() },
		2:  func(r *Reader) (any, error) { return r.Float32() },
		3:  func(r *Reader) (any, error) { return r.String() },
		4:  func(r *Reader) (any, error) { return r.Chat() },
		5:  func(r *Reader) (any, error) { return r.Slot() },
		6:  func(r *Reader) (any, error) { return r.Bool() },
		7:  readRotation,
		8:  func(r *Reader) (any, error) { return r.Position() },
		9:  readOptPosition,
		10: func(r *Reader) (any, error) { v, err := r.VarInt(); return Direction(v), err },
		11: readOptUUID,
		12: func(r *Reader) (any, error) { v, err := r.VarInt(); return OptBlockState(v), err },
	}},
	{since(V1_12), map[int32]metaReader{
		13: func(r *Reader) (any, error) { return r.Tag() },
	}},
}

func readRotation(r *Reader) (any, error) {
	var v mgl32.Vec3
	for i := range v {
		var err error
		if v[i], err = r.Float32(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func readOptPosition(r *Reader) (any, error) {
	ok, err := r.Bool()
	if err != nil || !ok {
		return (*world.BlockPos)(nil), err
	}
	p, err := r.Position()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func readOptUUID(r *Reader) (any, error) {
	ok, err := r.Bool()
	if err != nil || !ok {
		return uuid.Nil, err
	}
	return r.UUID()
}

func typedMetaReader(v Version, typ int32) (metaReader, bool) {
	for _, row := range typedMetaTypes {
		if !row.Contains(v) {
			continue
		}
		if fn, ok := row.types[typ]; ok {
			return fn, true
		}
	}
	return nil, false
}

// Metadata reads an entity metadata list in the revision's format.
func (r *Reader) Metadata() (world.Metadata, error) {
	m := make(world.Metadata)
	if !r.Has(FeatureTypedMetadata) {
		for {
			head, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			if head == 0x7F {
				return m, nil
			}
			read, ok := legacyMetaTypes[head>>5]
			if !ok {
				return nil, fmt.Errorf("unknown metadata type %d", head>>5)
			}
			if m[head&0x1F], err = read(r); err != nil {
				return nil, err
			}
		}
	}
	for {
		index, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		if index == 0xFF {
			return m, nil
		}
		typ, err := r.VarInt()
		if err != nil {
			return nil, err
		}
		read, ok := typedMetaReader(r.version, typ)
		if !ok {
			return nil, fmt.Errorf("unknown metadata type %d at %s", typ, r.version)
		}
		if m[index], err = read(r); err != nil {
			return nil, err
		}
	}
}
