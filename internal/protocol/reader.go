package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Tnze/go-mc/chat"
	"github.com/Tnze/go-mc/nbt"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/cubelink-project/cubelink/internal/world"
)

// MaxStringLength bounds length-prefixed strings (in bytes).
const MaxStringLength = 32767 * 4

const (
	maxVarIntGroups  = 5
	maxVarLongGroups = 10
)

// Reader is a forward-only cursor over one packet payload. Every read fails
// closed: running past the end yields ErrBufferUnderrun and never zeroed or
// partial data.
type Reader struct {
	buf     []byte
	pos     int
	version Version

	// Options carries connection state some layouts depend on.
	Options DecodeOptions
}

// NewReader wraps a payload decoded under revision v.
func NewReader(data []byte, v Version) *Reader {
	return &Reader{buf: data, version: v}
}

// Version returns the revision the payload is decoded under.
func (r *Reader) Version() Version { return r.version }

// Has is shorthand for r.Version().Has(f).
func (r *Reader) Has(f Feature) bool { return r.version.Has(f) }

// Remaining returns the unread byte count.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrOutOfBounds, n)
	}
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrBufferUnderrun, n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Bool reads a one-byte boolean.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Uint8()
	return b != 0, err
}

// Uint8 reads an unsigned byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int8 reads a signed byte.
func (r *Reader) Int8() (int8, error) {
	b, err := r.Uint8()
	return int8(b), err
}

// Uint16 reads a big-endian unsigned short.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Int16 reads a big-endian short.
func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

// Int32 reads a big-endian int.
func (r *Reader) Int32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Int64 reads a big-endian long.
func (r *Reader) Int64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Float32 reads an IEEE-754 float.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Int32()
	return math.Float32frombits(uint32(v)), err
}

// Float64 reads an IEEE-754 double.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Int64()
	return math.Float64frombits(uint64(v)), err
}

// VarInt reads a 7-bit group encoded int32.
func (r *Reader) VarInt() (int32, error) {
	v, err := r.varint(maxVarIntGroups)
	return int32(v), err
}

// VarLong reads a 7-bit group encoded int64.
func (r *Reader) VarLong() (int64, error) {
	v, err := r.varint(maxVarLongGroups)
	return int64(v), err
}

func (r *Reader) varint(groups int) (uint64, error) {
	var v uint64
	for i := 0; ; i++ {
		if i >= groups {
			return 0, fmt.Errorf("%w: more than %d groups", ErrMalformedVarint, groups)
		}
		b, err := r.Uint8()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// Length reads a varint length and checks it against the unread bytes.
func (r *Reader) Length() (int, error) {
	n, err := r.VarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n) > r.Remaining() {
		return 0, fmt.Errorf("%w: declared %d, %d remaining", ErrOutOfBounds, n, r.Remaining())
	}
	return int(n), nil
}

// String reads a varint-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	n, err := r.Length()
	if err != nil {
		return "", err
	}
	if n > MaxStringLength {
		return "", fmt.Errorf("%w: string of %d bytes", ErrOutOfBounds, n)
	}
	b, _ := r.take(n)
	return string(b), nil
}

// Bytes reads exactly n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ByteArray reads a byte array whose length prefix follows the rule.
func (r *Reader) ByteArray(rule NumberRule) ([]byte, error) {
	n, err := r.Integer(rule)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > int64(r.Remaining()) {
		return nil, fmt.Errorf("%w: declared %d, %d remaining", ErrOutOfBounds, n, r.Remaining())
	}
	return r.Bytes(int(n))
}

// Rest consumes every unread byte.
func (r *Reader) Rest() []byte {
	b, _ := r.Bytes(r.Remaining())
	return b
}

// UUID reads two big-endian longs.
func (r *Reader) UUID() (uuid.UUID, error) {
	b, err := r.take(16)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

// Angle reads a rotation byte (1/256 of a turn) as degrees.
func (r *Reader) Angle() (float32, error) {
	b, err := r.Int8()
	return float32(b) * 360 / 256, err
}

// Integer reads an integral field encoded as rule.Kind.
func (r *Reader) Integer(rule NumberRule) (int64, error) {
	switch rule.Kind {
	case KindByte:
		v, err := r.Int8()
		return int64(v), err
	case KindShort:
		v, err := r.Int16()
		return int64(v), err
	case KindInt:
		v, err := r.Int32()
		return int64(v), err
	case KindLong:
		return r.Int64()
	case KindVarInt:
		v, err := r.VarInt()
		return int64(v), err
	default:
		return 0, fmt.Errorf("number kind %d is not integral", rule.Kind)
	}
}

// Fixed reads a fixed-point field: the scaled integer divided by the rule's
// divisor, or a raw double.
func (r *Reader) Fixed(rule NumberRule) (float64, error) {
	if rule.Kind == KindDouble {
		return r.Float64()
	}
	v, err := r.Integer(rule)
	if err != nil {
		return 0, err
	}
	return float64(v) / rule.Divisor, nil
}

// FixedRule reads a fixed-point field using the revision's rule.
func (r *Reader) FixedRule(rule Rule) (float64, error) {
	return r.Fixed(r.version.Rule(rule))
}

// IntegerRule reads an integral field using the revision's rule.
func (r *Reader) IntegerRule(rule Rule) (int64, error) {
	return r.Integer(r.version.Rule(rule))
}

// EntityID reads an entity id (int before 1.8, varint after).
func (r *Reader) EntityID() (int32, error) {
	v, err := r.IntegerRule(RuleEntityID)
	return int32(v), err
}

// Position reads a packed block position.
func (r *Reader) Position() (world.BlockPos, error) {
	v, err := r.Int64()
	if err != nil {
		return world.BlockPos{}, err
	}
	return world.BlockPos{
		X: int32(v >> 38),
		Y: int32(v << 26 >> 52),
		Z: int32(v << 38 >> 38),
	}, nil
}

// Chat reads a JSON chat component.
func (r *Reader) Chat() (chat.Message, error) {
	var msg chat.Message
	s, err := r.String()
	if err != nil {
		return msg, err
	}
	if err := msg.UnmarshalJSON([]byte(s)); err != nil {
		return msg, fmt.Errorf("failed to parse chat component: %w", err)
	}
	return msg, nil
}

// Tag reads an inline structured tag. A lone end tag means "no tag" and
// yields nil.
func (r *Reader) Tag() (*world.Tag, error) {
	if r.Remaining() < 1 {
		return nil, fmt.Errorf("%w: tag header", ErrBufferUnderrun)
	}
	if r.buf[r.pos] == nbt.TagEnd {
		r.pos++
		return nil, nil
	}
	src := bytes.NewReader(r.buf[r.pos:])
	tag, err := decodeTag(src)
	if err != nil {
		return nil, err
	}
	r.pos = len(r.buf) - src.Len()
	return tag, nil
}

// GzipTag reads the legacy tag form: a short length (-1 for none) followed
// by a gzip-compressed tag.
func (r *Reader) GzipTag() (*world.Tag, error) {
	n, err := r.Int16()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	data, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed tag: %w", err)
	}
	defer zr.Close()
	return decodeTag(zr)
}

func decodeTag(src io.Reader) (*world.Tag, error) {
	var t world.Tag
	name, err := nbt.NewDecoder(src).Decode(&t.RawMessage)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated tag", ErrBufferUnderrun)
		}
		return nil, fmt.Errorf("failed to decode tag: %w", err)
	}
	t.Name = name
	return &t, nil
}
