package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Tnze/go-mc/chat"
	"github.com/Tnze/go-mc/nbt"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/cubelink-project/cubelink/internal/world"
)

// Writer builds outbound payloads. It mirrors Reader: every primitive that
// Reader decodes under a revision, Writer encodes the same way, so
// decode(encode(x)) == x. The first encoding error sticks and is returned
// by Build.
type Writer struct {
	buf     bytes.Buffer
	version Version
	err     error
}

// NewWriter creates a writer for revision v.
func NewWriter(v Version) *Writer {
	return &Writer{version: v}
}

// Version returns the revision being encoded.
func (w *Writer) Version() Version { return w.version }

// Has is shorthand for w.Version().Has(f).
func (w *Writer) Has(f Feature) bool { return w.version.Has(f) }

// Reset clears the writer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
	w.err = nil
}

func (w *Writer) fail(err error) *Writer {
	if w.err == nil {
		w.err = err
	}
	return w
}

// WriteBool writes a one-byte boolean.
func (w *Writer) WriteBool(v bool) *Writer {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

// WriteInt8 writes a signed byte.
func (w *Writer) WriteInt8(v int8) *Writer {
	return w.WriteUint8(uint8(v))
}

// WriteUint16 writes a big-endian unsigned short.
func (w *Writer) WriteUint16(v uint16) *Writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

// WriteInt16 writes a big-endian short.
func (w *Writer) WriteInt16(v int16) *Writer {
	return w.WriteUint16(uint16(v))
}

// WriteInt32 writes a big-endian int.
func (w *Writer) WriteInt32(v int32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
	return w
}

// WriteInt64 writes a big-endian long.
func (w *Writer) WriteInt64(v int64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
	return w
}

// WriteFloat32 writes an IEEE-754 float.
func (w *Writer) WriteFloat32(v float32) *Writer {
	return w.WriteInt32(int32(math.Float32bits(v)))
}

// WriteFloat64 writes an IEEE-754 double.
func (w *Writer) WriteFloat64(v float64) *Writer {
	return w.WriteInt64(int64(math.Float64bits(v)))
}

// WriteVarInt writes a 7-bit group encoded int32.
func (w *Writer) WriteVarInt(v int32) *Writer {
	w.buf.Write(AppendVarInt(nil, v))
	return w
}

// WriteVarLong writes a 7-bit group encoded int64.
func (w *Writer) WriteVarLong(v int64) *Writer {
	u := uint64(v)
	for u >= 0x80 {
		w.buf.WriteByte(byte(u) | 0x80)
		u >>= 7
	}
	w.buf.WriteByte(byte(u))
	return w
}

// WriteString writes a varint-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) *Writer {
	if len(s) > MaxStringLength {
		return w.fail(fmt.Errorf("%w: string of %d bytes", ErrOutOfBounds, len(s)))
	}
	w.WriteVarInt(int32(len(s)))
	w.buf.WriteString(s)
	return w
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(data []byte) *Writer {
	w.buf.Write(data)
	return w
}

// WriteByteArray writes a byte array with a length prefix following the rule.
func (w *Writer) WriteByteArray(rule NumberRule, data []byte) *Writer {
	w.WriteInteger(rule, int64(len(data)))
	return w.WriteBytes(data)
}

// WriteUUID writes two big-endian longs.
func (w *Writer) WriteUUID(id uuid.UUID) *Writer {
	w.buf.Write(id[:])
	return w
}

// WriteAngle writes degrees as a rotation byte.
func (w *Writer) WriteAngle(deg float32) *Writer {
	return w.WriteInt8(int8(int32(math.Round(float64(deg)*256/360)) & 0xFF))
}

// WriteInteger writes an integral field encoded as rule.Kind.
func (w *Writer) WriteInteger(rule NumberRule, v int64) *Writer {
	switch rule.Kind {
	case KindByte:
		return w.WriteInt8(int8(v))
	case KindShort:
		return w.WriteInt16(int16(v))
	case KindInt:
		return w.WriteInt32(int32(v))
	case KindLong:
		return w.WriteInt64(v)
	case KindVarInt:
		return w.WriteVarInt(int32(v))
	default:
		return w.fail(fmt.Errorf("number kind %d is not integral", rule.Kind))
	}
}

// WriteFixed writes a fixed-point field, the inverse of Reader.Fixed.
func (w *Writer) WriteFixed(rule NumberRule, v float64) *Writer {
	if rule.Kind == KindDouble {
		return w.WriteFloat64(v)
	}
	return w.WriteInteger(rule, int64(math.Round(v*rule.Divisor)))
}

// WriteFixedRule writes a fixed-point field using the revision's rule.
func (w *Writer) WriteFixedRule(rule Rule, v float64) *Writer {
	return w.WriteFixed(w.version.Rule(rule), v)
}

// WriteIntegerRule writes an integral field using the revision's rule.
func (w *Writer) WriteIntegerRule(rule Rule, v int64) *Writer {
	return w.WriteInteger(w.version.Rule(rule), v)
}

// WriteEntityID writes an entity id (int before 1.8, varint after).
func (w *Writer) WriteEntityID(id int32) *Writer {
	return w.WriteIntegerRule(RuleEntityID, int64(id))
}

// WritePosition writes a packed block position.
func (w *Writer) WritePosition(p world.BlockPos) *Writer {
	v := (int64(p.X)&0x3FFFFFF)<<38 | (int64(p.Y)&0xFFF)<<26 | int64(p.Z)&0x3FFFFFF
	return w.WriteInt64(v)
}

// WriteChat writes a chat component as JSON.
func (w *Writer) WriteChat(msg chat.Message) *Writer {
	data, err := json.Marshal(msg)
	if err != nil {
		return w.fail(fmt.Errorf("failed to encode chat component: %w", err))
	}
	return w.WriteString(string(data))
}

// WriteTag writes an inline structured tag; nil writes the lone end tag.
func (w *Writer) WriteTag(t *world.Tag) *Writer {
	if t == nil {
		return w.WriteUint8(nbt.TagEnd)
	}
	if err := nbt.NewEncoder(&w.buf).Encode(t.RawMessage, t.Name); err != nil {
		return w.fail(fmt.Errorf("failed to encode tag: %w", err))
	}
	return w
}

// WriteGzipTag writes the legacy short-length gzip tag form.
func (w *Writer) WriteGzipTag(t *world.Tag) *Writer {
	if t == nil {
		return w.WriteInt16(-1)
	}
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if err := nbt.NewEncoder(zw).Encode(t.RawMessage, t.Name); err != nil {
		return w.fail(fmt.Errorf("failed to encode tag: %w", err))
	}
	if err := zw.Close(); err != nil {
		return w.fail(fmt.Errorf("failed to compress tag: %w", err))
	}
	if compressed.Len() > math.MaxInt16 {
		return w.fail(fmt.Errorf("%w: compressed tag of %d bytes", ErrOutOfBounds, compressed.Len()))
	}
	w.WriteInt16(int16(compressed.Len()))
	return w.WriteBytes(compressed.Bytes())
}

// Len returns the current payload size.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Build returns the encoded payload or the first encoding error.
func (w *Writer) Build() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// String returns a hex dump of the current payload for debugging.
func (w *Writer) String() string {
	data := w.buf.Bytes()
	return fmt.Sprintf("Writer[%s, %d bytes]: %x", w.version, len(data), data)
}

// AppendVarInt appends the varint encoding of v to dst.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// VarIntSize returns the encoded size of v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}
