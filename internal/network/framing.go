package network

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

// CompressionDisabled is the threshold of a connection that has not seen
// Set Compression.
const CompressionDisabled = -1

// Frame is one length-delimited packet: its id and the undecoded payload.
type Frame struct {
	ID      int32
	Payload []byte
}

// readVarInt reads a varint straight from the stream. Frame lengths must be
// read this way because the frame body is not yet buffered.
func readVarInt(r io.ByteReader) (int32, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, protocol.ErrMalformedVarint
}

// ReadFrame reads one frame. The whole declared length is consumed before
// the id is parsed, so trailing bytes a decoder ignores never desync the
// stream. A threshold of CompressionDisabled selects the plain layout.
func ReadFrame(r interface {
	io.Reader
	io.ByteReader
}, threshold int32) (Frame, error) {
	length, err := readVarInt(r)
	if err != nil {
		return Frame{}, err
	}
	if length <= 0 || length > protocol.MaxPacketSize {
		return Frame{}, fmt.Errorf("%w: frame length %d", protocol.ErrOutOfBounds, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}

	if threshold != CompressionDisabled {
		body, err = decompressBody(body)
		if err != nil {
			return Frame{}, err
		}
	}

	cur := protocol.NewReader(body, 0)
	id, err := cur.VarInt()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read packet id: %w", err)
	}
	return Frame{ID: id, Payload: cur.Rest()}, nil
}

func decompressBody(body []byte) ([]byte, error) {
	cur := protocol.NewReader(body, 0)
	dataLen, err := cur.VarInt()
	if err != nil {
		return nil, fmt.Errorf("failed to read data length: %w", err)
	}
	rest := cur.Rest()
	if dataLen == 0 {
		return rest, nil
	}
	if dataLen < 0 || dataLen > protocol.MaxPacketSize {
		return nil, fmt.Errorf("%w: uncompressed length %d", protocol.ErrOutOfBounds, dataLen)
	}
	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed frame: %w", err)
	}
	defer zr.Close()
	out := make([]byte, dataLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("failed to inflate frame: %w", err)
	}
	return out, nil
}

// WriteFrame writes one frame with a single Write call. Bodies shorter than
// the threshold are sent with a zero data length.
func WriteFrame(w io.Writer, threshold int32, id int32, payload []byte) error {
	body := make([]byte, 0, protocol.VarIntSize(id)+len(payload))
	body = protocol.AppendVarInt(body, id)
	body = append(body, payload...)

	if threshold != CompressionDisabled {
		var err error
		if body, err = compressBody(body, threshold); err != nil {
			return err
		}
	}
	if len(body) > protocol.MaxPacketSize {
		return fmt.Errorf("%w: frame length %d", protocol.ErrOutOfBounds, len(body))
	}

	frame := make([]byte, 0, protocol.VarIntSize(int32(len(body)))+len(body))
	frame = protocol.AppendVarInt(frame, int32(len(body)))
	frame = append(frame, body...)
	_, err := w.Write(frame)
	return err
}

func compressBody(body []byte, threshold int32) ([]byte, error) {
	if len(body) < int(threshold) {
		out := make([]byte, 0, len(body)+1)
		out = append(out, 0)
		return append(out, body...), nil
	}
	var buf bytes.Buffer
	buf.Write(protocol.AppendVarInt(nil, int32(len(body))))
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("failed to compress frame: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress frame: %w", err)
	}
	return buf.Bytes(), nil
}
