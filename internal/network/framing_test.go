package network

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

func TestFrameRoundTrip(t *testing.T) {
	small := []byte("hello")
	large := bytes.Repeat([]byte("abcdefgh"), 200)

	tests := []struct {
		name      string
		threshold int32
		payload   []byte
	}{
		{"plain", CompressionDisabled, small},
		{"plain empty", CompressionDisabled, nil},
		{"below threshold", 256, small},
		{"above threshold", 256, large},
		{"threshold zero", 0, small},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.threshold, 0x26, tt.payload); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}
			if tt.threshold > 0 && len(tt.payload) > int(tt.threshold) && buf.Len() >= len(tt.payload) {
				t.Errorf("frame of %d bytes was not compressed (%d on the wire)", len(tt.payload), buf.Len())
			}
			frame, err := ReadFrame(bufio.NewReader(&buf), tt.threshold)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if frame.ID != 0x26 {
				t.Errorf("id = 0x%02X", frame.ID)
			}
			if !bytes.Equal(frame.Payload, tt.payload) {
				t.Errorf("payload mismatch: %d bytes, want %d", len(frame.Payload), len(tt.payload))
			}
			if buf.Len() != 0 {
				t.Errorf("%d bytes left after frame", buf.Len())
			}
		})
	}
}

func TestReadFrameConsumesDeclaredLength(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, CompressionDisabled, 0x01, []byte{1, 2, 3, 4})
	WriteFrame(&buf, CompressionDisabled, 0x02, []byte{5})

	r := bufio.NewReader(&buf)
	first, err := ReadFrame(r, CompressionDisabled)
	if err != nil || first.ID != 0x01 {
		t.Fatalf("first frame = %+v, %v", first, err)
	}
	second, err := ReadFrame(r, CompressionDisabled)
	if err != nil || second.ID != 0x02 || !bytes.Equal(second.Payload, []byte{5}) {
		t.Fatalf("second frame = %+v, %v", second, err)
	}
}

func TestReadFrameRejectsBadLengths(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"zero length", []byte{0x00}, protocol.ErrOutOfBounds},
		{"oversized", protocol.AppendVarInt(nil, protocol.MaxPacketSize+1), protocol.ErrOutOfBounds},
		{"malformed length", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, protocol.ErrMalformedVarint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bufio.NewReader(bytes.NewReader(tt.data)), CompressionDisabled)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompressedFrameBadDataLength(t *testing.T) {
	body := protocol.AppendVarInt(nil, protocol.MaxPacketSize+1)
	body = append(body, 0x78, 0x9C)
	frame := protocol.AppendVarInt(nil, int32(len(body)))
	frame = append(frame, body...)

	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(frame)), 64)
	if !errors.Is(err, protocol.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}
