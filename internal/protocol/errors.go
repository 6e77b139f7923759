package protocol

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify wrapped errors.
var (
	ErrBufferUnderrun      = errors.New("buffer underrun")
	ErrMalformedVarint     = errors.New("malformed varint")
	ErrOutOfBounds         = errors.New("length out of bounds")
	ErrUnknownPacket       = errors.New("unknown packet")
	ErrUnimplementedPacket = errors.New("packet recognized but not implemented")
	ErrPhaseViolation      = errors.New("phase violation")
	ErrDecryption          = errors.New("decryption failure")
	ErrDecoderPanic        = errors.New("decoder panic")
	ErrQueueFull           = errors.New("outbound queue full")
	ErrClosed              = errors.New("connection closed")
)

// DecodeError reports a payload that could not be decoded. The stream
// position is untrustworthy afterwards.
type DecodeError struct {
	Phase   Phase
	ID      int32
	Version Version
	Cause   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s packet 0x%02X at %s: %v", e.Phase, e.ID, e.Version, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// HandlerError reports a handler that failed to apply a decoded packet.
// The world is left untouched for that update.
type HandlerError struct {
	Kind  PacketKind
	Cause error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handle %s: %v", e.Kind, e.Cause)
}

func (e *HandlerError) Unwrap() error { return e.Cause }

// IsFatal reports whether err forces the connection into Disconnecting.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var he *HandlerError
	if errors.As(err, &he) {
		return false
	}
	if errors.Is(err, ErrUnknownPacket) || errors.Is(err, ErrUnimplementedPacket) {
		return false
	}
	return true
}
