package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Tnze/go-mc/chat"
	"github.com/google/uuid"
)

// ServerStatus is the parsed status response document.
type ServerStatus struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int32  `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample,omitempty"`
	} `json:"players"`
	Description chat.Message `json:"description"`
	Favicon     string       `json:"favicon,omitempty"`
}

// StatusResponse carries the server's status document.
type StatusResponse struct {
	Raw    string
	Status ServerStatus
}

func (*StatusResponse) Kind() PacketKind { return PacketStatusResponse }

func decodeStatusResponse(r *Reader) (Packet, error) {
	raw, err := r.String()
	if err != nil {
		return nil, err
	}
	p := &StatusResponse{Raw: raw}
	if err := json.Unmarshal([]byte(raw), &p.Status); err != nil {
		return nil, fmt.Errorf("failed to parse status document: %w", err)
	}
	return p, nil
}

// StatusPong echoes the ping payload.
type StatusPong struct {
	Payload int64
}

func (*StatusPong) Kind() PacketKind { return PacketStatusPong }

func decodeStatusPong(r *Reader) (Packet, error) {
	v, err := r.Int64()
	if err != nil {
		return nil, err
	}
	return &StatusPong{Payload: v}, nil
}

// LoginDisconnect rejects the login.
type LoginDisconnect struct {
	Reason chat.Message
}

func (*LoginDisconnect) Kind() PacketKind { return PacketLoginDisconnect }

func decodeLoginDisconnect(r *Reader) (Packet, error) {
	reason, err := r.Chat()
	if err != nil {
		return nil, err
	}
	return &LoginDisconnect{Reason: reason}, nil
}

// EncryptionRequest is the server's key-exchange challenge.
type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (*EncryptionRequest) Kind() PacketKind { return PacketEncryptionRequest }

func decodeEncryptionRequest(r *Reader) (Packet, error) {
	p := &EncryptionRequest{}
	var err error
	if p.ServerID, err = r.String(); err != nil {
		return nil, err
	}
	rule := r.version.Rule(RuleLoginArrayLength)
	if p.PublicKey, err = r.ByteArray(rule); err != nil {
		return nil, err
	}
	if p.VerifyToken, err = r.ByteArray(rule); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode writes the challenge; used by test servers.
func (p *EncryptionRequest) Encode(w *Writer) error {
	rule := w.version.Rule(RuleLoginArrayLength)
	w.WriteString(p.ServerID).WriteByteArray(rule, p.PublicKey).WriteByteArray(rule, p.VerifyToken)
	return w.err
}

// LoginSuccess completes the login and moves the connection to Play.
type LoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

func (*LoginSuccess) Kind() PacketKind { return PacketLoginSuccess }

func decodeLoginSuccess(r *Reader) (Packet, error) {
	raw, err := r.String()
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid player uuid %q: %w", raw, err)
	}
	name, err := r.String()
	if err != nil {
		return nil, err
	}
	return &LoginSuccess{UUID: id, Username: name}, nil
}

// Encode writes the packet; used by test servers.
func (p *LoginSuccess) Encode(w *Writer) error {
	w.WriteString(p.UUID.String()).WriteString(p.Username)
	return w.err
}

// SetCompression enables compressed framing above Threshold bytes. A
// negative threshold disables compression.
type SetCompression struct {
	Threshold int32
}

func (*SetCompression) Kind() PacketKind { return PacketLoginSetCompression }

func decodeSetCompression(r *Reader) (Packet, error) {
	v, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	return &SetCompression{Threshold: v}, nil
}

// PlaySetCompression is the 1.8 play-phase variant of SetCompression.
type PlaySetCompression SetCompression

func (*PlaySetCompression) Kind() PacketKind { return PacketPlaySetCompression }

func decodePlaySetCompression(r *Reader) (Packet, error) {
	v, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	return &PlaySetCompression{Threshold: v}, nil
}
