package protocol

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/cubelink-project/cubelink/internal/world"
)

func TestCatalogLookup(t *testing.T) {
	cat := DefaultCatalog()

	tests := []struct {
		name    string
		phase   Phase
		version Version
		id      int32
		kind    PacketKind
		want    error
	}{
		{"keep alive legacy", PhasePlay, V1_8, 0x00, PacketKeepAlive, nil},
		{"keep alive combat", PhasePlay, V1_10, 0x1F, PacketKeepAlive, nil},
		{"keep alive 1.12.2", PhasePlay, V1_12_2, 0x1F, PacketKeepAlive, nil},
		{"relative move legacy", PhasePlay, V1_7_2, 0x15, PacketEntityRelativeMove, nil},
		{"relative move combat", PhasePlay, V1_9_4, 0x25, PacketEntityRelativeMove, nil},
		{"relative move 1.12.2", PhasePlay, V1_12_2, 0x26, PacketEntityRelativeMove, nil},
		{"multi block legacy", PhasePlay, V1_8, 0x22, PacketMultiBlockChange, nil},
		{"multi block combat", PhasePlay, V1_11_2, 0x10, PacketMultiBlockChange, nil},
		{"use bed is a stub", PhasePlay, V1_8, 0x0A, 0, ErrUnimplementedPacket},
		{"unknown id", PhasePlay, V1_8, 0x7F, 0, ErrUnknownPacket},
		{"unsupported revision", PhasePlay, V1_12, 0x1F, 0, ErrUnknownPacket},
		{"play ids in login", PhaseLogin, V1_8, 0x22, 0, ErrUnknownPacket},
		{"1.8-only id on 1.7", PhasePlay, V1_7_6, 0x46, 0, ErrUnknownPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := cat.Lookup(tt.phase, tt.version, tt.id)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if route.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", route.Kind, tt.kind)
			}
		})
	}
}

func TestUnimplementedIsNotFatal(t *testing.T) {
	_, err := DefaultCatalog().Decode(PhasePlay, V1_8, 0x0A, []byte{1, 2, 3}, DecodeOptions{})
	if !errors.Is(err, ErrUnimplementedPacket) {
		t.Fatalf("expected ErrUnimplementedPacket, got %v", err)
	}
	if errors.Is(err, ErrUnknownPacket) {
		t.Error("unimplemented must stay distinct from unknown")
	}
	if IsFatal(err) {
		t.Error("unimplemented packet must not be fatal")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unknown", ErrUnknownPacket, false},
		{"unimplemented", ErrUnimplementedPacket, false},
		{"handler", &HandlerError{Kind: PacketChunkData, Cause: errors.New("boom")}, false},
		{"decode", &DecodeError{Phase: PhasePlay, ID: 0x21, Version: V1_8, Cause: ErrBufferUnderrun}, true},
		{"varint", ErrMalformedVarint, true},
		{"phase", ErrPhaseViolation, true},
		{"decryption", ErrDecryption, true},
	}

	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.want {
			t.Errorf("IsFatal(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHostileBulkCount(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"negative count", []byte{0xff, 0xff, 0, 0, 0, 0, 1}},
		{"count past payload", []byte{0x00, 0x10, 0, 0, 0, 0, 1, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := DefaultCatalog().Decode(PhasePlay, V1_7_2, 0x26, tt.payload, DecodeOptions{})
			if pkt != nil {
				t.Fatalf("packet = %#v", pkt)
			}
			var de *DecodeError
			if !errors.As(err, &de) || !errors.Is(err, ErrOutOfBounds) {
				t.Fatalf("err = %v", err)
			}
			if !IsFatal(err) {
				t.Error("hostile bulk must be fatal")
			}
		})
	}
}

func TestDecodeRecoversPanic(t *testing.T) {
	cat := NewCatalog(Partition{
		Phase: PhasePlay,
		Range: Range{Min: V1_7_2, Max: V1_12_2},
		Routes: map[int32]Route{
			0x7F: {Name: "broken", Kind: PacketKeepAlive, Decode: func(r *Reader) (Packet, error) {
				var s []int
				return nil, fmt.Errorf("%d", s[3])
			}},
		},
	})

	pkt, err := cat.Decode(PhasePlay, V1_8, 0x7F, nil, DecodeOptions{})
	if pkt != nil {
		t.Fatalf("packet = %#v", pkt)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.ID != 0x7F || !errors.Is(err, ErrDecoderPanic) {
		t.Fatalf("err = %v", err)
	}
	if !IsFatal(err) {
		t.Error("a panicking decoder must be fatal")
	}
}

func TestEntityMoveAcrossVersions(t *testing.T) {
	tests := []struct {
		name     string
		version  Version
		id       int32
		delta    mgl64.Vec3
		onGround bool
		size     int
	}{
		// int id, three byte deltas, no on-ground flag
		{"1.7.2", V1_7_2, 0x15, mgl64.Vec3{0.5, -1, 3.96875}, false, 7},
		// varint id, byte deltas, on-ground flag
		{"1.8", V1_8, 0x15, mgl64.Vec3{0.5, -1, 3.96875}, true, 5},
		// varint id, short deltas in 1/4096 units
		{"1.9", V1_9, 0x25, mgl64.Vec3{0.25, -7.5, 1.0 / 4096}, true, 8},
		{"1.12.2", V1_12_2, 0x26, mgl64.Vec3{-0.125, 2, 7.999}, false, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			move := &EntityMove{EntityID: 9, Delta: tt.delta, HasDelta: true, OnGround: true}
			w := NewWriter(tt.version)
			if err := move.Encode(w); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			payload, _ := w.Build()
			if len(payload) != tt.size {
				t.Errorf("payload size = %d, want %d", len(payload), tt.size)
			}
			if !tt.onGround && tt.version >= V1_8 {
				// exercise the flag in both states
				payload[len(payload)-1] = 0
			}

			pkt, err := DefaultCatalog().Decode(PhasePlay, tt.version, tt.id, payload, DecodeOptions{})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			rm, ok := pkt.(*EntityRelativeMove)
			if !ok {
				t.Fatalf("decoded %T, want *EntityRelativeMove", pkt)
			}
			if rm.EntityID != 9 {
				t.Errorf("entity id = %d", rm.EntityID)
			}
			divisor := tt.version.Rule(RuleMoveDelta).Divisor
			for i := 0; i < 3; i++ {
				want := math.Round(tt.delta[i]*divisor) / divisor
				if rm.Delta[i] != want {
					t.Errorf("delta[%d] = %v, want %v", i, rm.Delta[i], want)
				}
			}
			if rm.OnGround != tt.onGround {
				t.Errorf("on ground = %v, want %v", rm.OnGround, tt.onGround)
			}
		})
	}
}

func TestSpawnMobHeadYaw(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		id      int32
		end     uint8
	}{
		{"1.8", V1_8, 0x0F, 0x7F},
		{"1.12.2", V1_12_2, 0x03, 0xFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(tt.version)
			w.WriteVarInt(42)
			if w.Has(FeatureEntityUUIDs) {
				w.WriteUUID(uuid.New())
			}
			w.WriteIntegerRule(RuleMobType, 54)
			for _, c := range []float64{1, 64, -3} {
				w.WriteFixedRule(RuleAbsolutePosition, c)
			}
			w.WriteAngle(90).WriteAngle(22.5).WriteAngle(45)
			for range 3 {
				w.WriteFixedRule(RuleVelocity, 0)
			}
			w.WriteUint8(tt.end)
			payload, err := w.Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			pkt, err := DefaultCatalog().Decode(PhasePlay, tt.version, tt.id, payload, DecodeOptions{})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			sm := pkt.(*SpawnMob)
			if sm.Yaw != 90 || sm.Pitch != 22.5 || sm.HeadYaw != 45 {
				t.Errorf("yaw %v pitch %v head yaw %v", sm.Yaw, sm.Pitch, sm.HeadYaw)
			}
		})
	}
}

func TestMultiBlockChange(t *testing.T) {
	changes := []world.BlockChange{
		{Pos: world.BlockPos{X: 33, Y: 70, Z: -15}, State: world.NewBlockState(1, 0)},
		{Pos: world.BlockPos{X: 47, Y: 0, Z: -1}, State: world.NewBlockState(35, 14)},
	}
	src := &MultiBlockChange{Chunk: world.ChunkPos{X: 2, Z: -1}, Changes: changes}

	for _, v := range []Version{V1_7_6, V1_8, V1_12_2} {
		id := int32(0x22)
		if v >= V1_9 {
			id = 0x10
		}
		w := NewWriter(v)
		if err := src.Encode(w); err != nil {
			t.Fatalf("%s: Encode: %v", v, err)
		}
		payload, _ := w.Build()

		pkt, err := DefaultCatalog().Decode(PhasePlay, v, id, payload, DecodeOptions{})
		if err != nil {
			t.Fatalf("%s: Decode: %v", v, err)
		}
		got := pkt.(*MultiBlockChange)
		if got.Chunk != src.Chunk || len(got.Changes) != len(changes) {
			t.Fatalf("%s: got %+v", v, got)
		}
		for i, c := range got.Changes {
			if c != changes[i] {
				t.Errorf("%s: change %d = %+v, want %+v", v, i, c, changes[i])
			}
		}

		// A record count promising more than the payload holds must fail
		// without producing a packet.
		truncated := payload[:len(payload)-2]
		pkt, err = DefaultCatalog().Decode(PhasePlay, v, id, truncated, DecodeOptions{})
		if err == nil || pkt != nil {
			t.Fatalf("%s: truncated payload decoded to %v, %v", v, pkt, err)
		}
		var de *DecodeError
		if !errors.As(err, &de) || !IsFatal(err) {
			t.Errorf("%s: expected fatal DecodeError, got %v", v, err)
		}
	}
}

func TestKeepAliveWidth(t *testing.T) {
	tests := []struct {
		version Version
		id      int32
		payload []byte
		want    int64
	}{
		{V1_7_2, 0x00, []byte{0x00, 0x00, 0x01, 0x00}, 256},
		{V1_8, 0x00, []byte{0x80, 0x02}, 256},
		{V1_12_1, 0x1F, []byte{0x80, 0x02}, 256},
		{V1_12_2, 0x1F, []byte{0, 0, 0, 0, 0, 0, 0x01, 0x00}, 256},
	}

	for _, tt := range tests {
		pkt, err := DefaultCatalog().Decode(PhasePlay, tt.version, tt.id, tt.payload, DecodeOptions{})
		if err != nil {
			t.Fatalf("%s: %v", tt.version, err)
		}
		if ka := pkt.(*KeepAlive); ka.ID != tt.want {
			t.Errorf("%s: id = %d, want %d", tt.version, ka.ID, tt.want)
		}
	}
}
