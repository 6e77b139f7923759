package protocol

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/cubelink-project/cubelink/internal/world"
)

// PlayerProperty is a signed profile property (skin, cape).
type PlayerProperty struct {
	Name      string
	Value     string
	Signature string
}

// SpawnPlayer announces another player entering view.
type SpawnPlayer struct {
	EntityID   int32
	UUID       uuid.UUID
	Name       string
	Properties []PlayerProperty
	Position   mgl64.Vec3
	Yaw, Pitch float32
	HeldItem   int16
	Metadata   world.Metadata
}

func (*SpawnPlayer) Kind() PacketKind { return PacketSpawnPlayer }

func decodeSpawnPlayer(r *Reader) (Packet, error) {
	p := &SpawnPlayer{}
	var err error
	if p.EntityID, err = r.VarInt(); err != nil {
		return nil, err
	}
	if r.Has(FeaturePackedPosition) {
		if p.UUID, err = r.UUID(); err != nil {
			return nil, err
		}
	} else {
		raw, err := r.String()
		if err != nil {
			return nil, err
		}
		// 1.7 offline servers send non-uuid strings; keep the nil uuid then.
		p.UUID, _ = uuid.Parse(raw)
		if p.Name, err = r.String(); err != nil {
			return nil, err
		}
		if r.Has(FeatureSpawnPlayerProperties) {
			n, err := r.VarInt()
			if err != nil {
				return nil, err
			}
			if n < 0 || int(n) > r.Remaining() {
				return nil, ErrOutOfBounds
			}
			p.Properties = make([]PlayerProperty, n)
			for i := range p.Properties {
				prop := &p.Properties[i]
				if prop.Name, err = r.String(); err != nil {
					return nil, err
				}
				if prop.Value, err = r.String(); err != nil {
					return nil, err
				}
				if prop.Signature, err = r.String(); err != nil {
					return nil, err
				}
			}
		}
	}
	if p.Position, err = r.absolutePosition(); err != nil {
		return nil, err
	}
	if p.Yaw, p.Pitch, err = r.rotation(); err != nil {
		return nil, err
	}
	if r.Has(FeatureSpawnPlayerHeldItem) {
		if p.HeldItem, err = r.Int16(); err != nil {
			return nil, err
		}
	}
	if p.Metadata, err = r.Metadata(); err != nil {
		return nil, err
	}
	return p, nil
}

// SpawnObject announces a non-living entity (vehicle, projectile, item).
type SpawnObject struct {
	EntityID   int32
	UUID       uuid.UUID
	Type       int8
	Position   mgl64.Vec3
	Pitch, Yaw float32
	Data       int32
	Velocity   mgl64.Vec3
}

func (*SpawnObject) Kind() PacketKind { return PacketSpawnObject }

func decodeSpawnObject(r *Reader) (Packet, error) {
	p := &SpawnObject{}
	var err error
	if p.EntityID, err = r.VarInt(); err != nil {
		return nil, err
	}
	if r.Has(FeatureEntityUUIDs) {
		if p.UUID, err = r.UUID(); err != nil {
			return nil, err
		}
	}
	if p.Type, err = r.Int8(); err != nil {
		return nil, err
	}
	if p.Position, err = r.absolutePosition(); err != nil {
		return nil, err
	}
	if p.Pitch, err = r.Angle(); err != nil {
		return nil, err
	}
	if p.Yaw, err = r.Angle(); err != nil {
		return nil, err
	}
	if p.Data, err = r.Int32(); err != nil {
		return nil, err
	}
	if r.Has(FeatureObjectVelocityAlways) || p.Data != 0 {
		if p.Velocity, err = r.velocity(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SpawnMob announces a living entity.
type SpawnMob struct {
	EntityID   int32
	UUID       uuid.UUID
	Type       int32
	Position   mgl64.Vec3
	Yaw, Pitch float32
	HeadYaw    float32
	Velocity   mgl64.Vec3
	Metadata   world.Metadata
}

func (*SpawnMob) Kind() PacketKind { return PacketSpawnMob }

func decodeSpawnMob(r *Reader) (Packet, error) {
	p := &SpawnMob{}
	var err error
	if p.EntityID, err = r.VarInt(); err != nil {
		return nil, err
	}
	if r.Has(FeatureEntityUUIDs) {
		if p.UUID, err = r.UUID(); err != nil {
			return nil, err
		}
	}
	typ, err := r.IntegerRule(RuleMobType)
	if err != nil {
		return nil, err
	}
	// mob ids are unsigned bytes before they became varints
	p.Type = int32(typ)
	if r.version.Rule(RuleMobType).Kind == KindByte {
		p.Type = int32(uint8(typ))
	}
	if p.Position, err = r.absolutePosition(); err != nil {
		return nil, err
	}
	if p.Yaw, p.Pitch, err = r.rotation(); err != nil {
		return nil, err
	}
	if p.HeadYaw, err = r.Angle(); err != nil {
		return nil, err
	}
	if p.Velocity, err = r.velocity(); err != nil {
		return nil, err
	}
	if p.Metadata, err = r.Metadata(); err != nil {
		return nil, err
	}
	return p, nil
}

// SpawnExperienceOrb announces an experience orb.
type SpawnExperienceOrb struct {
	EntityID int32
	Position mgl64.Vec3
	Count    int16
}

func (*SpawnExperienceOrb) Kind() PacketKind { return PacketSpawnExperienceOrb }

func decodeSpawnExperienceOrb(r *Reader) (Packet, error) {
	p := &SpawnExperienceOrb{}
	var err error
	if p.EntityID, err = r.VarInt(); err != nil {
		return nil, err
	}
	if p.Position, err = r.absolutePosition(); err != nil {
		return nil, err
	}
	if p.Count, err = r.Int16(); err != nil {
		return nil, err
	}
	return p, nil
}

// EntityVelocity sets an entity's velocity in blocks per tick.
type EntityVelocity struct {
	EntityID int32
	Velocity mgl64.Vec3
}

func (*EntityVelocity) Kind() PacketKind { return PacketEntityVelocity }

func decodeEntityVelocity(r *Reader) (Packet, error) {
	p := &EntityVelocity{}
	var err error
	if p.EntityID, err = r.EntityID(); err != nil {
		return nil, err
	}
	if p.Velocity, err = r.velocity(); err != nil {
		return nil, err
	}
	return p, nil
}

// DestroyEntities removes a list of entities.
type DestroyEntities struct {
	EntityIDs []int32
}

func (*DestroyEntities) Kind() PacketKind { return PacketDestroyEntities }

func decodeDestroyEntities(r *Reader) (Packet, error) {
	n, err := r.IntegerRule(RuleDestroyCount)
	if err != nil {
		return nil, err
	}
	if r.version.Rule(RuleDestroyCount).Kind == KindByte {
		n = int64(uint8(n))
	}
	if n < 0 || n > int64(r.Remaining()) {
		return nil, ErrOutOfBounds
	}
	p := &DestroyEntities{EntityIDs: make([]int32, n)}
	for i := range p.EntityIDs {
		if p.EntityIDs[i], err = r.EntityID(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// EntityMove is the shared shape of the relative move and look packets.
// HasDelta and HasLook tell which parts the wire carried.
type EntityMove struct {
	EntityID   int32
	Delta      mgl64.Vec3
	Yaw, Pitch float32
	OnGround   bool
	HasDelta   bool
	HasLook    bool
}

// EntityRelativeMove shifts an entity by a small delta.
type EntityRelativeMove struct{ EntityMove }

// EntityLook rotates an entity.
type EntityLook struct{ EntityMove }

// EntityLookRelativeMove shifts and rotates an entity.
type EntityLookRelativeMove struct{ EntityMove }

func (*EntityRelativeMove) Kind() PacketKind     { return PacketEntityRelativeMove }
func (*EntityLook) Kind() PacketKind             { return PacketEntityLook }
func (*EntityLookRelativeMove) Kind() PacketKind { return PacketEntityLookRelativeMove }

// Move returns the shared move fields.
func (p *EntityMove) Move() *EntityMove { return p }

// Mover is implemented by the three entity move variants.
type Mover interface {
	Packet
	Move() *EntityMove
}

// readEntityMove decodes entity id, optional delta, optional rotation and
// the trailing on-ground flag. Delta width and divisor come from
// RuleMoveDelta; the flag only exists where FeatureMoveOnGround is set.
func readEntityMove(r *Reader, delta, look bool) (EntityMove, error) {
	m := EntityMove{HasDelta: delta, HasLook: look}
	var err error
	if m.EntityID, err = r.EntityID(); err != nil {
		return m, err
	}
	if delta {
		rule := r.version.Rule(RuleMoveDelta)
		for i := 0; i < 3; i++ {
			if m.Delta[i], err = r.Fixed(rule); err != nil {
				return m, err
			}
		}
	}
	if look {
		if m.Yaw, m.Pitch, err = r.rotation(); err != nil {
			return m, err
		}
	}
	if r.Has(FeatureMoveOnGround) {
		if m.OnGround, err = r.Bool(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// Encode writes the move fields in the revision's layout. It is the inverse
// of the move decoders and lets servers and tests build move packets.
func (p *EntityMove) Encode(w *Writer) error {
	w.WriteEntityID(p.EntityID)
	if p.HasDelta {
		rule := w.version.Rule(RuleMoveDelta)
		for i := 0; i < 3; i++ {
			w.WriteFixed(rule, p.Delta[i])
		}
	}
	if p.HasLook {
		w.WriteAngle(p.Yaw).WriteAngle(p.Pitch)
	}
	if w.Has(FeatureMoveOnGround) {
		w.WriteBool(p.OnGround)
	}
	return w.err
}

func decodeEntityRelativeMove(r *Reader) (Packet, error) {
	m, err := readEntityMove(r, true, false)
	if err != nil {
		return nil, err
	}
	return &EntityRelativeMove{m}, nil
}

func decodeEntityLook(r *Reader) (Packet, error) {
	m, err := readEntityMove(r, false, true)
	if err != nil {
		return nil, err
	}
	return &EntityLook{m}, nil
}

func decodeEntityLookRelativeMove(r *Reader) (Packet, error) {
	m, err := readEntityMove(r, true, true)
	if err != nil {
		return nil, err
	}
	return &EntityLookRelativeMove{m}, nil
}

// EntityTeleport places an entity at an absolute position.
type EntityTeleport struct {
	EntityID   int32
	Position   mgl64.Vec3
	Yaw, Pitch float32
	OnGround   bool
}

func (*EntityTeleport) Kind() PacketKind { return PacketEntityTeleport }

func decodeEntityTeleport(r *Reader) (Packet, error) {
	p := &EntityTeleport{}
	var err error
	if p.EntityID, err = r.EntityID(); err != nil {
		return nil, err
	}
	if p.Position, err = r.absolutePosition(); err != nil {
		return nil, err
	}
	if p.Yaw, p.Pitch, err = r.rotation(); err != nil {
		return nil, err
	}
	if r.Has(FeatureMoveOnGround) {
		if p.OnGround, err = r.Bool(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// EntityHeadLook turns an entity's head.
type EntityHeadLook struct {
	EntityID int32
	HeadYaw  float32
}

func (*EntityHeadLook) Kind() PacketKind { return PacketEntityHeadLook }

func decodeEntityHeadLook(r *Reader) (Packet, error) {
	p := &EntityHeadLook{}
	var err error
	if p.EntityID, err = r.EntityID(); err != nil {
		return nil, err
	}
	if p.HeadYaw, err = r.Angle(); err != nil {
		return nil, err
	}
	return p, nil
}

// EntityMetadata updates an entity's metadata entries.
type EntityMetadata struct {
	EntityID int32
	Metadata world.Metadata
}

func (*EntityMetadata) Kind() PacketKind { return PacketEntityMetadata }

func decodeEntityMetadata(r *Reader) (Packet, error) {
	p := &EntityMetadata{}
	var err error
	if p.EntityID, err = r.EntityID(); err != nil {
		return nil, err
	}
	if p.Metadata, err = r.Metadata(); err != nil {
		return nil, err
	}
	return p, nil
}

// EntityEquipment sets the item in one equipment slot.
type EntityEquipment struct {
	EntityID int32
	Slot     int32
	Item     *world.ItemStack
}

func (*EntityEquipment) Kind() PacketKind { return PacketEntityEquipment }

func decodeEntityEquipment(r *Reader) (Packet, error) {
	p := &EntityEquipment{}
	var err error
	if p.EntityID, err = r.EntityID(); err != nil {
		return nil, err
	}
	if r.Has(FeatureOffHand) {
		p.Slot, err = r.VarInt()
	} else {
		var s int16
		s, err = r.Int16()
		p.Slot = int32(s)
	}
	if err != nil {
		return nil, err
	}
	if p.Item, err = r.Slot(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) absolutePosition() (mgl64.Vec3, error) {
	var v mgl64.Vec3
	rule := r.version.Rule(RuleAbsolutePosition)
	for i := range v {
		var err error
		if v[i], err = r.Fixed(rule); err != nil {
			return v, err
		}
	}
	return v, nil
}

func (r *Reader) velocity() (mgl64.Vec3, error) {
	var v mgl64.Vec3
	rule := r.version.Rule(RuleVelocity)
	for i := range v {
		var err error
		if v[i], err = r.Fixed(rule); err != nil {
			return v, err
		}
	}
	return v, nil
}

func (r *Reader) rotation() (yaw, pitch float32, err error) {
	if yaw, err = r.Angle(); err != nil {
		return 0, 0, err
	}
	if pitch, err = r.Angle(); err != nil {
		return 0, 0, err
	}
	return yaw, pitch, nil
}
