package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Category separates the numeric id spaces used by the spawn packets.
type Category uint8

const (
	CategoryPlayer Category = iota
	CategoryMob
	CategoryObject
	CategoryExperienceOrb
)

func (c Category) String() string {
	switch c {
	case CategoryPlayer:
		return "player"
	case CategoryMob:
		return "mob"
	case CategoryObject:
		return "object"
	case CategoryExperienceOrb:
		return "xp_orb"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Kind is the tag identifying what an entity is.
type Kind struct {
	Category Category
	TypeID   int32
}

// Capability is a bit set of the optional state an entity kind carries.
type Capability uint16

const (
	HasMetadata Capability = 1 << iota
	HasEquipment
	HasVelocity
	HasHealth
	HasHeadLook
)

// Has reports whether every bit of o is set.
func (c Capability) Has(o Capability) bool { return c&o == o }

// Metadata maps a metadata index to its decoded value.
type Metadata map[uint8]any

// Entity is a single mirrored entity. One record serves all kinds; the
// kind tag and capability set decide which fields are meaningful.
type Entity struct {
	ID        int32
	UUID      uuid.UUID
	Kind      Kind
	Caps      Capability
	Position  mgl64.Vec3
	Velocity  mgl64.Vec3
	Yaw       float32
	Pitch     float32
	HeadYaw   float32
	OnGround  bool
	Data      int32 // object data field (e.g. falling block state, arrow shooter)
	Metadata  Metadata
	Equipment map[int]*ItemStack
}

// NewEntity builds an entity and derives its capability set from the kind table.
func NewEntity(id int32, kind Kind) *Entity {
	return &Entity{
		ID:        id,
		Kind:      kind,
		Caps:      LookupKind(kind).Caps,
		Metadata:  make(Metadata),
		Equipment: make(map[int]*ItemStack),
	}
}

// Info returns the per-kind constants of the entity.
func (e *Entity) Info() KindInfo {
	return LookupKind(e.Kind)
}

// Clone returns a deep enough copy for snapshot readers.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Metadata = make(Metadata, len(e.Metadata))
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	c.Equipment = make(map[int]*ItemStack, len(e.Equipment))
	for k, v := range e.Equipment {
		c.Equipment[k] = v.Clone()
	}
	return &c
}

// ApplyMetadata merges decoded metadata entries when the kind carries metadata.
func (e *Entity) ApplyMetadata(m Metadata) bool {
	if !e.Caps.Has(HasMetadata) {
		return false
	}
	for k, v := range m {
		e.Metadata[k] = v
	}
	return true
}

// SetEquipment stores an item in an equipment slot when the kind supports it.
func (e *Entity) SetEquipment(slot int, item *ItemStack) bool {
	if !e.Caps.Has(HasEquipment) {
		return false
	}
	if item == nil {
		delete(e.Equipment, slot)
	} else {
		e.Equipment[slot] = item
	}
	return true
}
