package network

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

// HandlerFunc applies one decoded packet to the connection and its world.
type HandlerFunc func(c *Connection, p protocol.Packet) error

// fatalError marks a handler failure that must tear the connection down
// instead of being reported as a HandlerError.
type fatalError struct{ error }

func (e fatalError) Unwrap() error { return e.error }

func fatal(err error) error {
	if err == nil {
		return nil
	}
	return fatalError{err}
}

// Dispatcher routes decoded packets to exactly one handler per kind.
type Dispatcher struct {
	catalog  *protocol.Catalog
	handlers map[protocol.PacketKind]HandlerFunc
}

// NewDispatcher checks that every kind the catalog can decode has a handler.
func NewDispatcher(catalog *protocol.Catalog, handlers map[protocol.PacketKind]HandlerFunc) (*Dispatcher, error) {
	var missing []string
	for _, k := range catalog.Kinds() {
		if handlers[k] == nil {
			missing = append(missing, k.String())
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("no handler for %s", strings.Join(missing, ", "))
	}
	return &Dispatcher{catalog: catalog, handlers: handlers}, nil
}

var (
	defaultDispatcher    *Dispatcher
	defaultDispatcherErr error
	defaultDispatcherOne sync.Once
)

// DefaultDispatcher pairs the default catalog with the built-in handlers.
func DefaultDispatcher() (*Dispatcher, error) {
	defaultDispatcherOne.Do(func() {
		defaultDispatcher, defaultDispatcherErr = NewDispatcher(protocol.DefaultCatalog(), defaultHandlers())
	})
	return defaultDispatcher, defaultDispatcherErr
}

// HandleInbound decodes one frame payload for phase and dispatches the
// result. Unknown and unimplemented ids are returned as non-fatal errors.
func (d *Dispatcher) HandleInbound(c *Connection, phase protocol.Phase, id int32, payload []byte) error {
	if !phase.AcceptsInbound() {
		return fmt.Errorf("%w: packet 0x%02X received during %s", protocol.ErrPhaseViolation, id, phase)
	}
	opts := protocol.DecodeOptions{SkyLight: c.world.Player().HasSkyLight()}
	pkt, err := d.catalog.Decode(phase, c.version, id, payload, opts)
	if err != nil {
		return err
	}
	c.logger.Trace().Str("packet", pkt.Kind().String()).Int("bytes", len(payload)).Msg("packet decoded")
	return d.Dispatch(c, pkt)
}

// Dispatch runs the handler of a decoded packet. A packet whose kind belongs
// to another phase is a PhaseViolation and reaches no handler. Handler
// failures and panics become HandlerErrors unless the handler marked them
// fatal.
func (d *Dispatcher) Dispatch(c *Connection, pkt protocol.Packet) (err error) {
	kind := pkt.Kind()
	if phase := c.Phase(); kind.Phase() != phase {
		return fmt.Errorf("%w: %s is a %s packet, connection is in %s", protocol.ErrPhaseViolation, kind, kind.Phase(), phase)
	}
	h, ok := d.handlers[kind]
	if !ok {
		return fmt.Errorf("%w: no handler for %s", protocol.ErrUnimplementedPacket, kind)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &protocol.HandlerError{Kind: kind, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := h(c, pkt); err != nil {
		var fe fatalError
		if errors.As(err, &fe) {
			return fe.error
		}
		return &protocol.HandlerError{Kind: kind, Cause: err}
	}
	return nil
}

// Kinds lists the kinds with a registered handler.
func (d *Dispatcher) Kinds() []protocol.PacketKind {
	out := make([]protocol.PacketKind, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func defaultHandlers() map[protocol.PacketKind]HandlerFunc {
	return map[protocol.PacketKind]HandlerFunc{
		protocol.PacketStatusResponse:      handleStatusResponse,
		protocol.PacketStatusPong:          handleStatusPong,
		protocol.PacketLoginDisconnect:     handleLoginDisconnect,
		protocol.PacketEncryptionRequest:   handleEncryptionRequest,
		protocol.PacketLoginSuccess:        handleLoginSuccess,
		protocol.PacketLoginSetCompression: handleSetCompression,
		protocol.PacketPlaySetCompression:  handleSetCompression,

		protocol.PacketKeepAlive:          handleKeepAlive,
		protocol.PacketJoinGame:           handleJoinGame,
		protocol.PacketChatMessage:        handleChatMessage,
		protocol.PacketTimeUpdate:         handleTimeUpdate,
		protocol.PacketSpawnPosition:      handleSpawnPosition,
		protocol.PacketUpdateHealth:       handleUpdateHealth,
		protocol.PacketRespawn:            handleRespawn,
		protocol.PacketPlayerPositionLook: handlePlayerPositionLook,
		protocol.PacketHeldItemChange:     handleHeldItemChange,
		protocol.PacketChangeGameState:    handleChangeGameState,
		protocol.PacketDisconnect:         handleDisconnect,

		protocol.PacketSpawnPlayer:            handleSpawnPlayer,
		protocol.PacketSpawnObject:            handleSpawnObject,
		protocol.PacketSpawnMob:               handleSpawnMob,
		protocol.PacketSpawnExperienceOrb:     handleSpawnExperienceOrb,
		protocol.PacketEntityVelocity:         handleEntityVelocity,
		protocol.PacketDestroyEntities:        handleDestroyEntities,
		protocol.PacketEntityRelativeMove:     handleEntityMove,
		protocol.PacketEntityLook:             handleEntityMove,
		protocol.PacketEntityLookRelativeMove: handleEntityMove,
		protocol.PacketEntityTeleport:         handleEntityTeleport,
		protocol.PacketEntityHeadLook:         handleEntityHeadLook,
		protocol.PacketEntityMetadata:         handleEntityMetadata,
		protocol.PacketEntityEquipment:        handleEntityEquipment,

		protocol.PacketChunkData:         handleChunkData,
		protocol.PacketMapChunkBulk:      handleMapChunkBulk,
		protocol.PacketUnloadChunk:       handleUnloadChunk,
		protocol.PacketBlockChange:       handleBlockChange,
		protocol.PacketMultiBlockChange:  handleMultiBlockChange,
		protocol.PacketUpdateSign:        handleUpdateSign,
		protocol.PacketUpdateBlockEntity: handleUpdateBlockEntity,

		protocol.PacketOpenWindow:  handleOpenWindow,
		protocol.PacketCloseWindow: handleCloseWindow,
		protocol.PacketSetSlot:     handleSetSlot,
		protocol.PacketWindowItems: handleWindowItems,
	}
}
