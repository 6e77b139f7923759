package protocol

import (
	"fmt"
	"sync/atomic"
)

// Phase is a connection lifecycle stage gating the legal packet set.
type Phase int32

const (
	PhaseHandshake Phase = iota
	PhaseStatus
	PhaseLogin
	PhasePlay
	PhaseDisconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseHandshake:
		return "handshake"
	case PhaseStatus:
		return "status"
	case PhaseLogin:
		return "login"
	case PhasePlay:
		return "play"
	case PhaseDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// MarshalJSON encodes the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// AcceptsInbound reports whether packets may be decoded in this phase. The
// server never speaks during the handshake.
func (p Phase) AcceptsInbound() bool {
	return p == PhaseStatus || p == PhaseLogin || p == PhasePlay
}

// Intent is the next state requested by the handshake.
type Intent int32

const (
	IntentStatus Intent = 1
	IntentLogin  Intent = 2
)

// Phase returns the phase the intent leads to.
func (i Intent) Phase() Phase {
	if i == IntentStatus {
		return PhaseStatus
	}
	return PhaseLogin
}

var transitions = map[Phase][]Phase{
	PhaseHandshake: {PhaseStatus, PhaseLogin},
	PhaseStatus:    {},
	PhaseLogin:     {PhasePlay},
	PhasePlay:      {},
}

// Machine holds the phase of one connection. Transitions are monotonic and
// Disconnecting is terminal; both flows of a connection poll it.
type Machine struct {
	phase atomic.Int32
}

// NewMachine starts in Handshake.
func NewMachine() *Machine {
	return &Machine{}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return Phase(m.phase.Load())
}

// Transition moves to the next phase. Any phase may move to Disconnecting;
// every other move must appear in the transition table.
func (m *Machine) Transition(to Phase) error {
	for {
		from := m.Phase()
		if !legal(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrPhaseViolation, from, to)
		}
		if m.phase.CompareAndSwap(int32(from), int32(to)) {
			return nil
		}
	}
}

// Disconnect moves to the terminal phase and reports whether this call did it.
func (m *Machine) Disconnect() bool {
	return Phase(m.phase.Swap(int32(PhaseDisconnecting))) != PhaseDisconnecting
}

// Disconnecting reports whether the terminal phase was reached.
func (m *Machine) Disconnecting() bool {
	return m.Phase() == PhaseDisconnecting
}

func legal(from, to Phase) bool {
	if from == PhaseDisconnecting {
		return false
	}
	if to == PhaseDisconnecting {
		return true
	}
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
