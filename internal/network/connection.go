// Package network runs client connections: wire framing, the encryption
// handshake, the inbound and outbound flows and the packet handlers that
// reconcile the world mirror.
package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

const (
	// DefaultQueueSize bounds the outbound queue when Options leaves it unset.
	DefaultQueueSize = 256

	writeTimeout = 10 * time.Second
)

// SessionJoiner performs the account-side join for an online-mode login.
type SessionJoiner interface {
	Join(ctx context.Context, serverHash string) error
}

// Options configures a Connection.
type Options struct {
	Version     protocol.Version
	Username    string
	Host        string
	Port        uint16
	QueueSize   int
	ReadTimeout time.Duration

	Session    SessionJoiner
	Bus        *events.EventBus
	World      *world.World
	Dispatcher *Dispatcher

	// Random feeds the shared secret and RSA padding. Defaults to crypto/rand.
	Random io.Reader
}

// DisconnectError is returned by Run when the server closed the session.
type DisconnectError struct {
	Reason string
}

func (e *DisconnectError) Error() string {
	return "disconnected by server: " + e.Reason
}

// StatusResult is the outcome of a status probe.
type StatusResult struct {
	Status  protocol.ServerStatus
	Raw     string
	Latency time.Duration
}

type outItem struct {
	kind      protocol.PacketKind
	id        int32
	data      []byte
	onWritten func()
	done      chan error
}

func (it outItem) finish(err error) {
	if it.done != nil {
		it.done <- err
	}
}

// Connection is one client session over an established transport. The
// inbound flow runs inside Run and is the only writer of the world; the
// outbound flow is a writer goroutine fed by a bounded queue.
type Connection struct {
	transport io.ReadWriteCloser
	in        *bufio.Reader // inbound flow only
	out       io.Writer     // writer goroutine only

	opts       Options
	version    protocol.Version
	machine    *protocol.Machine
	dispatcher *Dispatcher
	world      *world.World
	bus        *events.EventBus
	logger     zerolog.Logger
	ctx        context.Context

	queue      chan outItem
	threshold  atomic.Int32
	encrypted  atomic.Bool
	writerDone chan struct{}

	connectedAt  time.Time
	lastActivity atomic.Int64

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	err    error
	reason string
	status *StatusResult

	pingSent time.Time
}

// NewConnection wraps an established transport. The transport is owned by
// the connection from here on and closed on teardown.
func NewConnection(transport io.ReadWriteCloser, opts Options) (*Connection, error) {
	if !opts.Version.Supported() {
		return nil, fmt.Errorf("unsupported protocol version %d", int32(opts.Version))
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.World == nil {
		opts.World = world.NewWorld()
	}
	if opts.Dispatcher == nil {
		d, err := DefaultDispatcher()
		if err != nil {
			return nil, err
		}
		opts.Dispatcher = d
	}

	remote := net.JoinHostPort(opts.Host, strconv.Itoa(int(opts.Port)))
	if nc, ok := transport.(net.Conn); ok && nc.RemoteAddr() != nil {
		remote = nc.RemoteAddr().String()
	}

	now := time.Now()
	c := &Connection{
		transport:   transport,
		in:          bufio.NewReader(transport),
		out:         transport,
		opts:        opts,
		version:     opts.Version,
		machine:     protocol.NewMachine(),
		dispatcher:  opts.Dispatcher,
		world:       opts.World,
		bus:         opts.Bus,
		ctx:         context.Background(),
		queue:       make(chan outItem, opts.QueueSize),
		writerDone:  make(chan struct{}),
		connectedAt: now,
		done:        make(chan struct{}),
		logger: log.With().
			Str("component", "connection").
			Str("remote", remote).
			Str("version", opts.Version.String()).
			Logger(),
	}
	c.threshold.Store(CompressionDisabled)
	c.lastActivity.Store(now.UnixNano())
	return c, nil
}

// Run performs the handshake for intent and then runs the inbound flow
// until the connection reaches Disconnecting. It returns the terminal
// error, or nil for a local close or a completed status probe.
func (c *Connection) Run(ctx context.Context, intent protocol.Intent) error {
	c.ctx = ctx
	go c.writeLoop()
	stop := context.AfterFunc(ctx, func() {
		c.shutdown("context cancelled", ctx.Err())
	})
	defer stop()

	if err := c.open(intent); err != nil {
		c.shutdown("handshake failed", err)
	} else {
		c.readLoop()
	}

	<-c.writerDone
	c.world.Clear()
	return c.Err()
}

func (c *Connection) open(intent protocol.Intent) error {
	err := c.Send(&protocol.Handshake{
		Version: c.version,
		Host:    c.opts.Host,
		Port:    c.opts.Port,
		Intent:  intent,
	})
	if err != nil {
		return err
	}
	if err := c.transition(intent.Phase()); err != nil {
		return err
	}
	if intent == protocol.IntentStatus {
		return c.Send(&protocol.StatusRequest{})
	}
	return c.Send(&protocol.LoginStart{Username: c.opts.Username})
}

func (c *Connection) readLoop() {
	for !c.machine.Disconnecting() {
		if d := c.opts.ReadTimeout; d > 0 {
			if dl, ok := c.transport.(interface{ SetReadDeadline(time.Time) error }); ok {
				dl.SetReadDeadline(time.Now().Add(d))
			}
		}

		frame, err := ReadFrame(c.in, c.threshold.Load())
		if err != nil {
			if c.machine.Disconnecting() {
				return
			}
			c.shutdown("connection lost", fmt.Errorf("failed to read frame: %w", err))
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())

		phase := c.machine.Phase()
		if phase == protocol.PhaseDisconnecting {
			return
		}
		if err := c.dispatcher.HandleInbound(c, phase, frame.ID, frame.Payload); err != nil {
			c.report(phase, frame.ID, err)
			if protocol.IsFatal(err) {
				c.shutdown("protocol error", err)
				return
			}
		}
	}
}

func (c *Connection) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case <-c.done:
			c.drain()
			return
		case item := <-c.queue:
			if c.machine.Disconnecting() {
				item.finish(protocol.ErrClosed)
				continue
			}
			if nc, ok := c.transport.(net.Conn); ok {
				nc.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if err := WriteFrame(c.out, c.threshold.Load(), item.id, item.data); err != nil {
				item.finish(err)
				c.shutdown("write failed", fmt.Errorf("failed to write %s: %w", item.kind, err))
				c.drain()
				return
			}
			c.lastActivity.Store(time.Now().UnixNano())
			c.logger.Trace().Str("packet", item.kind.String()).Int("bytes", len(item.data)).Msg("packet sent")
			if item.onWritten != nil {
				item.onWritten()
			}
			item.finish(nil)
		}
	}
}

// drain discards whatever is still queued after Disconnecting.
func (c *Connection) drain() {
	for {
		select {
		case item := <-c.queue:
			item.finish(protocol.ErrClosed)
		default:
			return
		}
	}
}

// Send encodes p and enqueues it without blocking. The packet must belong to
// the current phase; a full queue returns ErrQueueFull.
func (c *Connection) Send(p protocol.Outbound) error {
	return c.enqueue(p, nil, nil)
}

// sendAndWait enqueues p and blocks until the writer has put it on the wire.
// onWritten runs on the writer goroutine right after the write.
func (c *Connection) sendAndWait(p protocol.Outbound, onWritten func()) error {
	done := make(chan error, 1)
	if err := c.enqueue(p, onWritten, done); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-c.done:
		return protocol.ErrClosed
	}
}

func (c *Connection) enqueue(p protocol.Outbound, onWritten func(), done chan error) error {
	phase := c.machine.Phase()
	if phase == protocol.PhaseDisconnecting {
		return protocol.ErrClosed
	}
	if want := p.Kind().Phase(); want != phase {
		return fmt.Errorf("%w: cannot send %s packet %s during %s", protocol.ErrPhaseViolation, want, p.Kind(), phase)
	}
	id, data, err := protocol.Encode(p, c.version)
	if err != nil {
		return err
	}
	item := outItem{kind: p.Kind(), id: id, data: data, onWritten: onWritten, done: done}
	select {
	case <-c.done:
		return protocol.ErrClosed
	default:
	}
	select {
	case c.queue <- item:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", protocol.ErrQueueFull, p.Kind())
	}
}

func (c *Connection) transition(to protocol.Phase) error {
	from := c.machine.Phase()
	if err := c.machine.Transition(to); err != nil {
		return err
	}
	c.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("phase changed")
	c.emit(events.EventPhaseChanged, events.PhaseChangedPayload{From: from.String(), To: to.String()})
	return nil
}

// shutdown moves to Disconnecting exactly once. Both flows observe the phase
// on their next iteration; closing the transport unblocks a pending read.
func (c *Connection) shutdown(reason string, err error) {
	c.closeOnce.Do(func() {
		from := c.machine.Phase()
		c.machine.Disconnect()

		c.mu.Lock()
		c.err = err
		c.reason = reason
		c.mu.Unlock()

		close(c.done)
		c.transport.Close()

		ev := c.logger.Info()
		if err != nil {
			ev = c.logger.Error().Err(err)
		}
		ev.Str("reason", reason).Dur("uptime", time.Since(c.connectedAt)).Msg("connection closed")

		c.emit(events.EventPhaseChanged, events.PhaseChangedPayload{
			From: from.String(),
			To:   protocol.PhaseDisconnecting.String(),
		})
		payload := events.DisconnectedPayload{Reason: reason}
		if err != nil {
			payload.Error = err.Error()
		}
		c.emit(events.EventDisconnected, payload)
	})
}

// report logs a failed inbound packet and publishes it on the bus.
func (c *Connection) report(phase protocol.Phase, id int32, err error) {
	class := events.ErrorClassFatal
	var he *protocol.HandlerError
	switch {
	case errors.As(err, &he):
		class = events.ErrorClassHandler
		c.logger.Warn().Err(err).Str("phase", phase.String()).Msg("handler failed")
	case errors.Is(err, protocol.ErrUnimplementedPacket):
		class = events.ErrorClassUnimplemented
		c.logger.Debug().Err(err).Msg("skipped unimplemented packet")
	case errors.Is(err, protocol.ErrUnknownPacket):
		class = events.ErrorClassUnknownPacket
		c.logger.Warn().Err(err).Msg("skipped unknown packet")
	}
	c.emit(events.EventProtocolError, events.ProtocolErrorPayload{
		Class:    class,
		Phase:    phase.String(),
		PacketID: id,
		Error:    err.Error(),
	})
}

func (c *Connection) emit(t events.EventType, payload interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Emit(context.WithoutCancel(c.ctx), events.Event{Type: t, Source: "connection", Payload: payload})
}

// Close tears the connection down locally.
func (c *Connection) Close() error {
	c.shutdown("closed locally", nil)
	return nil
}

// Done is closed once the connection reached Disconnecting.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error, if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Reason returns why the connection was torn down.
func (c *Connection) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Phase returns the current phase.
func (c *Connection) Phase() protocol.Phase {
	return c.machine.Phase()
}

// Version returns the negotiated protocol version.
func (c *Connection) Version() protocol.Version {
	return c.version
}

// World returns the mirrored world. Readers get snapshots that may be stale.
func (c *Connection) World() *world.World {
	return c.world
}

// Encrypted reports whether the stream cipher is installed.
func (c *Connection) Encrypted() bool {
	return c.encrypted.Load()
}

// CompressionThreshold returns the active threshold or CompressionDisabled.
func (c *Connection) CompressionThreshold() int32 {
	return c.threshold.Load()
}

// Status returns the result of a completed status probe.
func (c *Connection) Status() (*StatusResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == nil {
		return nil, false
	}
	st := *c.status
	return &st, true
}

// ConnectedAt returns the time the connection was created.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// LastActivity returns the time of the last read or write.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// Probe runs a one-shot status query over transport.
func Probe(ctx context.Context, transport io.ReadWriteCloser, opts Options) (*StatusResult, error) {
	c, err := NewConnection(transport, opts)
	if err != nil {
		transport.Close()
		return nil, err
	}
	runErr := c.Run(ctx, protocol.IntentStatus)
	if st, ok := c.Status(); ok {
		return st, nil
	}
	if runErr == nil {
		runErr = errors.New("server closed the connection without a status")
	}
	return nil, runErr
}
