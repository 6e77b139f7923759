// Package cli implements the interactive console of the client. It renders
// the mirrored world as tables and forwards chat and respawn commands to the
// session through the event bus.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/db"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

// Session is the live connection as seen by the console.
type Session interface {
	World() *world.World
	Phase() protocol.Phase
	Version() protocol.Version
	Encrypted() bool
	CompressionThreshold() int32
	ConnectedAt() time.Time
}

type sessionHolder struct{ s Session }

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	history  *db.HistoryStore
	session  atomic.Pointer[sessionHolder]

	in  io.Reader
	out io.Writer
}

// NewCLI creates a new CLI handler reading commands from in and writing to out.
// history may be nil.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, history *db.HistoryStore, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		history:  history,
		in:       in,
		out:      out,
	}
}

// Attach sets the session the console reports on. nil detaches.
func (c *CLI) Attach(sess Session) {
	if sess == nil {
		c.session.Store(nil)
		return
	}
	c.session.Store(&sessionHolder{s: sess})
}

func (c *CLI) current() (Session, error) {
	h := c.session.Load()
	if h == nil {
		return nil, errors.New("not connected")
	}
	return h.s, nil
}

// Start runs the command loop until ctx is done or input ends.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\ncubelink console ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Str("component", "cli").Msg("input closed")
		}
	}()

	for {
		fmt.Fprint(c.out, "cubelink> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parts := strings.Fields(line)
			if err := c.Execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// Execute processes a single command.
func (c *CLI) Execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		return c.printStatus()
	case "player", "p":
		return c.printPlayer()
	case "entities", "e":
		return c.printEntities(args)
	case "chunks":
		return c.printChunks()
	case "block":
		return c.printBlock(args)
	case "windows", "inv":
		return c.printWindows()
	case "chat", "say":
		return c.cmdChat(ctx, args)
	case "respawn":
		return c.cmdRespawn(ctx)
	case "history":
		return c.printHistory(ctx, args)
	case "setconfig":
		return c.cmdSetConfig(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down cubelink...")
		c.eventBus.Emit(ctx, events.Event{Type: events.EventShutdown, Source: "cli"})
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	tw := c.table([]string{"Command", "Description"})
	for _, row := range [][]string{
		{"status", "Show connection state"},
		{"player", "Show the local player"},
		{"entities [category]", "List mirrored entities"},
		{"chunks", "List loaded chunk columns"},
		{"block <x> <y> <z>", "Show the block at a position"},
		{"windows", "List open inventory windows"},
		{"chat <message>", "Send a chat message"},
		{"respawn", "Request a respawn"},
		{"history <status|chat|sessions> [n]", "Show recorded history"},
		{"setconfig <section.key> <value>", "Update a configuration value"},
		{"quit", "Disconnect and exit"},
	} {
		tw.Append(row)
	}
	tw.Render()
}

func (c *CLI) table(header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

func (c *CLI) printStatus() error {
	sess, err := c.current()
	if err != nil {
		return err
	}
	age, timeOfDay := sess.World().Time()
	fmt.Fprintf(c.out, "\n  Phase:        %s\n", sess.Phase())
	fmt.Fprintf(c.out, "  Version:      %s (%d)\n", sess.Version(), int32(sess.Version()))
	fmt.Fprintf(c.out, "  Encrypted:    %v\n", sess.Encrypted())
	fmt.Fprintf(c.out, "  Compression:  %d\n", sess.CompressionThreshold())
	fmt.Fprintf(c.out, "  Connected:    %s\n", formatSince(sess.ConnectedAt()))
	fmt.Fprintf(c.out, "  World age:    %d (time of day %d)\n", age, timeOfDay)
	fmt.Fprintf(c.out, "  Entities:     %d\n", sess.World().EntityCount())
	fmt.Fprintf(c.out, "  Chunks:       %d\n\n", len(sess.World().Chunks()))
	return nil
}

func (c *CLI) printPlayer() error {
	sess, err := c.current()
	if err != nil {
		return err
	}
	p := sess.World().Player()
	if !p.Spawned {
		fmt.Fprintln(c.out, "Player has not spawned yet")
		return nil
	}
	fmt.Fprintf(c.out, "\n  Name:       %s (entity %d)\n", p.Name, p.EntityID)
	fmt.Fprintf(c.out, "  Game mode:  %s\n", p.GameMode)
	fmt.Fprintf(c.out, "  Dimension:  %d\n", p.Dimension)
	fmt.Fprintf(c.out, "  Position:   %.2f %.2f %.2f\n", p.Position[0], p.Position[1], p.Position[2])
	fmt.Fprintf(c.out, "  Health:     %.1f  Food: %d\n", p.Health, p.Food)
	if p.Dead() {
		fmt.Fprintln(c.out, "  Player is dead; use 'respawn'")
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *CLI) printEntities(args []string) error {
	sess, err := c.current()
	if err != nil {
		return err
	}
	var category string
	if len(args) > 0 {
		category = strings.ToLower(args[0])
	}

	entities := sess.World().Entities()
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	tw := c.table([]string{"ID", "Category", "Type", "X", "Y", "Z", "Ground"})
	shown := 0
	for _, e := range entities {
		if category != "" && e.Kind.Category.String() != category {
			continue
		}
		tw.Append([]string{
			strconv.Itoa(int(e.ID)),
			e.Kind.Category.String(),
			e.Info().Name,
			fmt.Sprintf("%.2f", e.Position[0]),
			fmt.Sprintf("%.2f", e.Position[1]),
			fmt.Sprintf("%.2f", e.Position[2]),
			strconv.FormatBool(e.OnGround),
		})
		shown++
	}
	tw.Render()
	fmt.Fprintf(c.out, "%d entities\n", shown)
	return nil
}

func (c *CLI) printChunks() error {
	sess, err := c.current()
	if err != nil {
		return err
	}
	tw := c.table([]string{"Chunk", "Sections", "Blocks", "Block entities"})
	chunks := sess.World().Chunks()
	for _, ch := range chunks {
		tw.Append([]string{
			ch.Pos.String(),
			fmt.Sprintf("%016b", ch.Sections),
			strconv.Itoa(ch.NonAirBlocks),
			strconv.Itoa(ch.BlockEntities),
		})
	}
	tw.Render()
	fmt.Fprintf(c.out, "%d chunks\n", len(chunks))
	return nil
}

func (c *CLI) printBlock(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: block <x> <y> <z>")
	}
	var coords [3]int32
	for i, a := range args {
		n, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid coordinate: %s", a)
		}
		coords[i] = int32(n)
	}
	sess, err := c.current()
	if err != nil {
		return err
	}
	pos := world.BlockPos{X: coords[0], Y: coords[1], Z: coords[2]}
	w := sess.World()
	if !w.HasChunk(pos.Chunk()) {
		return fmt.Errorf("chunk %s is not loaded", pos.Chunk())
	}
	state := w.Block(pos)
	fmt.Fprintf(c.out, "%s: id=%d meta=%d\n", pos, state.ID(), state.Meta())
	if be, ok := w.BlockEntity(pos); ok {
		text := strings.TrimSpace(strings.Join(be.SignText[:], " "))
		if text != "" {
			fmt.Fprintf(c.out, "  sign: %s\n", text)
		} else {
			fmt.Fprintf(c.out, "  block entity (action %d)\n", be.Action)
		}
	}
	return nil
}

func (c *CLI) printWindows() error {
	sess, err := c.current()
	if err != nil {
		return err
	}
	tw := c.table([]string{"ID", "Type", "Title", "Slots", "Filled"})
	for _, w := range sess.World().Windows() {
		tw.Append([]string{
			strconv.Itoa(int(w.ID)),
			w.Type,
			w.Title,
			strconv.Itoa(len(w.Slots)),
			strconv.Itoa(w.Filled()),
		})
	}
	tw.Render()
	if cursor := sess.World().Cursor(); cursor != nil {
		fmt.Fprintf(c.out, "Cursor: %s\n", cursor)
	}
	return nil
}

func (c *CLI) cmdChat(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: chat <message>")
	}
	message := strings.Join(args, " ")
	if len(message) > protocol.MaxChatLength {
		return fmt.Errorf("message longer than %d characters", protocol.MaxChatLength)
	}
	if c.eventBus.HandlerCount(events.EventSendChat) == 0 {
		return errors.New("not connected")
	}
	err := c.eventBus.EmitSync(ctx, events.Event{
		Type:    events.EventSendChat,
		Source:  "cli",
		Payload: events.SendChatPayload{Message: message},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Sent: %s\n", message)
	return nil
}

func (c *CLI) cmdRespawn(ctx context.Context) error {
	if c.eventBus.HandlerCount(events.EventRespawn) == 0 {
		return errors.New("not connected")
	}
	if err := c.eventBus.EmitSync(ctx, events.Event{Type: events.EventRespawn, Source: "cli"}); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Respawn requested")
	return nil
}

func (c *CLI) printHistory(ctx context.Context, args []string) error {
	if c.history == nil {
		return errors.New("history database is disabled")
	}
	if len(args) < 1 {
		return errors.New("usage: history <status|chat|sessions> [n]")
	}
	limit := 10
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[1])
		}
		limit = n
	}

	switch args[0] {
	case "status":
		records, err := c.history.RecentStatus(ctx, limit)
		if err != nil {
			return err
		}
		tw := c.table([]string{"Time", "Address", "Version", "Players", "Latency"})
		for _, r := range records {
			tw.Append([]string{
				r.CreatedAt.Local().Format(time.DateTime),
				r.Address,
				r.Version,
				fmt.Sprintf("%d/%d", r.Online, r.Max),
				fmt.Sprintf("%dms", r.LatencyMS),
			})
		}
		tw.Render()
	case "chat":
		records, err := c.history.RecentChat(ctx, limit)
		if err != nil {
			return err
		}
		tw := c.table([]string{"Time", "Position", "Text"})
		for _, r := range records {
			tw.Append([]string{r.CreatedAt.Local().Format(time.DateTime), strconv.Itoa(int(r.Position)), r.Text})
		}
		tw.Render()
	case "sessions":
		records, err := c.history.RecentSessions(ctx, limit)
		if err != nil {
			return err
		}
		tw := c.table([]string{"Time", "Kind", "Detail", "Error"})
		for _, r := range records {
			tw.Append([]string{r.CreatedAt.Local().Format(time.DateTime), r.Kind, r.Detail, r.Error})
		}
		tw.Render()
	default:
		return fmt.Errorf("unknown history kind: %s", args[0])
	}
	return nil
}

// cmdSetConfig updates one field. Keys are "client.<json key>" or
// "<application section>.<json key>".
func (c *CLI) cmdSetConfig(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: setconfig <section.key> <value>")
	}
	key := args[0]
	value := strings.Join(args[1:], " ")

	var err error
	if field, ok := strings.CutPrefix(key, "client."); ok {
		err = c.cfg.UpdateClientField(field, value)
	} else {
		err = c.cfg.UpdateAppField(key, value)
	}
	if err != nil {
		return err
	}
	if err := c.cfg.Save(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Config updated: %s = %s (takes effect on restart)\n", key, value)
	return nil
}

func formatSince(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Truncate(time.Second).String()
}
