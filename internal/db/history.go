package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/events"
)

// HistoryStore records what the client saw across sessions.
type HistoryStore struct {
	db *Database
}

// StatusRecord is one stored status probe.
type StatusRecord struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Version   string    `json:"version"`
	Protocol  int32     `json:"protocol"`
	Online    int       `json:"online"`
	Max       int       `json:"max"`
	MOTD      string    `json:"motd"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRecord is one stored chat line.
type ChatRecord struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Raw       string    `json:"raw"`
	Position  int8      `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord is a login or a disconnect.
type SessionRecord struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session record kinds.
const (
	SessionLogin      = "login"
	SessionDisconnect = "disconnect"
)

// NewHistoryStore opens the database at dbPath and migrates its schema.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	hs := &HistoryStore{db: database}
	if err := hs.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return hs, nil
}

func (hs *HistoryStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS status_probes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			address TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '',
			protocol INTEGER NOT NULL,
			online INTEGER NOT NULL DEFAULT 0,
			max_players INTEGER NOT NULL DEFAULT 0,
			motd TEXT NOT NULL DEFAULT '',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			raw TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_status_probes_address ON status_probes(address);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_created ON chat_messages(created_at);
		CREATE INDEX IF NOT EXISTS idx_sessions_kind ON sessions(kind);
	`

	if _, err := hs.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("database schema migrated")
	return nil
}

// Close closes the underlying database.
func (hs *HistoryStore) Close() error {
	return hs.db.Close()
}

// Attach subscribes the store to the events it records.
func (hs *HistoryStore) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventStatusReceived, "db.status", hs.onStatus)
	bus.Subscribe(events.EventChatReceived, "db.chat", hs.onChat)
	bus.Subscribe(events.EventLoginSucceeded, "db.login", hs.onLogin)
	bus.Subscribe(events.EventDisconnected, "db.disconnect", hs.onDisconnect)
}

func (hs *HistoryStore) onStatus(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.StatusReceivedPayload)
	if !ok {
		return nil
	}
	return hs.RecordStatus(ctx, StatusRecord{
		Address:   p.Address,
		Version:   p.VersionName,
		Protocol:  p.Protocol,
		Online:    p.Online,
		Max:       p.Max,
		MOTD:      p.MOTD,
		LatencyMS: p.Latency.Milliseconds(),
		CreatedAt: e.Time,
	})
}

func (hs *HistoryStore) onChat(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.ChatReceivedPayload)
	if !ok {
		return nil
	}
	return hs.RecordChat(ctx, ChatRecord{Text: p.Text, Raw: p.Raw, Position: p.Position, CreatedAt: e.Time})
}

func (hs *HistoryStore) onLogin(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.LoginPayload)
	if !ok {
		return nil
	}
	return hs.RecordSession(ctx, SessionRecord{
		Kind:      SessionLogin,
		Detail:    p.Username + " " + p.UUID,
		CreatedAt: e.Time,
	})
}

func (hs *HistoryStore) onDisconnect(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.DisconnectedPayload)
	if !ok {
		return nil
	}
	return hs.RecordSession(ctx, SessionRecord{
		Kind:      SessionDisconnect,
		Detail:    p.Reason,
		Error:     p.Error,
		CreatedAt: e.Time,
	})
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// RecordStatus stores a status probe result.
func (hs *HistoryStore) RecordStatus(ctx context.Context, r StatusRecord) error {
	_, err := hs.db.Exec(ctx,
		`INSERT INTO status_probes (address, version, protocol, online, max_players, motd, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Address, r.Version, r.Protocol, r.Online, r.Max, r.MOTD, r.LatencyMS, stamp(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record status probe: %w", err)
	}
	return nil
}

// RecordChat stores a chat line.
func (hs *HistoryStore) RecordChat(ctx context.Context, r ChatRecord) error {
	_, err := hs.db.Exec(ctx,
		"INSERT INTO chat_messages (text, raw, position, created_at) VALUES (?, ?, ?, ?)",
		r.Text, r.Raw, r.Position, stamp(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record chat message: %w", err)
	}
	return nil
}

// RecordSession stores a login or disconnect.
func (hs *HistoryStore) RecordSession(ctx context.Context, r SessionRecord) error {
	_, err := hs.db.Exec(ctx,
		"INSERT INTO sessions (kind, detail, error, created_at) VALUES (?, ?, ?, ?)",
		r.Kind, r.Detail, r.Error, stamp(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// RecentStatus returns the newest status probes, newest first.
func (hs *HistoryStore) RecentStatus(ctx context.Context, limit int) ([]StatusRecord, error) {
	rows, err := hs.db.Query(ctx,
		`SELECT id, address, version, protocol, online, max_players, motd, latency_ms, created_at
		 FROM status_probes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query status probes: %w", err)
	}
	defer rows.Close()

	var out []StatusRecord
	for rows.Next() {
		var r StatusRecord
		if err := rows.Scan(&r.ID, &r.Address, &r.Version, &r.Protocol, &r.Online, &r.Max,
			&r.MOTD, &r.LatencyMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentChat returns the newest chat lines, newest first.
func (hs *HistoryStore) RecentChat(ctx context.Context, limit int) ([]ChatRecord, error) {
	rows, err := hs.db.Query(ctx,
		"SELECT id, text, raw, position, created_at FROM chat_messages ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var out []ChatRecord
	for rows.Next() {
		var r ChatRecord
		if err := rows.Scan(&r.ID, &r.Text, &r.Raw, &r.Position, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSessions returns the newest logins and disconnects, newest first.
func (hs *HistoryStore) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := hs.db.Query(ctx,
		"SELECT id, kind, detail, error, created_at FROM sessions ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.Kind, &r.Detail, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes rows recorded before cutoff from every table and returns the
// number of rows removed.
func (hs *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := hs.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"status_probes", "chat_messages", "sessions"} {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", cutoff.UTC())
			if err != nil {
				return fmt.Errorf("failed to prune %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
