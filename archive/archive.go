// Package archive persists bus events to SQLite for analysis that outlives
// the bus's bounded in-memory history. The store subscribes to the bus like
// any other consumer; the rest of the framework never depends on it.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/levysystems/agentarmy/bus"
	"github.com/levysystems/agentarmy/logging"
)

// Row is one archived event as read back from the store.
type Row struct {
	ID        int64          `json:"id"`
	EventID   string         `json:"event_id"`
	AgentID   string         `json:"agent_id"`
	Type      bus.EventType  `json:"type"`
	Seq       uint64         `json:"seq"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Options configures a Store instance.
type Options struct {
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Store is the SQLite-backed event archive.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens or creates the archive database at path and ensures the schema
// exists. An empty path opens an in-memory database.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	inMemory := path == ""
	if inMemory {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if inMemory {
		// Each sqlite connection would otherwise get its own private
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: opts.Logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id  TEXT NOT NULL,
		agent_id  TEXT NOT NULL DEFAULT '',
		type      TEXT NOT NULL,
		seq       INTEGER NOT NULL,
		payload   TEXT NOT NULL DEFAULT '{}',
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_seq ON events(seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert archives one event.
func (s *Store) Insert(ev bus.Event) error {
	payload := "{}"
	if len(ev.Payload) > 0 {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for event %s: %w", ev.ID, err)
		}
		payload = string(data)
	}

	_, err := s.db.Exec(
		`INSERT INTO events (event_id, agent_id, type, seq, payload, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.AgentID, string(ev.Type), ev.Seq, payload, ev.Timestamp,
	)
	return err
}

// Subscriber adapts the store to a bus handler so it can archive all
// traffic. Insert failures are reported to the bus's subscriber error
// handling and never block other consumers.
func (s *Store) Subscriber() bus.Handler {
	return func(ev bus.Event) error {
		if err := s.Insert(ev); err != nil {
			s.logger.Error("archive.insert_failed", "event_id", ev.ID, "error", err.Error())
			return err
		}
		return nil
	}
}

// Recent returns the most recently archived events, newest first.
func (s *Store) Recent(limit int) ([]Row, error) {
	rows, err := s.db.Query(
		`SELECT id, event_id, agent_id, type, seq, payload, timestamp
		 FROM events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// ByAgent returns archived events for one agent, newest first.
func (s *Store) ByAgent(agentID string, limit int) ([]Row, error) {
	rows, err := s.db.Query(
		`SELECT id, event_id, agent_id, type, seq, payload, timestamp
		 FROM events WHERE agent_id = ? ORDER BY id DESC LIMIT ?`, agentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// CountByType aggregates archived events per event type.
func (s *Store) CountByType() (map[bus.EventType]int, error) {
	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[bus.EventType]int)
	for rows.Next() {
		var (
			eventType string
			count     int
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		out[bus.EventType(eventType)] = count
	}
	return out, rows.Err()
}

// Len reports the total number of archived events.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var (
			r         Row
			eventType string
			payload   string
		)
		if err := rows.Scan(&r.ID, &r.EventID, &r.AgentID, &eventType, &r.Seq, &payload, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Type = bus.EventType(eventType)
		if payload != "" && payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for event %s: %w", r.EventID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
