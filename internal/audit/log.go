// Package audit records what each CLI command did in a per-workspace SQLite log.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// EnvDBPath overrides the audit database location when no path is configured.
const EnvDBPath = "FORMULARY_AUDIT_DB"

const defaultDBPath = "state/audit.sqlite"

// Event is one stored audit record.
type Event struct {
	ID          int64
	Timestamp   time.Time
	Actor       string
	Type        string
	PayloadJSON string
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal([]byte(e.PayloadJSON), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Logger appends events to the database at DBPath. Each call opens and closes
// the database so concurrent CLI invocations do not hold it.
type Logger struct {
	DBPath string
}

// NewLogger returns a Logger bound to dbPath.
func NewLogger(dbPath string) *Logger {
	return &Logger{DBPath: dbPath}
}

// LogEvent writes one event. The payload is stored as JSON.
func (l *Logger) LogEvent(actor, eventType string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	db, err := l.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	_, err = db.Exec(
		"INSERT INTO events (ts, actor, type, payload_json) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339Nano),
		actor,
		eventType,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Events returns stored events in insertion order. An empty eventType returns all.
func (l *Logger) Events(eventType string) ([]Event, error) {
	db, err := l.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close()
	}()

	query := "SELECT id, ts, actor, type, payload_json FROM events"
	var args []any
	if eventType != "" {
		query += " WHERE type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev Event
			ts string
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.Actor, &ev.Type, &ev.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", ts, err)
		}
		ev.Timestamp = parsed
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (l *Logger) open() (*sql.DB, error) {
	path, err := l.resolve()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (l *Logger) resolve() (string, error) {
	dbPath := ""
	if l != nil {
		dbPath = l.DBPath
	}
	if dbPath == "" {
		dbPath = os.Getenv(EnvDBPath)
	}
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("resolve audit db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure audit db dir: %w", err)
	}
	return absPath, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			actor TEXT NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, id);
	`)
	if err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}
