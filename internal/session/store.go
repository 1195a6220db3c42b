// Package session persists saved analyses (records plus the registry they
// were produced against) in SQLite.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"formulary/internal/formulastore"
)

var ErrNotFound = errors.New("saved analysis not found")

// SavedAnalysis is a snapshot of one workflow's results.
type SavedAnalysis struct {
	ID               string                 `json:"id"`
	CreatedAt        time.Time              `json:"created_at"`
	Note             string                 `json:"note,omitempty"`
	Formulas         []formulastore.Formula `json:"formulas"`
	InputVariables   map[string]string      `json:"input_variables"`
	OutputVariables  []string               `json:"output_variables"`
	VariantsDetected []string               `json:"variants_detected"`
}

// Summary is the listing view of a saved analysis.
type Summary struct {
	ID           string
	CreatedAt    time.Time
	Note         string
	FormulaCount int
}

// Store manages saved analyses.
type Store struct {
	DBPath string
	db     *sql.DB
	log    *zap.Logger
}

// Open opens or creates the sessions database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sessions db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure sessions db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open sessions db: %w", err)
	}

	store := &Store{
		DBPath: absPath,
		db:     db,
		log:    logger.Named("session"),
	}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS saved_analyses (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	note TEXT,
	formula_count INTEGER NOT NULL,
	payload_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saved_created ON saved_analyses(created_at);
`)
	if err != nil {
		return fmt.Errorf("create sessions schema: %w", err)
	}
	return nil
}

// Save stores a. A missing id or timestamp is filled in. Saving an existing id
// replaces it. The stored id is returned.
func (s *Store) Save(ctx context.Context, a SavedAnalysis) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.Note = strings.TrimSpace(a.Note)
	if a.Formulas == nil {
		a.Formulas = []formulastore.Formula{}
	}
	if a.InputVariables == nil {
		a.InputVariables = map[string]string{}
	}
	if a.OutputVariables == nil {
		a.OutputVariables = []string{}
	}
	if a.VariantsDetected == nil {
		a.VariantsDetected = []string{}
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal saved analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_analyses (id, created_at, note, formula_count, payload_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			note = excluded.note,
			formula_count = excluded.formula_count,
			payload_json = excluded.payload_json
	`, a.ID, a.CreatedAt.Format(time.RFC3339Nano), a.Note, len(a.Formulas), string(payload))
	if err != nil {
		return "", fmt.Errorf("insert saved analysis: %w", err)
	}

	s.log.Info("analysis saved", zap.String("id", a.ID), zap.Int("formulas", len(a.Formulas)))
	return a.ID, nil
}

// Get loads one saved analysis.
func (s *Store) Get(ctx context.Context, id string) (*SavedAnalysis, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload_json FROM saved_analyses WHERE id = ?", id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get saved analysis: %w", err)
	}

	var a SavedAnalysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("decode saved analysis %s: %w", id, err)
	}
	return &a, nil
}

// List returns summaries, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, note, formula_count
		FROM saved_analyses
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list saved analyses: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			createdAt string
			note      sql.NullString
		)
		if err := rows.Scan(&sum.ID, &createdAt, &note, &sum.FormulaCount); err != nil {
			return nil, fmt.Errorf("scan saved analysis: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", sum.ID, err)
		}
		sum.CreatedAt = parsed
		if note.Valid {
			sum.Note = note.String
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a saved analysis. It reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM saved_analyses WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete saved analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete saved analysis: %w", err)
	}
	return n > 0, nil
}
