// Package storage persists learned automata in SQLite and exports them as
// JSON, Treba text and Graphviz files.
//
// Every model is stored as its JSON encoding together with a kind tag, its
// size and the training statistics. The number of stored models is bounded;
// RotateModels drops the oldest ones. Exports are written atomically through
// a temporary file and a rename.
package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/pdtta/internal/automaton"
	"github.com/rewired-gh/pdtta/internal/logger"
)

// ErrNotFound is returned when no model has the requested id.
var ErrNotFound = errors.New("model not found")

const schema = `
CREATE TABLE IF NOT EXISTS models (
	model_id      TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	kind          TEXT NOT NULL,
	states        INTEGER NOT NULL,
	transitions   INTEGER NOT NULL,
	model_json    TEXT NOT NULL,
	metrics_json  TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_models_created_at ON models(created_at);
`

// timeLayout has a fixed width so created_at sorts lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Kind tells which automaton type a record holds.
type Kind string

const (
	KindPDFA  Kind = "pdfa"
	KindPDTTA Kind = "pdtta"
)

// Record describes one stored model.
type Record struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        Kind            `json:"kind"`
	States      int             `json:"states"`
	Transitions int             `json:"transitions"`
	Metrics     json.RawMessage `json:"metrics,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Storage is a SQLite backed model store. It is safe for concurrent use.
type Storage struct {
	db *sql.DB

	maxModels       int
	exportDir       string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// New opens (or creates) the database at dbPath and runs migrations.
// A maxModels of zero or less disables rotation. If exportDir is empty,
// exports go to an OS-appropriate temp directory.
func New(dbPath string, maxModels int, exportDir string, filePermissions, dirPermissions os.FileMode) (*Storage, error) {
	if exportDir == "" {
		exportDir = filepath.Join(os.TempDir(), "pdtta", "exports")
	}
	if dir := filepath.Dir(dbPath); dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Storage{
		db:              db,
		maxModels:       maxModels,
		exportDir:       exportDir,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
	}, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// KindOf returns the record kind for a model.
func KindOf(m automaton.Model) (Kind, error) {
	switch m.(type) {
	case *automaton.PDTTA:
		return KindPDTTA, nil
	case *automaton.PDFA:
		return KindPDFA, nil
	default:
		return "", fmt.Errorf("unsupported model type %T", m)
	}
}

// Save stores a model under a fresh id. metrics is any JSON-encodable value
// describing the training run and may be nil.
func (s *Storage) Save(name string, m automaton.Model, metrics any) (Record, error) {
	kind, err := KindOf(m)
	if err != nil {
		return Record{}, err
	}
	modelJSON, err := json.Marshal(m)
	if err != nil {
		return Record{}, fmt.Errorf("marshal model: %w", err)
	}
	var metricsJSON []byte
	if metrics != nil {
		if metricsJSON, err = json.Marshal(metrics); err != nil {
			return Record{}, fmt.Errorf("marshal metrics: %w", err)
		}
	}

	rec := Record{
		ID:          uuid.New().String(),
		Name:        name,
		Kind:        kind,
		States:      len(m.States()),
		Transitions: m.NumTransitions(),
		Metrics:     metricsJSON,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO models (model_id, name, kind, states, transitions, model_json, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, string(rec.Kind), rec.States, rec.Transitions,
		string(modelJSON), nullableString(metricsJSON), rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert model: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}

	logger.Info("Stored %s model %s (%s): %d states, %d transitions", rec.Kind, rec.ID, rec.Name, rec.States, rec.Transitions)
	return rec, nil
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, modelJSON *string) (Record, error) {
	var (
		rec       Record
		kind      string
		metrics   sql.NullString
		createdAt string
		dest      = []any{&rec.ID, &rec.Name, &kind, &rec.States, &rec.Transitions, &metrics, &createdAt}
	)
	if modelJSON != nil {
		dest = append(dest, modelJSON)
	}
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	rec.Kind = Kind(kind)
	if metrics.Valid {
		rec.Metrics = json.RawMessage(metrics.String)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

const recordColumns = `model_id, name, kind, states, transitions, metrics_json, created_at`

// Get returns the record of a model without decoding it.
func (s *Storage) Get(id string) (Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM models WHERE model_id = ?`, id)
	rec, err := scanRecord(row, nil)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get model: %w", err)
	}
	return rec, nil
}

// Load returns a record together with its decoded automaton.
func (s *Storage) Load(id string) (Record, automaton.Model, error) {
	var modelJSON string
	row := s.db.QueryRow(`SELECT `+recordColumns+`, model_json FROM models WHERE model_id = ?`, id)
	rec, err := scanRecord(row, &modelJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, nil, fmt.Errorf("load model: %w", err)
	}

	var m automaton.Model
	switch rec.Kind {
	case KindPDTTA:
		var a automaton.PDTTA
		if err := json.Unmarshal([]byte(modelJSON), &a); err != nil {
			return Record{}, nil, fmt.Errorf("unmarshal model %s: %w", id, err)
		}
		m = &a
	case KindPDFA:
		var a automaton.PDFA
		if err := json.Unmarshal([]byte(modelJSON), &a); err != nil {
			return Record{}, nil, fmt.Errorf("unmarshal model %s: %w", id, err)
		}
		m = &a
	default:
		return Record{}, nil, fmt.Errorf("model %s has unknown kind %q", id, rec.Kind)
	}
	return rec, m, nil
}

// List returns all records, newest first.
func (s *Storage) List() ([]Record, error) {
	rows, err := s.db.Query(`SELECT ` + recordColumns + ` FROM models ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes a model.
func (s *Storage) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM models WHERE model_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// RotateModels removes the oldest models beyond maxModels and returns how
// many were removed.
func (s *Storage) RotateModels() (int, error) {
	if s.maxModels <= 0 {
		return 0, nil
	}
	res, err := s.db.Exec(
		`DELETE FROM models WHERE model_id NOT IN (
			SELECT model_id FROM models ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, s.maxModels)
	if err != nil {
		return 0, fmt.Errorf("rotate models: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Debug("Rotated %d old models", n)
	}
	return int(n), nil
}

// Export writes <id>.json, <id>.treba and <id>.dot into the export directory
// and returns the written paths.
func (s *Storage) Export(rec Record, m automaton.Model) ([]string, error) {
	if err := os.MkdirAll(s.exportDir, s.dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}

	writers := []struct {
		ext   string
		write func(io.Writer) error
	}{
		{".json", func(w io.Writer) error { _, err := w.Write(jsonData); return err }},
		{".treba", m.WriteTreba},
		{".dot", func(w io.Writer) error { return m.WriteGraphviz(w, true) }},
	}

	var paths []string
	for _, wr := range writers {
		var buf bytes.Buffer
		if err := wr.write(&buf); err != nil {
			return paths, fmt.Errorf("failed to encode %s: %w", wr.ext, err)
		}
		path := filepath.Join(s.exportDir, rec.ID+wr.ext)
		if err := s.writeAtomic(path, buf.Bytes()); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeAtomic writes to a temporary file first and renames it into place.
func (s *Storage) writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, s.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
