// Package history persists a durable audit log of every plugin
// execution to a local SQLite database, queryable by plugin name. It
// is a side-effecting observer of Manager.execute/execute_many and is
// never consulted for control flow (§12 of SPEC_FULL.md).
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Record is one persisted execution outcome.
type Record struct {
	ID           int64     `db:"id" json:"id"`
	Plugin       string    `db:"plugin" json:"plugin"`
	InputBytes   int       `db:"input_bytes" json:"input_bytes"`
	OutputBytes  int       `db:"output_bytes" json:"output_bytes"`
	DurationMS   int64     `db:"duration_ms" json:"duration_millis"`
	Attempts     int       `db:"attempts" json:"attempts"`
	Success      bool      `db:"success" json:"success"`
	ErrorKind    string    `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	At           time.Time `db:"at" json:"at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS execution_history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	plugin        TEXT NOT NULL,
	input_bytes   INTEGER NOT NULL,
	output_bytes  INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	attempts      INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	error_kind    TEXT,
	error_message TEXT,
	at            DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_history_plugin ON execution_history(plugin);
`

// Store wraps a sqlite3-backed execution history log.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one execution outcome.
func (s *Store) Append(r Record) error {
	_, err := s.db.NamedExec(`
		INSERT INTO execution_history
			(plugin, input_bytes, output_bytes, duration_ms, attempts, success, error_kind, error_message, at)
		VALUES
			(:plugin, :input_bytes, :output_bytes, :duration_ms, :attempts, :success, :error_kind, :error_message, :at)
	`, r)
	if err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, most recent first, optionally
// filtered to a single plugin name (empty string means all plugins).
func (s *Store) Recent(pluginName string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		records []Record
		err     error
	)
	if pluginName == "" {
		err = s.db.Select(&records,
			`SELECT * FROM execution_history ORDER BY at DESC, id DESC LIMIT ?`, limit)
	} else {
		err = s.db.Select(&records,
			`SELECT * FROM execution_history WHERE plugin = ? ORDER BY at DESC, id DESC LIMIT ?`,
			pluginName, limit)
	}
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query history: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
