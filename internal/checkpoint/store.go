// Package checkpoint persists AgentState snapshots so interrupted runs
// can resume. One snapshot is written after each finalized cycle; resume
// restores the newest snapshot for a run and continues with the next
// cycle. Mid-cycle state is intentionally never checkpointed — stopping
// inside a tool-use loop risks an inconsistent message history.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/contreact/internal/state"
)

// Store manages checkpoint persistence.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if necessary) the checkpoint database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a checkpoint store over an existing connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id           TEXT PRIMARY KEY,
		run_id       TEXT NOT NULL,
		cycle_number INTEGER NOT NULL,
		state        TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, cycle_number DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records a snapshot of the given state. The snapshot's cycle number
// is the cycle that just finalized.
func (s *Store) Save(st *state.AgentState) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate checkpoint id: %w", err)
	}

	encoded, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO checkpoints (id, run_id, cycle_number, state, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id.String(), st.RunID, st.CycleNumber, string(encoded),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for a run, or nil when the run
// has no checkpoints.
func (s *Store) Latest(runID string) (*state.AgentState, error) {
	var encoded string
	err := s.db.QueryRow(
		`SELECT state FROM checkpoints
		 WHERE run_id = ?
		 ORDER BY cycle_number DESC, created_at DESC
		 LIMIT 1`,
		runID,
	).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var st state.AgentState
	if err := json.Unmarshal([]byte(encoded), &st); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &st, nil
}
