package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS node_state (
	checkpoint_id TEXT    NOT NULL,
	node_id       TEXT    NOT NULL,
	seq           INTEGER NOT NULL,
	saved_at      INTEGER NOT NULL,
	envelope      BLOB    NOT NULL,
	PRIMARY KEY (checkpoint_id, node_id)
);
CREATE INDEX IF NOT EXISTS idx_node_state_seq ON node_state(checkpoint_id, seq);
`

// SQLiteStore persists checkpoints to a SQLite database.
// Use ":memory:" as the path for a throwaway database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(checkpointID, nodeID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO node_state (checkpoint_id, node_id, seq, saved_at, envelope)
		VALUES (?, ?,
			COALESCE((SELECT MAX(seq) FROM node_state WHERE checkpoint_id = ?), 0) + 1,
			?, ?)
		ON CONFLICT(checkpoint_id, node_id) DO UPDATE SET
			seq = (SELECT MAX(seq) FROM node_state WHERE checkpoint_id = excluded.checkpoint_id) + 1,
			saved_at = excluded.saved_at,
			envelope = excluded.envelope
	`, checkpointID, nodeID, checkpointID, time.Now().UTC().UnixNano(), data)
	if err != nil {
		return fmt.Errorf("save node state: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(checkpointID, nodeID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(
		`SELECT envelope FROM node_state WHERE checkpoint_id = ? AND node_id = ?`,
		checkpointID, nodeID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load node state: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *SQLiteStore) List(checkpointID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT node_id, seq, saved_at, LENGTH(envelope)
		FROM node_state
		WHERE checkpoint_id = ?
		ORDER BY seq
	`, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("list node state: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			info    Info
			savedAt int64
		)
		if err := rows.Scan(&info.NodeID, &info.Sequence, &savedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan node state: %w", err)
		}
		info.CheckpointID = checkpointID
		info.Timestamp = time.Unix(0, savedAt).UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node state: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(checkpointID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(
		`DELETE FROM node_state WHERE checkpoint_id = ? AND node_id = ?`,
		checkpointID, nodeID,
	); err != nil {
		return fmt.Errorf("delete node state: %w", err)
	}
	return nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM node_state WHERE checkpoint_id = ?`, checkpointID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
