// Package sqlitekv is an optional, append-only persistence adapter for
// broadcast messages, grounded on the teacher's store/db/sqlite.DB —
// trimmed to its pragma/open/close pattern and rebased onto the pure-Go
// modernc.org/sqlite driver (the driver the teacher's go.mod actually
// lists as a direct dependency).
package sqlitekv

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// Store is a minimal history sink: it appends every broadcast message to
// a single table, in insertion order, for later inspection or replay.
// Absence of a Store is a supported configuration elsewhere in the
// orchestration core — SaveMessage failures here are the adapter's own
// I/O boundary, not a reason for the orchestrator to fail a generation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed Store at dsn,
// applying the same connection-pool and WAL settings the teacher uses
// for single-writer local SQLite deployments.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to set pragma: %s", pragma)
		}
	}

	// modernc.org/sqlite has no CGO connection-sharing hazards, but
	// swarmchat's writes are already serialized through the broker's
	// single processing goroutine, so a single connection avoids
	// SQLITE_BUSY retries entirely rather than just bounding them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	sender TEXT NOT NULL,
	sender_type TEXT NOT NULL,
	content TEXT NOT NULL,
	ai_id TEXT NOT NULL DEFAULT '',
	alias TEXT NOT NULL DEFAULT '',
	timestamp_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, timestamp_ms);
`
	_, err := s.db.Exec(schema)
	return errors.Wrap(err, "failed to migrate sqlitekv schema")
}

// SaveMessage appends m to the history table. Satisfies
// core/orchestrator.PersistenceStore.
func (s *Store) SaveMessage(roomID string, m chatmodel.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages (id, room_id, sender, sender_type, content, ai_id, alias, timestamp_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, roomID, m.Sender, string(m.SenderType), m.Content, m.AIID, m.Alias, m.Timestamp,
	)
	return errors.Wrap(err, "sqlitekv: failed to save message")
}

// Tail returns the most recent limit messages for roomID, oldest first.
// Not part of the PersistenceStore contract the orchestrator depends on;
// exposed for the admin surface and offline inspection.
func (s *Store) Tail(roomID string, limit int) ([]chatmodel.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, sender_type, content, ai_id, alias, timestamp_ms
		 FROM messages WHERE room_id = ? ORDER BY timestamp_ms DESC LIMIT ?`,
		roomID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "sqlitekv: failed to query tail")
	}
	defer rows.Close()

	var out []chatmodel.Message
	for rows.Next() {
		var m chatmodel.Message
		var senderType string
		if err := rows.Scan(&m.ID, &m.Sender, &senderType, &m.Content, &m.AIID, &m.Alias, &m.Timestamp); err != nil {
			return nil, errors.Wrap(err, "sqlitekv: failed to scan row")
		}
		m.RoomID = roomID
		m.SenderType = chatmodel.SenderType(senderType)
		out = append(out, m)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
