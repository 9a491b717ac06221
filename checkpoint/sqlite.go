package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store. Writes are serialized through a
// single mutex; SQLite is a single-writer database and the loop writes only
// at invocation boundaries, so contention is not a concern.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSQLiteStore opens (or creates) the checkpoint database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// migrate creates the checkpoint schema.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		namespace TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		snapshot BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put writes a snapshot, superseding any previous row for the namespace.
func (s *SQLiteStore) Put(ctx context.Context, namespace string, snapshot []byte, meta Metadata) error {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	if meta.SchemaVersion == 0 {
		meta.SchemaVersion = SchemaVersion
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (namespace, id, thread_id, schema_version, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			id = excluded.id,
			thread_id = excluded.thread_id,
			schema_version = excluded.schema_version,
			snapshot = excluded.snapshot,
			created_at = excluded.created_at
	`, namespace, uuid.New().String(), meta.ThreadID, meta.SchemaVersion, snapshot, meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("put checkpoint %s: %w", namespace, err)
	}
	return nil
}

// Get returns the latest snapshot for namespace, if any.
func (s *SQLiteStore) Get(ctx context.Context, namespace string) ([]byte, Metadata, bool, error) {
	var (
		snapshot []byte
		meta     Metadata
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, schema_version, snapshot, created_at
		FROM checkpoints WHERE namespace = ?
	`, namespace)
	err := row.Scan(&meta.ThreadID, &meta.SchemaVersion, &snapshot, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Metadata{}, false, nil
	}
	if err != nil {
		return nil, Metadata{}, false, fmt.Errorf("get checkpoint %s: %w", namespace, err)
	}
	return snapshot, meta, true, nil
}
