// Package checkpoint provides persisted conversation snapshots keyed by
// thread. A checkpoint is superseded, never merged, by the next save for
// the same key.
package checkpoint

import (
	"context"
	"time"
)

// SchemaVersion is stamped into every checkpoint so future readers can
// migrate old snapshots.
const SchemaVersion = 1

// Metadata describes one stored snapshot.
type Metadata struct {
	ThreadID      string    `json:"thread_id"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is the collaborator contract consumed by the agent loop's memory
// layer. Implementations must serialize writes per namespace key and be
// safe for concurrent use across threads.
type Store interface {
	// Put writes a new snapshot under namespace, replacing any previous
	// snapshot for the same key.
	Put(ctx context.Context, namespace string, snapshot []byte, meta Metadata) error

	// Get returns the latest snapshot for namespace. The bool is false
	// when no snapshot exists; that is not an error.
	Get(ctx context.Context, namespace string) ([]byte, Metadata, bool, error)
}
