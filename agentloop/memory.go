package agentloop

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/reagentlabs/reagent/checkpoint"
)

// memoryNamespace is the checkpoint key prefix for conversation snapshots.
const memoryNamespace = "conversation"

// MemoryStore loads and saves checkpointed conversation state. Persistence
// is best-effort: storage errors are logged and swallowed so memory loss
// never corrupts control flow.
type MemoryStore struct {
	store  checkpoint.Store
	logger *slog.Logger
}

// NewMemoryStore creates a MemoryStore over the given checkpoint store. A
// nil logger discards log output.
func NewMemoryStore(store checkpoint.Store, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MemoryStore{store: store, logger: logger}
}

// namespaceFor returns the checkpoint key for a thread.
func namespaceFor(threadID string) string {
	return memoryNamespace + "/" + threadID
}

// Load returns the last checkpointed state for threadID, or a fresh empty
// state when none exists or the store fails. A load failure never blocks
// the loop.
func (m *MemoryStore) Load(ctx context.Context, threadID string) ConversationState {
	fresh := NewConversationState(threadID)
	if m.store == nil {
		return fresh
	}

	snapshot, _, ok, err := m.store.Get(ctx, namespaceFor(threadID))
	if err != nil {
		m.logger.Warn("checkpoint load failed, starting fresh",
			"thread", threadID,
			"error", NewPersistenceError(threadID, err),
		)
		return fresh
	}
	if !ok {
		return fresh
	}

	var state ConversationState
	if err := json.Unmarshal(snapshot, &state); err != nil {
		m.logger.Warn("checkpoint snapshot undecodable, starting fresh",
			"thread", threadID,
			"error", err,
		)
		return fresh
	}
	// Loaded state begins a new invocation.
	state.ThreadID = threadID
	state.Status = StatusContinue
	if state.ToolFeedback == nil {
		state.ToolFeedback = map[string]string{}
	}
	return state
}

// Save checkpoints state for threadID. Errors are logged and swallowed.
func (m *MemoryStore) Save(ctx context.Context, threadID string, state ConversationState) {
	if m.store == nil {
		return
	}

	snapshot, err := json.Marshal(state)
	if err != nil {
		m.logger.Warn("checkpoint encode failed", "thread", threadID, "error", err)
		return
	}
	meta := checkpoint.Metadata{
		ThreadID:      threadID,
		SchemaVersion: checkpoint.SchemaVersion,
		CreatedAt:     time.Now(),
	}
	if err := m.store.Put(ctx, namespaceFor(threadID), snapshot, meta); err != nil {
		m.logger.Warn("checkpoint save failed",
			"thread", threadID,
			"error", NewPersistenceError(threadID, err),
		)
	}
}

// Prune trims a loaded message history before it is merged into a new
// invocation: first drop messages older than maxAge relative to now, then
// keep only the last maxEntries. It never touches the live in-memory log of
// a running invocation. Zero maxAge or maxEntries disables that bound.
func Prune(messages []Message, maxAge time.Duration, maxEntries int, now time.Time) []Message {
	kept := messages
	if maxAge > 0 {
		cutoff := now.Add(-maxAge)
		idx := 0
		for idx < len(kept) && kept[idx].Timestamp.Before(cutoff) {
			idx++
		}
		kept = kept[idx:]
	}
	if maxEntries > 0 && len(kept) > maxEntries {
		kept = kept[len(kept)-maxEntries:]
	}
	out := make([]Message, len(kept))
	copy(out, kept)
	return out
}
