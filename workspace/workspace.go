// Package workspace applies file-mutating actions inside a confined root
// directory. It implements the agent loop's FileApplier collaborator.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/reagentlabs/reagent/agentloop"
)

// Workspace confines all file operations to a root directory. Paths in
// actions are relative to the root; anything escaping it is rejected.
type Workspace struct {
	root string
}

// New creates a Workspace rooted at root, creating the directory if needed.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// resolve joins rel onto the root and rejects escapes.
func (w *Workspace) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	joined := filepath.Join(w.root, rel)
	if joined != w.root && !strings.HasPrefix(joined, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", rel)
	}
	return joined, nil
}

// Apply executes one file-mutating action and returns a summary of what
// changed.
func (w *Workspace) Apply(action agentloop.Action) (string, error) {
	switch action.Kind {
	case agentloop.ActionEdit:
		return w.applyEdit(action.Edit)
	case agentloop.ActionCompose:
		return w.applyCompose(action.Compose)
	case agentloop.ActionSync:
		return w.applySync(action.Sync)
	default:
		return "", fmt.Errorf("not a file-mutating action: %s", action.Kind)
	}
}

// applyEdit applies the ordered change list to an existing file.
func (w *Workspace) applyEdit(edit *agentloop.EditAction) (string, error) {
	if edit == nil {
		return "", fmt.Errorf("edit action has no payload")
	}
	path, err := w.resolve(edit.File)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", edit.File, err)
	}

	before := string(raw)
	after := before
	for i, change := range edit.Changes {
		after, err = applyChange(after, change)
		if err != nil {
			return "", fmt.Errorf("change %d in %s: %w", i+1, edit.File, err)
		}
	}

	if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", edit.File, err)
	}
	added, removed := diffCounts(before, after)
	return fmt.Sprintf("edited %s (+%d/-%d lines)", edit.File, added, removed), nil
}

// applyChange applies one anchored change. A missing anchor is an error so
// the loop can surface it as an observation instead of silently skipping.
func applyChange(content string, change agentloop.EditChange) (string, error) {
	if change.Location == "" {
		return "", fmt.Errorf("change has no anchor")
	}
	idx := strings.Index(content, change.Location)
	if idx < 0 {
		return "", fmt.Errorf("anchor not found: %q", change.Location)
	}

	switch change.Op {
	case agentloop.EditReplace:
		return content[:idx] + change.Content + content[idx+len(change.Location):], nil
	case agentloop.EditInsertBefore:
		return content[:idx] + change.Content + content[idx:], nil
	case agentloop.EditInsertAfter:
		end := idx + len(change.Location)
		return content[:end] + change.Content + content[end:], nil
	case agentloop.EditDelete:
		return content[:idx] + content[idx+len(change.Location):], nil
	default:
		return "", fmt.Errorf("unknown edit op %q", change.Op)
	}
}

// applyCompose writes full content to a new or existing file.
func (w *Workspace) applyCompose(compose *agentloop.ComposeAction) (string, error) {
	if compose == nil {
		return "", fmt.Errorf("compose action has no payload")
	}
	path, err := w.resolve(compose.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs for %s: %w", compose.Path, err)
	}
	if err := os.WriteFile(path, []byte(compose.Content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", compose.Path, err)
	}
	return fmt.Sprintf("composed %s (%d bytes)", compose.Path, len(compose.Content)), nil
}

// applySync reconciles a file with the given content and reports the drift
// that was corrected.
func (w *Workspace) applySync(sync *agentloop.ComposeAction) (string, error) {
	if sync == nil {
		return "", fmt.Errorf("sync action has no payload")
	}
	path, err := w.resolve(sync.Path)
	if err != nil {
		return "", err
	}

	before := ""
	if raw, err := os.ReadFile(path); err == nil {
		before = string(raw)
	}
	if before == sync.Content {
		return fmt.Sprintf("synced %s (no drift)", sync.Path), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs for %s: %w", sync.Path, err)
	}
	if err := os.WriteFile(path, []byte(sync.Content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", sync.Path, err)
	}
	added, removed := diffCounts(before, sync.Content)
	return fmt.Sprintf("synced %s (+%d/-%d lines)", sync.Path, added, removed), nil
}

// diffCounts returns added/removed line counts between two versions.
func diffCounts(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, diff := range diffs {
		lines := strings.Count(diff.Text, "\n")
		if lines == 0 && diff.Text != "" {
			lines = 1
		}
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			added += lines
		case diffmatchpatch.DiffDelete:
			removed += lines
		}
	}
	return added, removed
}
