package agentloop

import (
	"fmt"
	"strings"
)

// CoreError is the base error type for all loop errors.
type CoreError struct {
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// ParseError reports malformed model output. It is never retried; the
// Controller converts it into a terminal Error action.
type ParseError struct {
	CoreError
	Reason string
}

// NewParseError creates a ParseError with the given reason.
func NewParseError(reason string) *ParseError {
	return &ParseError{CoreError: CoreError{Message: "parse error: " + reason}, Reason: reason}
}

// SafetyViolationError reports a failed safety gate check. Patterns holds
// every matched dangerous pattern, not just the first.
type SafetyViolationError struct {
	CoreError
	Tool     string
	Patterns []string
}

func newSafetyViolationError(tool, reason string, patterns []string) *SafetyViolationError {
	return &SafetyViolationError{
		CoreError: CoreError{Message: fmt.Sprintf("safety check failed for %s: %s", tool, reason)},
		Tool:      tool,
		Patterns:  patterns,
	}
}

// ToolNotFoundError reports a tool name absent from the registry. Always
// terminal, never silently skipped.
type ToolNotFoundError struct {
	CoreError
	Tool string
}

func newToolNotFoundError(tool string) *ToolNotFoundError {
	return &ToolNotFoundError{
		CoreError: CoreError{Message: fmt.Sprintf("unknown tool: %s", tool)},
		Tool:      tool,
	}
}

// ToolExecutionError reports a tool that failed after exhausting its retry
// budget.
type ToolExecutionError struct {
	CoreError
	Tool     string
	Attempts int
}

func newToolExecutionError(tool string, attempts int, cause error) *ToolExecutionError {
	return &ToolExecutionError{
		CoreError: CoreError{
			Message: fmt.Sprintf("tool %s failed after %d attempts", tool, attempts),
			Cause:   cause,
		},
		Tool:     tool,
		Attempts: attempts,
	}
}

// UserRejectedError reports that a human explicitly declined a confirmation
// request.
type UserRejectedError struct {
	CoreError
	Tool string
}

func newUserRejectedError(tool string) *UserRejectedError {
	return &UserRejectedError{
		CoreError: CoreError{Message: "Tool execution rejected by user"},
		Tool:      tool,
	}
}

// UserInputTimeoutError reports that no human answer arrived before the
// configured deadline, or the wait was cancelled. It is tagged distinctly
// from UserRejectedError so callers can tell "user said no" from "no answer
// arrived".
type UserInputTimeoutError struct {
	CoreError
	Tool string
}

func newUserInputTimeoutError(tool string, cause error) *UserInputTimeoutError {
	return &UserInputTimeoutError{
		CoreError: CoreError{Message: "timed out waiting for user input", Cause: cause},
		Tool:      tool,
	}
}

// PersistenceError reports a checkpoint load or save failure. Persistence is
// best-effort: this error is logged and never aborts the loop.
type PersistenceError struct {
	CoreError
	ThreadID string
}

// NewPersistenceError wraps a storage failure for threadID.
func NewPersistenceError(threadID string, cause error) *PersistenceError {
	return &PersistenceError{
		CoreError: CoreError{Message: "checkpoint storage failure for thread " + threadID, Cause: cause},
		ThreadID:  threadID,
	}
}

// joinReasons concatenates failure reasons for fail-closed composition.
func joinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}
