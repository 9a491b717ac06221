package agentloop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// AcceptToken is the literal input that confirms a tool execution. The
// match is case-insensitive; anything else is a rejection.
const AcceptToken = "yes"

// FeedbackSentinel is the reserved input that discards feedback for a tool
// instead of storing it. It is treated as "report issue", not free text.
const FeedbackSentinel = "report issue"

// ErrInputTimeout reports that no human input arrived before the deadline.
var ErrInputTimeout = errors.New("human input timed out")

// HumanInput is the collaborator contract for blocking human reads. ReadLine
// must honor both the timeout and ctx cancellation, so every interaction
// wait terminates.
type HumanInput interface {
	ReadLine(ctx context.Context, timeout time.Duration) (string, error)
}

// ReaderInput is a HumanInput backed by a line-oriented reader, typically
// stdin. Reads happen on a separate goroutine so the wait can be abandoned
// on timeout or cancellation.
type ReaderInput struct {
	scanner *bufio.Scanner
	lines   chan readResult
	started bool
}

type readResult struct {
	line string
	err  error
}

// NewReaderInput creates a ReaderInput over r.
func NewReaderInput(r io.Reader) *ReaderInput {
	return &ReaderInput{
		scanner: bufio.NewScanner(r),
		lines:   make(chan readResult, 1),
	}
}

// ReadLine returns the next line, ErrInputTimeout after timeout, or the
// context error on cancellation. An abandoned read stays buffered and is
// consumed by the next call.
func (r *ReaderInput) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if !r.started {
		r.started = true
		go func() {
			for r.scanner.Scan() {
				r.lines <- readResult{line: r.scanner.Text()}
			}
			err := r.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			r.lines <- readResult{err: err}
		}()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-r.lines:
		return res.line, res.err
	case <-timer.C:
		return "", ErrInputTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InteractionPolicy configures the Coordinator's suspension points.
type InteractionPolicy struct {
	// Timeout bounds each human wait. Zero means DefaultInputTimeout.
	Timeout time.Duration `json:"timeout"`
	// SentinelEndsRun ends the whole conversation when the feedback
	// sentinel arrives, instead of only discarding that tool's feedback
	// entry.
	SentinelEndsRun bool `json:"sentinel_ends_run"`
}

// DefaultInputTimeout bounds human waits when no timeout is configured.
const DefaultInputTimeout = 60 * time.Second

// Coordinator owns the optional human suspension points. Both waits are
// cancellable and always terminate, by timeout or explicit input.
type Coordinator struct {
	input  HumanInput
	policy InteractionPolicy
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator reading from input.
func NewCoordinator(input HumanInput, policy InteractionPolicy, logger *slog.Logger) *Coordinator {
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultInputTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{input: input, policy: policy, logger: logger}
}

// ConfirmationOutcome is the result of a confirmation wait.
type ConfirmationOutcome struct {
	State     ConversationState
	Confirmed bool
	// TimedOut distinguishes "no answer arrived" from "user said no".
	TimedOut bool
}

// RequestConfirmation appends a confirmation-request message and blocks for
// human input. The tool runs only when the input case-insensitively equals
// AcceptToken; any other input, a timeout, or an I/O error is a rejection
// (fail-closed default).
func (c *Coordinator) RequestConfirmation(ctx context.Context, state ConversationState, toolName, serializedArgs string) ConfirmationOutcome {
	prompt := fmt.Sprintf("Confirm execution of tool %q with input %s? Type %q to proceed.",
		toolName, serializedArgs, AcceptToken)
	next := state.Append(NewMessage(RoleSystem, prompt))

	line, err := c.input.ReadLine(ctx, c.policy.Timeout)
	if err != nil {
		c.logger.Warn("confirmation wait ended without input", "tool", toolName, "error", err)
		return ConfirmationOutcome{State: next, Confirmed: false, TimedOut: true}
	}

	confirmed := strings.EqualFold(strings.TrimSpace(line), AcceptToken)
	return ConfirmationOutcome{State: next, Confirmed: confirmed}
}

// FeedbackOutcome is the result of a feedback wait.
type FeedbackOutcome struct {
	State ConversationState
	// Feedback is the stored text; empty when none was stored.
	Feedback string
	// Stored reports whether Feedback should be merged into the state.
	Stored bool
	// EndRun is set when the sentinel arrived and policy says it ends
	// the conversation.
	EndRun bool
}

// RequestFeedback appends a result summary plus a feedback prompt, then
// blocks for human input. The reserved FeedbackSentinel discards feedback
// for the tool; whether it also ends the run is policy-controlled. Timeouts
// and I/O errors simply store nothing.
func (c *Coordinator) RequestFeedback(ctx context.Context, state ConversationState, toolName string, result ExecutionResult, safety SafetyResult) FeedbackOutcome {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool %q finished (success=%v).", toolName, result.Success)
	if len(safety.Warnings) > 0 {
		fmt.Fprintf(&sb, " Safety warnings: %s.", joinReasons(safety.Warnings))
	}
	fmt.Fprintf(&sb, " Enter feedback for this tool, or %q to discard.", FeedbackSentinel)
	next := state.Append(NewMessage(RoleSystem, sb.String()))

	line, err := c.input.ReadLine(ctx, c.policy.Timeout)
	if err != nil {
		c.logger.Warn("feedback wait ended without input", "tool", toolName, "error", err)
		return FeedbackOutcome{State: next}
	}

	text := strings.TrimSpace(line)
	if strings.EqualFold(text, FeedbackSentinel) {
		return FeedbackOutcome{State: next, EndRun: c.policy.SentinelEndsRun}
	}
	if text == "" {
		return FeedbackOutcome{State: next}
	}
	return FeedbackOutcome{State: next, Feedback: text, Stored: true}
}
