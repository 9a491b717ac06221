package agentloop

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// MaxRetries is the bounded attempt budget for one tool execution.
const MaxRetries = 3

// RetryPolicy configures the dispatcher's backoff between attempts. The
// computed delay is honored: the dispatcher really waits it out (subject to
// cancellation) rather than retrying immediately, so repeated failures back
// off under load.
type RetryPolicy struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
}

// DefaultRetryPolicy returns the default bounded-retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  MaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
	}
}

// Delay returns the wait before retry attempt n (0-indexed): InitialDelay
// doubling each attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ExecutionResult is the outcome of one dispatched tool call. Aborted is a
// distinct condition from ordinary failure: it means the cancel signal fired
// before the attempts were exhausted.
type ExecutionResult struct {
	Success  bool   `json:"success"`
	Aborted  bool   `json:"aborted,omitempty"`
	Output   string `json:"output"`
	Err      error  `json:"-"`
	Attempts int    `json:"attempts"`
}

// Dispatcher validates tool input and executes tools with bounded retries.
type Dispatcher struct {
	policy RetryPolicy
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger discards log output.
func NewDispatcher(policy RetryPolicy, logger *slog.Logger) *Dispatcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = MaxRetries
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{policy: policy, logger: logger}
}

// ValidateInput trims raw input and, when it is structurally data-like
// (begins a JSON composite literal), re-serializes it to canonical form.
// Malformed structured input is a soft failure — the second return is false
// and the caller produces an error observation instead of crashing.
func ValidateInput(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return trimmed, true
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return "", false
	}
	canonical, err := json.Marshal(value)
	if err != nil {
		return "", false
	}
	return string(canonical), true
}

// ExecuteWithRetries invokes tool up to the policy's attempt budget. Each
// attempt first checks the cancel signal: if it has already fired, the
// dispatcher aborts immediately with a distinct aborted outcome instead of
// completing the remaining retries. Failed attempts wait out the computed
// exponential delay before retrying; the wait itself observes cancellation.
func (d *Dispatcher) ExecuteWithRetries(ctx context.Context, tool Tool, input string) ExecutionResult {
	var lastErr error

	for attempt := 0; attempt < d.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ExecutionResult{
				Aborted:  true,
				Output:   "Aborted: " + ctx.Err().Error(),
				Err:      ctx.Err(),
				Attempts: attempt,
			}
		default:
		}

		output, err := tool.Invoke(ctx, input)
		if err == nil {
			return ExecutionResult{Success: true, Output: output, Attempts: attempt + 1}
		}
		lastErr = err
		d.logger.Warn("tool attempt failed",
			"tool", tool.Name(),
			"attempt", attempt+1,
			"error", err,
		)

		if attempt+1 < d.policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return ExecutionResult{
					Aborted:  true,
					Output:   "Aborted: " + ctx.Err().Error(),
					Err:      ctx.Err(),
					Attempts: attempt + 1,
				}
			case <-time.After(d.policy.Delay(attempt)):
			}
		}
	}

	return ExecutionResult{
		Success:  false,
		Output:   "Error: " + lastErr.Error(),
		Err:      lastErr,
		Attempts: d.policy.MaxAttempts,
	}
}

// HandleResult appends the observation produced by a dispatch to the
// conversation and returns the new state. It is a pure transformation: the
// caller keeps both the pre- and post-dispatch state for auditing.
func HandleResult(state ConversationState, result ExecutionResult) ConversationState {
	out := state.Append(NewMessage(RoleTool, result.Output))
	out.LastObservation = result.Output
	return out
}
