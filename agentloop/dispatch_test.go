package agentloop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fastRetryPolicy keeps test backoff waits negligible.
func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: MaxRetries, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestValidateInputPlainText(t *testing.T) {
	got, ok := ValidateInput("  plain text  ")
	if !ok || got != "plain text" {
		t.Errorf("expected trimmed plain text, got %q ok=%v", got, ok)
	}
}

func TestValidateInputCanonicalizesJSON(t *testing.T) {
	got, ok := ValidateInput("{\"b\": 2,   \"a\": 1}")
	if !ok {
		t.Fatal("expected valid")
	}
	if got != `{"a":1,"b":2}` {
		t.Errorf("expected canonical form, got %q", got)
	}
}

func TestValidateInputMalformedJSONIsSoftFailure(t *testing.T) {
	got, ok := ValidateInput(`{"broken": `)
	if ok {
		t.Errorf("expected soft failure, got %q", got)
	}
}

func TestExecuteRetriesThenReportsError(t *testing.T) {
	calls := 0
	failing := ToolFunc{
		ToolName: "calculator",
		Fn: func(ctx context.Context, input string) (string, error) {
			calls++
			return "", errors.New("Division by zero")
		},
	}

	d := NewDispatcher(fastRetryPolicy(), nil)
	result := d.ExecuteWithRetries(context.Background(), failing, `{"op":"divide","a":4,"b":0}`)

	if result.Success {
		t.Error("expected failure")
	}
	if calls != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, calls)
	}
	if result.Attempts != MaxRetries {
		t.Errorf("expected attempts=%d, got %d", MaxRetries, result.Attempts)
	}
	if result.Output != "Error: Division by zero" {
		t.Errorf("expected %q, got %q", "Error: Division by zero", result.Output)
	}
}

func TestExecuteSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	flaky := ToolFunc{
		ToolName: "flaky",
		Fn: func(ctx context.Context, input string) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		},
	}

	d := NewDispatcher(fastRetryPolicy(), nil)
	result := d.ExecuteWithRetries(context.Background(), flaky, "x")

	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if result.Output != "ok" || result.Attempts != 3 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestExecuteAbortIsDistinctFromFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	never := ToolFunc{
		ToolName: "never",
		Fn: func(ctx context.Context, input string) (string, error) {
			t.Error("tool must not run after cancellation")
			return "", nil
		},
	}

	d := NewDispatcher(fastRetryPolicy(), nil)
	result := d.ExecuteWithRetries(ctx, never, "x")

	if !result.Aborted {
		t.Error("expected aborted outcome")
	}
	if result.Success {
		t.Error("aborted must not be success")
	}
	if !strings.HasPrefix(result.Output, "Aborted: ") {
		t.Errorf("expected aborted output, got %q", result.Output)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.Err)
	}
}

func TestExecuteAbortDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	failing := ToolFunc{
		ToolName: "failing",
		Fn: func(ctx context.Context, input string) (string, error) {
			calls++
			cancel()
			return "", errors.New("boom")
		},
	}

	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Minute, MaxDelay: time.Minute}
	d := NewDispatcher(policy, nil)
	result := d.ExecuteWithRetries(ctx, failing, "x")

	if !result.Aborted {
		t.Error("expected abort during backoff wait")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before abort, got %d", calls)
	}
}

func TestRetryPolicyDelayDoublesAndCaps(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second}
	expected := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		2 * time.Second,
	}
	for i, want := range expected {
		if got := policy.Delay(i); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestHandleResultIsPure(t *testing.T) {
	before := NewConversationState("t1").Append(NewMessage(RoleUser, "hi"))
	result := ExecutionResult{Success: true, Output: "observation text", Attempts: 1}

	after := HandleResult(before, result)

	if len(before.Messages) != 1 {
		t.Errorf("pre-dispatch state mutated: %d messages", len(before.Messages))
	}
	if before.LastObservation != "" {
		t.Errorf("pre-dispatch state gained observation %q", before.LastObservation)
	}
	if len(after.Messages) != 2 {
		t.Fatalf("expected appended observation, got %d messages", len(after.Messages))
	}
	last := after.Messages[1]
	if last.Role != RoleTool || last.Content != "observation text" {
		t.Errorf("unexpected observation message: %+v", last)
	}
	if after.LastObservation != "observation text" {
		t.Errorf("expected LastObservation set, got %q", after.LastObservation)
	}
}
