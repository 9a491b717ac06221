package llmclient

import (
	"context"
	"testing"

	"github.com/reagentlabs/reagent/agentloop"
)

func TestLoopClientInferMapsMessages(t *testing.T) {
	var captured Request
	adapter := &mockAdapter{name: "test", response: &Response{Text: `{"type":"final","content":"ok"}`}}
	capture := func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		captured = req
		return next(ctx, req)
	}
	client := NewClient(WithProvider("test", adapter), WithMiddleware(capture))

	loop := NewLoopClient(client)
	loop.SetRetryPolicy(RetryPolicy{MaxRetries: 0})

	text, err := loop.Infer(context.Background(), []agentloop.Message{
		agentloop.NewMessage(agentloop.RoleSystem, "preamble"),
		agentloop.NewMessage(agentloop.RoleUser, "question"),
	}, agentloop.InferOptions{Model: "test-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"type":"final","content":"ok"}` {
		t.Errorf("expected raw response text, got %q", text)
	}
	if captured.Model != "test-model" {
		t.Errorf("expected model passed through, got %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != RoleSystem {
		t.Errorf("unexpected mapped messages %+v", captured.Messages)
	}
}

func TestLoopClientRetriesRetryableFailures(t *testing.T) {
	calls := 0
	adapter := &flakyAdapter{failures: 1, text: "ok", calls: &calls}
	client := NewClient(WithProvider("flaky", adapter))

	loop := NewLoopClient(client)
	loop.SetRetryPolicy(RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 0.001})

	text, err := loop.Infer(context.Background(), []agentloop.Message{
		agentloop.NewMessage(agentloop.RoleUser, "hi"),
	}, agentloop.InferOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" || calls != 2 {
		t.Errorf("expected success on second call, got %q after %d calls", text, calls)
	}
}

// flakyAdapter fails with a retryable error a fixed number of times.
type flakyAdapter struct {
	failures int
	text     string
	calls    *int
}

func (f *flakyAdapter) Name() string { return "flaky" }

func (f *flakyAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	*f.calls++
	if *f.calls <= f.failures {
		return nil, &ServerError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "overloaded"}, Retryable: true,
		}}
	}
	return &Response{Text: f.text, Provider: "flaky"}, nil
}
