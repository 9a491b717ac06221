package llmclient

import (
	"context"

	"github.com/reagentlabs/reagent/agentloop"
)

// LoopClient adapts a Client to the agent loop's inference collaborator. It
// renders the loop's message log into a Request, retries retryable provider
// failures, and returns the raw response text for envelope parsing.
type LoopClient struct {
	client *Client
	retry  RetryPolicy
}

// NewLoopClient creates a LoopClient over client with the default retry
// policy.
func NewLoopClient(client *Client) *LoopClient {
	return &LoopClient{client: client, retry: DefaultRetryPolicy()}
}

// SetRetryPolicy replaces the retry policy for subsequent calls.
func (l *LoopClient) SetRetryPolicy(policy RetryPolicy) {
	l.retry = policy
}

// Infer implements agentloop.ModelClient.
func (l *LoopClient) Infer(ctx context.Context, messages []agentloop.Message, opts agentloop.InferOptions) (string, error) {
	req := Request{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages:    make([]Message, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, Message{Role: Role(msg.Role), Content: msg.Content})
	}

	resp, err := Retry(ctx, l.retry, func(ctx context.Context) (*Response, error) {
		return l.client.Complete(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
