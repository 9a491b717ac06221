// Package tools provides builtin tool collaborators for the agent loop.
// Each tool takes serialized JSON input and returns output text; the loop
// treats them polymorphically through the agentloop.Tool contract.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/reagentlabs/reagent/agentloop"
)

// RegisterBuiltins registers the calculator, key-value store, and clock
// tools on a registry.
func RegisterBuiltins(reg *agentloop.ToolRegistry) {
	reg.Register(Calculator{})
	reg.Register(NewKVStore())
	reg.Register(Clock{})
}

// Calculator performs basic arithmetic. Input is a JSON object
// {"op": "add|subtract|multiply|divide", "a": number, "b": number}.
type Calculator struct{}

// Name returns "calculator".
func (Calculator) Name() string { return "calculator" }

// Description returns the tool description.
func (Calculator) Description() string {
	return `Basic arithmetic. Input: {"op": "add|subtract|multiply|divide", "a": <number>, "b": <number>}.`
}

type calculatorInput struct {
	Op string  `json:"op"`
	A  float64 `json:"a"`
	B  float64 `json:"b"`
}

// Invoke evaluates the operation.
func (Calculator) Invoke(_ context.Context, input string) (string, error) {
	var in calculatorInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid calculator input: %w", err)
	}

	var result float64
	switch in.Op {
	case "add":
		result = in.A + in.B
	case "subtract":
		result = in.A - in.B
	case "multiply":
		result = in.A * in.B
	case "divide":
		if in.B == 0 {
			return "", errors.New("Division by zero")
		}
		result = in.A / in.B
	default:
		return "", fmt.Errorf("unknown operation %q", in.Op)
	}
	return strconv.FormatFloat(result, 'f', -1, 64), nil
}

// KVStore is an in-memory key-value store shared by all threads using the
// registry. Input is {"action": "get|set|delete|list", "key": ..., "value": ...}.
type KVStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewKVStore creates an empty KVStore.
func NewKVStore() *KVStore {
	return &KVStore{values: make(map[string]string)}
}

// Name returns "kv".
func (*KVStore) Name() string { return "kv" }

// Description returns the tool description.
func (*KVStore) Description() string {
	return `In-memory key-value store. Input: {"action": "get|set|delete|list", "key": <string>, "value": <string>}.`
}

type kvInput struct {
	Action string `json:"action"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Invoke executes one store operation.
func (s *KVStore) Invoke(_ context.Context, input string) (string, error) {
	var in kvInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid kv input: %w", err)
	}

	switch in.Action {
	case "get":
		s.mu.RLock()
		defer s.mu.RUnlock()
		value, ok := s.values[in.Key]
		if !ok {
			return "", fmt.Errorf("key not found: %s", in.Key)
		}
		return value, nil
	case "set":
		if in.Key == "" {
			return "", errors.New("set requires a key")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.values[in.Key] = in.Value
		return "ok", nil
	case "delete":
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.values, in.Key)
		return "ok", nil
	case "list":
		s.mu.RLock()
		defer s.mu.RUnlock()
		keys := make([]string, 0, len(s.values))
		for k := range s.values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out, _ := json.Marshal(keys)
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown action %q", in.Action)
	}
}

// Clock reports the current time. Input is ignored.
type Clock struct{}

// Name returns "clock".
func (Clock) Name() string { return "clock" }

// Description returns the tool description.
func (Clock) Description() string {
	return "Current date and time in RFC 3339 format. Input is ignored."
}

// Invoke returns the current time.
func (Clock) Invoke(_ context.Context, _ string) (string, error) {
	return time.Now().Format(time.RFC3339), nil
}
