package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of loop event.
type EventKind string

const (
	EventRunStart      EventKind = "run_start"
	EventRunEnd        EventKind = "run_end"
	EventModelCall     EventKind = "model_call"
	EventActionParsed  EventKind = "action_parsed"
	EventSafetyBlocked EventKind = "safety_blocked"
	EventConfirmation  EventKind = "confirmation"
	EventToolStart     EventKind = "tool_start"
	EventToolEnd       EventKind = "tool_end"
	EventFeedback      EventKind = "feedback"
	EventLoopDetected  EventKind = "loop_detected"
	EventIterationCap  EventKind = "iteration_cap"
	EventError         EventKind = "error"
)

// Event is a typed event emitted during one conversation invocation.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	ThreadID  string         `json:"thread_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers typed events for a single conversation. It is
// created per invocation and closed with it; there is no process-wide bus.
type EventEmitter struct {
	threadID string
	ch       chan Event
	closed   bool
	mu       sync.Mutex
}

// NewEventEmitter creates an EventEmitter with a buffered channel.
func NewEventEmitter(threadID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		threadID: threadID,
		ch:       make(chan Event, bufferSize),
	}
}

// Emit sends an event. Events are dropped rather than blocking the loop
// when the channel is full or the emitter is closed.
func (e *EventEmitter) Emit(kind EventKind, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		ThreadID:  e.threadID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
