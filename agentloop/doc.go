// Package agentloop implements an autonomous reason-then-act loop.
//
// A Controller repeatedly asks a model collaborator for the next structured
// action, validates it, and, when the action is a tool invocation, gates it
// through safety checks, optional human confirmation, bounded-retry
// execution, and optional human feedback before looping again or
// terminating. Conversation state is checkpointed per thread at invocation
// boundaries.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Controller: The per-thread state machine orchestrating parse, safety,
//     interaction, dispatch, and memory, enforcing the iteration bound.
//   - Parser: Deterministic decode of raw model output into exactly one
//     Action variant, with a fixed-rule normalization pass for output that
//     lacks a well-formed envelope.
//   - Safety gate: Stateless, fail-closed checks on a proposed tool call.
//   - Dispatcher: Input validation and bounded-retry tool execution with
//     exponential backoff.
//   - Coordinator: Policy-gated human confirmation and feedback waits.
//   - MemoryStore: Best-effort checkpointed conversation history with
//     age/count pruning.
//
// # Quick Start
//
//	ctrl := agentloop.NewController(model, registry, nil)
//
//	state, err := ctrl.Run(ctx, "thread-1", []agentloop.Message{
//	    agentloop.NewMessage(agentloop.RoleUser, "What is 6 * 7?"),
//	})
//
// Distinct threads may run concurrently; a single thread is owned by one
// invocation of Run at a time.
package agentloop
