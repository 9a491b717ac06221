package agentloop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InferOptions carries per-request options for the model collaborator.
type InferOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// ModelClient is the inference collaborator. The core is agnostic to the
// backend; the call is a suspension point with no internal timeout and
// relies on caller-supplied cancellation.
type ModelClient interface {
	Infer(ctx context.Context, messages []Message, opts InferOptions) (string, error)
}

// FileApplier is the collaborator that applies file-mutating actions
// (Edit, Compose, Sync) and returns a summary of what changed.
type FileApplier interface {
	Apply(action Action) (string, error)
}

// Config holds the Controller's loop configuration.
type Config struct {
	// MaxIterations bounds tool executions per invocation.
	MaxIterations int `json:"max_iterations"`
	// Model is passed through to the model collaborator.
	Model string `json:"model,omitempty"`

	Retry       RetryPolicy       `json:"retry"`
	Safety      SafetyPolicy      `json:"safety"`
	Interaction InteractionPolicy `json:"interaction"`
	Truncation  TruncationLimits  `json:"truncation"`

	// PruneMaxAge and PruneMaxEntries trim loaded history before it is
	// merged into a new invocation. Zero disables the bound.
	PruneMaxAge     time.Duration `json:"prune_max_age"`
	PruneMaxEntries int           `json:"prune_max_entries"`

	EnableLoopDetection bool `json:"enable_loop_detection"`
	LoopDetectionWindow int  `json:"loop_detection_window"`
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       25,
		Retry:               DefaultRetryPolicy(),
		Safety:              DefaultSafetyPolicy(),
		PruneMaxEntries:     200,
		EnableLoopDetection: true,
		LoopDetectionWindow: 6,
	}
}

// Options bundles the optional collaborators for a Controller.
type Options struct {
	Config      *Config
	Memory      *MemoryStore
	Coordinator *Coordinator
	Applier     FileApplier
	Codec       Codec
	Logger      *slog.Logger
}

// Controller runs the per-thread reason-then-act state machine. Distinct
// threads may run concurrently; Run calls for the same thread are
// serialized so each thread has one logical owner at a time.
type Controller struct {
	model      ModelClient
	registry   *ToolRegistry
	parser     *Parser
	codec      Codec
	dispatcher *Dispatcher
	memory     *MemoryStore
	coord      *Coordinator
	applier    FileApplier
	config     Config
	logger     *slog.Logger

	threadMu sync.Mutex
	threads  map[string]*sync.Mutex
}

// NewController creates a Controller. Only the model client and registry
// are required; nil Options fields select defaults (in-memory-only state,
// no interaction, no file application, JSON codec).
func NewController(model ModelClient, registry *ToolRegistry, opts *Options) *Controller {
	if opts == nil {
		opts = &Options{}
	}
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	codec := opts.Codec
	if codec == nil {
		codec = JSONCodec{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	memory := opts.Memory
	if memory == nil {
		memory = NewMemoryStore(nil, logger)
	}
	if registry == nil {
		registry = NewToolRegistry()
	}

	return &Controller{
		model:      model,
		registry:   registry,
		parser:     NewParser(codec),
		codec:      codec,
		dispatcher: NewDispatcher(cfg.Retry, logger),
		memory:     memory,
		coord:      opts.Coordinator,
		applier:    opts.Applier,
		config:     cfg,
		logger:     logger,
		threads:    make(map[string]*sync.Mutex),
	}
}

// lockThread returns the mutex owning threadID.
func (c *Controller) lockThread(threadID string) *sync.Mutex {
	c.threadMu.Lock()
	defer c.threadMu.Unlock()
	mu, ok := c.threads[threadID]
	if !ok {
		mu = &sync.Mutex{}
		c.threads[threadID] = mu
	}
	return mu
}

// Run executes one invocation of the loop for threadID, merging inbound
// messages into the pruned checkpointed history. It returns the final state
// and the terminal error, if the loop ended on one. The final state is
// persisted best-effort before returning.
func (c *Controller) Run(ctx context.Context, threadID string, inbound []Message) (ConversationState, error) {
	return c.RunWithEvents(ctx, threadID, inbound, nil)
}

// RunWithEvents is Run with an explicit per-conversation event channel. The
// emitter's lifecycle is scoped to this invocation: it is closed when the
// invocation finishes, whether it was supplied by the caller or created
// here.
func (c *Controller) RunWithEvents(ctx context.Context, threadID string, inbound []Message, emitter *EventEmitter) (ConversationState, error) {
	mu := c.lockThread(threadID)
	mu.Lock()
	defer mu.Unlock()

	if emitter == nil {
		emitter = NewEventEmitter(threadID, 256)
	}
	defer emitter.Close()

	state := c.memory.Load(ctx, threadID)
	state.Messages = append(
		Prune(state.Messages, c.config.PruneMaxAge, c.config.PruneMaxEntries, time.Now()),
		inbound...,
	)
	state.Status = StatusContinue

	emitter.Emit(EventRunStart, map[string]any{"inbound": len(inbound)})
	c.logger.Info("loop started", "thread", threadID, "history", len(state.Messages))

	preamble := NewMessage(RoleSystem, BuildPreamble(c.codec, c.registry))
	var signatures []string
	var runErr error

	for state.Status == StatusContinue && state.Iteration < c.config.MaxIterations {
		if err := ctx.Err(); err != nil {
			state = state.WithStatus(StatusEnd)
			runErr = err
			break
		}

		state, runErr = c.step(ctx, state, preamble, emitter, &signatures)
	}

	if state.Status == StatusContinue {
		// Iteration cap reached.
		emitter.Emit(EventIterationCap, map[string]any{"iteration": state.Iteration})
		c.logger.Warn("iteration cap reached", "thread", threadID, "iteration", state.Iteration)
		state = state.WithStatus(StatusEnd)
	}

	c.memory.Save(ctx, threadID, state)
	emitter.Emit(EventRunEnd, map[string]any{"iteration": state.Iteration})
	c.logger.Info("loop finished",
		"thread", threadID,
		"iteration", state.Iteration,
		"messages", len(state.Messages),
	)
	return state, runErr
}

// step performs one pass of the state machine: infer, parse, dispatch by
// variant.
func (c *Controller) step(ctx context.Context, state ConversationState, preamble Message, emitter *EventEmitter, signatures *[]string) (ConversationState, error) {
	request := make([]Message, 0, len(state.Messages)+1)
	request = append(request, preamble)
	request = append(request, state.Messages...)

	emitter.Emit(EventModelCall, map[string]any{"messages": len(request)})
	raw, err := c.model.Infer(ctx, request, InferOptions{Model: c.config.Model})
	if err != nil {
		emitter.Emit(EventError, map[string]any{"error": err.Error()})
		return c.terminal(state, "Error: model inference failed: "+err.Error()), err
	}

	action, err := c.parser.Parse(raw)
	if err != nil {
		// Parse failure is terminal, never retried.
		emitter.Emit(EventError, map[string]any{"error": err.Error()})
		return c.terminal(state, "Error: "+err.Error()), err
	}
	emitter.Emit(EventActionParsed, map[string]any{"kind": string(action.Kind)})

	switch action.Kind {
	case ActionFinal, ActionChat:
		state = state.Append(NewMessage(RoleAssistant, action.TextContent()))
		return state.WithStatus(StatusEnd), nil

	case ActionThought, ActionObservation, ActionFeedback:
		// These never invoke tools and do not consume an iteration.
		state = state.Append(NewMessage(RoleAssistant, action.TextContent()))
		return state.WithStatus(StatusContinue), nil

	case ActionError:
		return c.terminal(state, "Error: "+action.TextContent()), nil

	case ActionTool:
		return c.stepTool(ctx, state, action, emitter, signatures)

	case ActionEdit, ActionCompose, ActionSync:
		return c.stepFileAction(state, action, emitter)

	default:
		err := NewParseError("unknown action variant " + string(action.Kind))
		emitter.Emit(EventError, map[string]any{"error": err.Error()})
		return c.terminal(state, "Error: "+err.Error()), err
	}
}

// stepTool runs the gated tool pipeline: resolve, safety, confirmation,
// dispatch, feedback. Only this path increments the iteration counter.
func (c *Controller) stepTool(ctx context.Context, state ConversationState, action Action, emitter *EventEmitter, signatures *[]string) (ConversationState, error) {
	tool := action.Tool
	state.PendingAction = &action

	if tool.Thought != "" {
		state = state.Append(NewMessage(RoleAssistant, tool.Thought))
	}

	registered := c.registry.Get(tool.Name)
	if registered == nil {
		err := newToolNotFoundError(tool.Name)
		emitter.Emit(EventError, map[string]any{"error": err.Error()})
		return c.terminal(state, "Error: "+err.Error()), err
	}

	input, ok := ValidateInput(tool.SerializedArgs())
	if !ok {
		// Malformed structured input is a soft failure surfaced as an
		// observation, not a crash.
		state = state.Append(NewMessage(RoleTool, "Error: tool input is not valid structured data"))
		return state.WithStatus(StatusContinue), nil
	}

	safety := RunSafetyChecks(tool.Name, input, c.config.Safety)
	if !safety.Passed {
		emitter.Emit(EventSafetyBlocked, map[string]any{
			"tool":     tool.Name,
			"warnings": safety.Warnings,
		})
		err := newSafetyViolationError(tool.Name, safety.Reason, safety.Patterns)
		return c.terminal(state, "Error: "+err.Error()), err
	}

	if c.config.Safety.RequireConfirmation {
		outcome := c.confirm(ctx, state, tool.Name, input)
		state = outcome.State
		emitter.Emit(EventConfirmation, map[string]any{
			"tool":      tool.Name,
			"confirmed": outcome.Confirmed,
		})
		if !outcome.Confirmed {
			if outcome.TimedOut {
				err := newUserInputTimeoutError(tool.Name, nil)
				return c.terminal(state, "Error: "+err.Error()), err
			}
			err := newUserRejectedError(tool.Name)
			return c.terminal(state, err.Error()), err
		}
	}

	emitter.Emit(EventToolStart, map[string]any{"tool": tool.Name, "input": input})
	result := c.dispatcher.ExecuteWithRetries(ctx, registered, input)
	state.Iteration++
	state.PendingAction = nil

	// The message log gets the truncated observation; the event stream
	// carries the full output.
	truncated := result
	truncated.Output = TruncateObservation(result.Output, tool.Name, c.config.Truncation)
	state = HandleResult(state, truncated)
	emitter.Emit(EventToolEnd, map[string]any{
		"tool":     tool.Name,
		"success":  result.Success,
		"aborted":  result.Aborted,
		"attempts": result.Attempts,
		"output":   result.Output,
	})

	if result.Aborted {
		return state.WithStatus(StatusEnd), result.Err
	}

	var runErr error
	if result.Success {
		state = state.WithStatus(StatusContinue)
		state = c.checkRepetition(state, tool, emitter, signatures)
	} else {
		runErr = newToolExecutionError(tool.Name, result.Attempts, result.Err)
		state = state.WithStatus(StatusEnd)
	}

	if c.config.Safety.RequireFeedback {
		state = c.feedback(ctx, state, tool.Name, result, safety, emitter)
	}

	return state, runErr
}

// confirm runs the confirmation suspension point. A missing coordinator is
// fail-closed: confirmation required but unavailable means rejected.
func (c *Controller) confirm(ctx context.Context, state ConversationState, toolName, input string) ConfirmationOutcome {
	if c.coord == nil {
		c.logger.Warn("confirmation required but no coordinator configured", "tool", toolName)
		return ConfirmationOutcome{State: state, Confirmed: false}
	}
	return c.coord.RequestConfirmation(ctx, state, toolName, input)
}

// feedback runs the feedback suspension point and merges stored feedback.
func (c *Controller) feedback(ctx context.Context, state ConversationState, toolName string, result ExecutionResult, safety SafetyResult, emitter *EventEmitter) ConversationState {
	if c.coord == nil {
		return state
	}
	outcome := c.coord.RequestFeedback(ctx, state, toolName, result, safety)
	state = outcome.State
	if outcome.Stored {
		state = state.WithFeedback(toolName, outcome.Feedback)
		emitter.Emit(EventFeedback, map[string]any{"tool": toolName})
	}
	if outcome.EndRun {
		state = state.WithStatus(StatusEnd)
	}
	return state
}

// checkRepetition records the call signature and injects a steering
// observation when the recent window repeats.
func (c *Controller) checkRepetition(state ConversationState, tool *ToolAction, emitter *EventEmitter, signatures *[]string) ConversationState {
	if !c.config.EnableLoopDetection {
		return state
	}
	*signatures = append(*signatures, toolCallSignature(tool.Name, tool.SerializedArgs()))
	if !DetectRepeatingCalls(*signatures, c.config.LoopDetectionWindow) {
		return state
	}
	warning := "The recent tool calls follow a repeating pattern. Try a different approach."
	emitter.Emit(EventLoopDetected, map[string]any{"window": c.config.LoopDetectionWindow})
	c.logger.Warn("repeating tool calls detected", "thread", state.ThreadID)
	return state.Append(NewMessage(RoleSystem, warning))
}

// stepFileAction applies a file-mutating action. These are always terminal:
// the log gets the action summary plus a synthetic final message.
func (c *Controller) stepFileAction(state ConversationState, action Action, emitter *EventEmitter) (ConversationState, error) {
	summary := string(action.Kind) + " " + action.TextContent()
	if c.applier != nil {
		applied, err := c.applier.Apply(action)
		if err != nil {
			emitter.Emit(EventError, map[string]any{"error": err.Error()})
			return c.terminal(state, "Error: "+err.Error()), nil
		}
		summary = applied
	}
	state = state.Append(
		NewMessage(RoleAssistant, summary),
		NewMessage(RoleAssistant, "operation complete"),
	)
	return state.WithStatus(StatusEnd), nil
}

// terminal appends a terminal message and ends the loop.
func (c *Controller) terminal(state ConversationState, content string) ConversationState {
	return state.Append(NewMessage(RoleAssistant, content)).WithStatus(StatusEnd)
}
