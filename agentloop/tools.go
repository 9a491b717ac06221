package agentloop

import (
	"context"
	"sync"
)

// Tool is the collaborator contract for anything the loop can invoke. The
// core treats all tools polymorphically through this interface; Invoke may
// return an error, which the dispatcher handles via its retry budget.
type Tool interface {
	// Name returns the unique registry key for this tool.
	Name() string

	// Description returns a one-line summary shown to the model in the
	// instruction preamble.
	Description() string

	// Invoke executes the tool with serialized input and returns its
	// output text.
	Invoke(ctx context.Context, input string) (string, error)
}

// ToolFunc adapts a plain function into a Tool.
type ToolFunc struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, input string) (string, error)
}

// Name returns the tool name.
func (t ToolFunc) Name() string { return t.ToolName }

// Description returns the tool description.
func (t ToolFunc) Description() string { return t.Desc }

// Invoke calls the wrapped function.
func (t ToolFunc) Invoke(ctx context.Context, input string) (string, error) {
	return t.Fn(ctx, input)
}

// ToolRegistry manages tool registration and lookup. It is read-mostly and
// shared across threads; lookups are safe for concurrent use.
type ToolRegistry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool in the registry.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool from the registry.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a registered tool by name, or nil if not found.
func (r *ToolRegistry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the names of all registered tools in map order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Descriptors returns name/description pairs for preamble rendering.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, ToolDescriptor{Name: tool.Name(), Description: tool.Description()})
	}
	return out
}

// ToolDescriptor is the serializable metadata for one tool.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
