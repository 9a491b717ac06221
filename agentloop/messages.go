package agentloop

import "time"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in the conversation log. The log is append-only
// within one invocation and never reordered.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a Message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// Status is the loop state for a conversation. Within one invocation the
// only legal transition is StatusContinue -> StatusEnd.
type Status string

const (
	StatusContinue Status = "continue"
	StatusEnd      Status = "end"
)

// ConversationState is the full per-thread loop state. It is owned
// exclusively by one invocation of the Controller at a time.
type ConversationState struct {
	ThreadID        string            `json:"thread_id"`
	Messages        []Message         `json:"messages"`
	Iteration       int               `json:"iteration"`
	Status          Status            `json:"status"`
	ToolFeedback    map[string]string `json:"tool_feedback,omitempty"`
	PendingAction   *Action           `json:"pending_action,omitempty"`
	LastObservation string            `json:"last_observation,omitempty"`
}

// NewConversationState returns a fresh state for threadID with no history.
func NewConversationState(threadID string) ConversationState {
	return ConversationState{
		ThreadID:     threadID,
		Messages:     []Message{},
		Status:       StatusContinue,
		ToolFeedback: map[string]string{},
	}
}

// Append returns a copy of the state with msgs added to the log. The
// receiver is not modified; callers always retain the pre-append state.
func (s ConversationState) Append(msgs ...Message) ConversationState {
	out := s
	out.Messages = make([]Message, 0, len(s.Messages)+len(msgs))
	out.Messages = append(out.Messages, s.Messages...)
	out.Messages = append(out.Messages, msgs...)
	return out
}

// WithFeedback returns a copy of the state with feedback stored for tool.
// The feedback map is cloned so earlier state values stay unchanged.
func (s ConversationState) WithFeedback(tool, feedback string) ConversationState {
	out := s
	out.ToolFeedback = make(map[string]string, len(s.ToolFeedback)+1)
	for k, v := range s.ToolFeedback {
		out.ToolFeedback[k] = v
	}
	out.ToolFeedback[tool] = feedback
	return out
}

// WithStatus returns a copy of the state with the given status. The
// END state is sticky: once reached it is never reverted.
func (s ConversationState) WithStatus(status Status) ConversationState {
	if s.Status == StatusEnd {
		return s
	}
	out := s
	out.Status = status
	return out
}
