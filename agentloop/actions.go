package agentloop

import "encoding/json"

// ActionKind discriminates between action variants.
type ActionKind string

const (
	ActionThought     ActionKind = "thought"
	ActionChat        ActionKind = "chat"
	ActionFinal       ActionKind = "final"
	ActionObservation ActionKind = "observation"
	ActionFeedback    ActionKind = "feedback"
	ActionError       ActionKind = "error"
	ActionTool        ActionKind = "tool"
	ActionEdit        ActionKind = "edit"
	ActionCompose     ActionKind = "compose"
	ActionSync        ActionKind = "sync"
)

// Action is the structured result of parsing one model response. Exactly one
// variant field is populated, matching Kind. An Action is immutable once
// constructed.
type Action struct {
	Kind        ActionKind      `json:"kind"`
	Thought     *TextAction     `json:"thought,omitempty"`
	Chat        *TextAction     `json:"chat,omitempty"`
	Final       *TextAction     `json:"final,omitempty"`
	Observation *TextAction     `json:"observation,omitempty"`
	Feedback    *TextAction     `json:"feedback,omitempty"`
	Error       *TextAction     `json:"error,omitempty"`
	Tool        *ToolAction     `json:"tool,omitempty"`
	Edit        *EditAction     `json:"edit,omitempty"`
	Compose     *ComposeAction  `json:"compose,omitempty"`
	Sync        *ComposeAction  `json:"sync,omitempty"`
}

// TextAction holds the content of a text-only variant.
type TextAction struct {
	Content string `json:"content"`
}

// ToolAction is a model-proposed tool invocation.
type ToolAction struct {
	Thought string         `json:"thought,omitempty"`
	Name    string         `json:"action"`
	Args    map[string]any `json:"args"`
}

// SerializedArgs returns the tool arguments as canonical JSON. Map key
// ordering is handled by encoding/json, so identical args always yield
// identical bytes.
func (t ToolAction) SerializedArgs() string {
	if len(t.Args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(t.Args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// EditOp is the kind of one edit change.
type EditOp string

const (
	EditReplace      EditOp = "replace"
	EditInsertBefore EditOp = "insert_before"
	EditInsertAfter  EditOp = "insert_after"
	EditDelete       EditOp = "delete"
)

// EditChange is one ordered change within an Edit action. Location is an
// anchor substring in the target file.
type EditChange struct {
	Op       EditOp `json:"op"`
	Location string `json:"location"`
	Content  string `json:"content,omitempty"`
}

// EditAction applies an ordered list of changes to an existing file.
type EditAction struct {
	File    string       `json:"file"`
	Changes []EditChange `json:"changes"`
}

// ComposeAction writes full content to a path. It backs both the Compose
// (create) and Sync (reconcile) variants.
type ComposeAction struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewThoughtAction creates a Thought action.
func NewThoughtAction(content string) Action {
	return Action{Kind: ActionThought, Thought: &TextAction{Content: content}}
}

// NewChatAction creates a Chat action.
func NewChatAction(content string) Action {
	return Action{Kind: ActionChat, Chat: &TextAction{Content: content}}
}

// NewFinalAction creates a Final action.
func NewFinalAction(content string) Action {
	return Action{Kind: ActionFinal, Final: &TextAction{Content: content}}
}

// NewObservationAction creates an Observation action.
func NewObservationAction(content string) Action {
	return Action{Kind: ActionObservation, Observation: &TextAction{Content: content}}
}

// NewFeedbackAction creates a Feedback action.
func NewFeedbackAction(content string) Action {
	return Action{Kind: ActionFeedback, Feedback: &TextAction{Content: content}}
}

// NewErrorAction creates an Error action.
func NewErrorAction(content string) Action {
	return Action{Kind: ActionError, Error: &TextAction{Content: content}}
}

// NewToolAction creates a Tool action.
func NewToolAction(thought, name string, args map[string]any) Action {
	return Action{Kind: ActionTool, Tool: &ToolAction{Thought: thought, Name: name, Args: args}}
}

// NewEditAction creates an Edit action.
func NewEditAction(file string, changes []EditChange) Action {
	return Action{Kind: ActionEdit, Edit: &EditAction{File: file, Changes: changes}}
}

// NewComposeAction creates a Compose action.
func NewComposeAction(path, content string) Action {
	return Action{Kind: ActionCompose, Compose: &ComposeAction{Path: path, Content: content}}
}

// NewSyncAction creates a Sync action.
func NewSyncAction(path, content string) Action {
	return Action{Kind: ActionSync, Sync: &ComposeAction{Path: path, Content: content}}
}

// TextContent returns the text content of an action regardless of its kind.
// Tool, Edit, Compose, and Sync actions return their thought or path.
func (a Action) TextContent() string {
	switch a.Kind {
	case ActionThought:
		if a.Thought != nil {
			return a.Thought.Content
		}
	case ActionChat:
		if a.Chat != nil {
			return a.Chat.Content
		}
	case ActionFinal:
		if a.Final != nil {
			return a.Final.Content
		}
	case ActionObservation:
		if a.Observation != nil {
			return a.Observation.Content
		}
	case ActionFeedback:
		if a.Feedback != nil {
			return a.Feedback.Content
		}
	case ActionError:
		if a.Error != nil {
			return a.Error.Content
		}
	case ActionTool:
		if a.Tool != nil {
			return a.Tool.Thought
		}
	case ActionEdit:
		if a.Edit != nil {
			return a.Edit.File
		}
	case ActionCompose:
		if a.Compose != nil {
			return a.Compose.Path
		}
	case ActionSync:
		if a.Sync != nil {
			return a.Sync.Path
		}
	}
	return ""
}

// Terminal reports whether this action variant always ends the loop,
// independent of tool execution outcomes.
func (a Action) Terminal() bool {
	switch a.Kind {
	case ActionFinal, ActionChat, ActionError, ActionEdit, ActionCompose, ActionSync:
		return true
	default:
		return false
	}
}
