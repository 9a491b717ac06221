package agentloop

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// errNoEnvelope signals that raw text carries no recognizable envelope at
// all, as opposed to an envelope that is present but malformed. Only the
// former falls through to heuristic normalization.
var errNoEnvelope = errors.New("no envelope")

// Codec encodes and decodes the typed envelope carried at the start of raw
// model output. Encode/decode is the only part of the loop that varies per
// configuration; everything downstream consumes Action values.
type Codec interface {
	// Name returns the codec identifier ("json" or "react").
	Name() string

	// Decode parses raw text into exactly one Action. It returns
	// errNoEnvelope when the text has no discriminator, and a *ParseError
	// when an envelope is present but structurally invalid.
	Decode(raw string) (Action, error)

	// Encode renders an Action in this codec's envelope format.
	Encode(a Action) (string, error)
}

// CodecByName returns the codec registered under name. The default, used
// for empty name, is the JSON envelope codec.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "react":
		return ReActCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (valid: json, react)", name)
	}
}

// JSONCodec is the canonical envelope format: a JSON object at the start of
// the response with a "type" discriminator field.
type JSONCodec struct{}

// Name returns "json".
func (JSONCodec) Name() string { return "json" }

// jsonEnvelope is the wire shape shared by all variants.
type jsonEnvelope struct {
	Type     string          `json:"type"`
	Content  string          `json:"content,omitempty"`
	Thought  string          `json:"thought,omitempty"`
	ToolName string          `json:"action,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
	File     string          `json:"file,omitempty"`
	Changes  []EditChange    `json:"changes,omitempty"`
	Path     string          `json:"path,omitempty"`
}

// Decode parses a JSON envelope. Trailing text after the closing brace is
// ignored so that models that append prose after the envelope still parse.
func (JSONCodec) Decode(raw string) (Action, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Action{}, errNoEnvelope
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var env jsonEnvelope
	if err := dec.Decode(&env); err != nil {
		return Action{}, NewParseError("malformed JSON envelope: " + err.Error())
	}
	if env.Type == "" {
		return Action{}, errNoEnvelope
	}

	switch ActionKind(env.Type) {
	case ActionThought:
		return NewThoughtAction(env.Content), nil
	case ActionChat:
		return NewChatAction(env.Content), nil
	case ActionFinal:
		return NewFinalAction(env.Content), nil
	case ActionObservation:
		return NewObservationAction(env.Content), nil
	case ActionFeedback:
		return NewFeedbackAction(env.Content), nil
	case ActionError:
		return NewErrorAction(env.Content), nil
	case ActionTool:
		if env.ToolName == "" {
			return Action{}, NewParseError("tool envelope missing action name")
		}
		args, err := decodeArgs(env.Args)
		if err != nil {
			return Action{}, err
		}
		return NewToolAction(env.Thought, env.ToolName, args), nil
	case ActionEdit:
		if env.File == "" {
			return Action{}, NewParseError("edit envelope missing file")
		}
		if len(env.Changes) == 0 {
			return Action{}, NewParseError("edit envelope has no changes")
		}
		return NewEditAction(env.File, env.Changes), nil
	case ActionCompose:
		if env.Path == "" {
			return Action{}, NewParseError("compose envelope missing path")
		}
		return NewComposeAction(env.Path, env.Content), nil
	case ActionSync:
		if env.Path == "" {
			return Action{}, NewParseError("sync envelope missing path")
		}
		return NewSyncAction(env.Path, env.Content), nil
	default:
		return Action{}, NewParseError("unknown envelope type " + env.Type)
	}
}

// decodeArgs parses tool args as a key/value map. A missing args field is an
// empty map; anything that is not a JSON object is a parse failure, never a
// tool-execution failure.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, NewParseError("tool args are not a key/value map")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Encode renders an Action as its JSON envelope.
func (JSONCodec) Encode(a Action) (string, error) {
	env := jsonEnvelope{Type: string(a.Kind)}
	switch a.Kind {
	case ActionThought, ActionChat, ActionFinal, ActionObservation, ActionFeedback, ActionError:
		env.Content = a.TextContent()
	case ActionTool:
		if a.Tool == nil {
			return "", fmt.Errorf("tool action has no payload")
		}
		env.Thought = a.Tool.Thought
		env.ToolName = a.Tool.Name
		env.Args = json.RawMessage(a.Tool.SerializedArgs())
	case ActionEdit:
		if a.Edit == nil {
			return "", fmt.Errorf("edit action has no payload")
		}
		env.File = a.Edit.File
		env.Changes = a.Edit.Changes
	case ActionCompose:
		if a.Compose == nil {
			return "", fmt.Errorf("compose action has no payload")
		}
		env.Path = a.Compose.Path
		env.Content = a.Compose.Content
	case ActionSync:
		if a.Sync == nil {
			return "", fmt.Errorf("sync action has no payload")
		}
		env.Path = a.Sync.Path
		env.Content = a.Sync.Content
	default:
		return "", fmt.Errorf("cannot encode action kind %q", a.Kind)
	}
	out, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ReActCodec is the classic labeled-line envelope format:
//
//	Thought: reasoning text
//	Action: tool_name
//	Action Input: {"key": "value"}
//
// or, for terminal answers:
//
//	Final Answer: the answer
//
// File-mutating variants use a label plus a path on the first line, with the
// body on subsequent lines (Edit bodies are a JSON change list).
type ReActCodec struct{}

// Name returns "react".
func (ReActCodec) Name() string { return "react" }

// reactLabels maps leading labels to single-text action kinds.
var reactLabels = []struct {
	label string
	kind  ActionKind
}{
	{"Final Answer:", ActionFinal},
	{"Chat:", ActionChat},
	{"Observation:", ActionObservation},
	{"Feedback:", ActionFeedback},
	{"Error:", ActionError},
}

// Decode parses the labeled-line format. The discriminator is the first
// recognized label at the start of the text.
func (ReActCodec) Decode(raw string) (Action, error) {
	trimmed := strings.TrimSpace(raw)

	for _, entry := range reactLabels {
		if rest, ok := strings.CutPrefix(trimmed, entry.label); ok {
			switch entry.kind {
			case ActionFinal:
				return NewFinalAction(strings.TrimSpace(rest)), nil
			case ActionChat:
				return NewChatAction(strings.TrimSpace(rest)), nil
			case ActionObservation:
				return NewObservationAction(strings.TrimSpace(rest)), nil
			case ActionFeedback:
				return NewFeedbackAction(strings.TrimSpace(rest)), nil
			case ActionError:
				return NewErrorAction(strings.TrimSpace(rest)), nil
			}
		}
	}

	if rest, ok := strings.CutPrefix(trimmed, "Edit:"); ok {
		return decodeReActEdit(rest)
	}
	if rest, ok := strings.CutPrefix(trimmed, "Compose:"); ok {
		path, body := splitFirstLine(rest)
		if path == "" {
			return Action{}, NewParseError("compose envelope missing path")
		}
		return NewComposeAction(path, body), nil
	}
	if rest, ok := strings.CutPrefix(trimmed, "Sync:"); ok {
		path, body := splitFirstLine(rest)
		if path == "" {
			return Action{}, NewParseError("sync envelope missing path")
		}
		return NewSyncAction(path, body), nil
	}

	if strings.HasPrefix(trimmed, "Thought:") || strings.HasPrefix(trimmed, "Action:") {
		return decodeReActTool(trimmed)
	}

	return Action{}, errNoEnvelope
}

// decodeReActTool parses Thought/Action/Action Input lines. A Thought with
// no Action is a bare Thought action.
func decodeReActTool(text string) (Action, error) {
	thought := ""
	actionName := ""
	argsText := ""

	lines := strings.Split(text, "\n")
	section := ""
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "Thought:"):
			section = "thought"
			thought = strings.TrimSpace(strings.TrimPrefix(line, "Thought:"))
		case strings.HasPrefix(line, "Action Input:"):
			section = "input"
			argsText = strings.TrimSpace(strings.TrimPrefix(line, "Action Input:"))
		case strings.HasPrefix(line, "Action:"):
			section = "action"
			actionName = strings.TrimSpace(strings.TrimPrefix(line, "Action:"))
		default:
			// Continuation of the current section.
			switch section {
			case "thought":
				thought += "\n" + line
			case "input":
				argsText += "\n" + line
			}
		}
	}

	if actionName == "" {
		return NewThoughtAction(strings.TrimSpace(thought)), nil
	}

	args := map[string]any{}
	if strings.TrimSpace(argsText) != "" {
		if err := json.Unmarshal([]byte(argsText), &args); err != nil {
			return Action{}, NewParseError("tool args are not a key/value map")
		}
	}
	return NewToolAction(strings.TrimSpace(thought), actionName, args), nil
}

// decodeReActEdit parses "Edit: <file>" followed by a JSON change list.
func decodeReActEdit(rest string) (Action, error) {
	file, body := splitFirstLine(rest)
	if file == "" {
		return Action{}, NewParseError("edit envelope missing file")
	}
	var changes []EditChange
	if err := json.Unmarshal([]byte(body), &changes); err != nil {
		return Action{}, NewParseError("edit changes are not a valid change list")
	}
	if len(changes) == 0 {
		return Action{}, NewParseError("edit envelope has no changes")
	}
	return NewEditAction(file, changes), nil
}

// splitFirstLine returns the trimmed first line and the remainder.
func splitFirstLine(text string) (string, string) {
	text = strings.TrimLeft(text, " \t")
	first, rest, found := strings.Cut(text, "\n")
	if !found {
		return strings.TrimSpace(first), ""
	}
	return strings.TrimSpace(first), strings.TrimSuffix(rest, "\n")
}

// Encode renders an Action in the labeled-line format.
func (ReActCodec) Encode(a Action) (string, error) {
	switch a.Kind {
	case ActionThought:
		return "Thought: " + a.TextContent(), nil
	case ActionChat:
		return "Chat: " + a.TextContent(), nil
	case ActionFinal:
		return "Final Answer: " + a.TextContent(), nil
	case ActionObservation:
		return "Observation: " + a.TextContent(), nil
	case ActionFeedback:
		return "Feedback: " + a.TextContent(), nil
	case ActionError:
		return "Error: " + a.TextContent(), nil
	case ActionTool:
		if a.Tool == nil {
			return "", fmt.Errorf("tool action has no payload")
		}
		var sb strings.Builder
		if a.Tool.Thought != "" {
			sb.WriteString("Thought: " + a.Tool.Thought + "\n")
		}
		sb.WriteString("Action: " + a.Tool.Name + "\n")
		sb.WriteString("Action Input: " + a.Tool.SerializedArgs())
		return sb.String(), nil
	case ActionEdit:
		if a.Edit == nil {
			return "", fmt.Errorf("edit action has no payload")
		}
		changes, err := json.Marshal(a.Edit.Changes)
		if err != nil {
			return "", err
		}
		return "Edit: " + a.Edit.File + "\n" + string(changes), nil
	case ActionCompose:
		if a.Compose == nil {
			return "", fmt.Errorf("compose action has no payload")
		}
		return "Compose: " + a.Compose.Path + "\n" + a.Compose.Content, nil
	case ActionSync:
		if a.Sync == nil {
			return "", fmt.Errorf("sync action has no payload")
		}
		return "Sync: " + a.Sync.Path + "\n" + a.Sync.Content, nil
	default:
		return "", fmt.Errorf("cannot encode action kind %q", a.Kind)
	}
}
