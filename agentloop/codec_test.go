package agentloop

import (
	"errors"
	"testing"
)

func TestJSONCodecDecodeTextVariants(t *testing.T) {
	tests := []struct {
		raw     string
		kind    ActionKind
		content string
	}{
		{`{"type": "thought", "content": "thinking"}`, ActionThought, "thinking"},
		{`{"type": "chat", "content": "hello"}`, ActionChat, "hello"},
		{`{"type": "final", "content": "done"}`, ActionFinal, "done"},
		{`{"type": "observation", "content": "saw it"}`, ActionObservation, "saw it"},
		{`{"type": "feedback", "content": "noted"}`, ActionFeedback, "noted"},
		{`{"type": "error", "content": "broken"}`, ActionError, "broken"},
	}

	codec := JSONCodec{}
	for _, tt := range tests {
		action, err := codec.Decode(tt.raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.raw, err)
		}
		if action.Kind != tt.kind {
			t.Errorf("%s: expected kind %q, got %q", tt.raw, tt.kind, action.Kind)
		}
		if action.TextContent() != tt.content {
			t.Errorf("%s: expected content %q, got %q", tt.raw, tt.content, action.TextContent())
		}
	}
}

func TestJSONCodecDecodeTool(t *testing.T) {
	raw := `{"type": "tool", "thought": "need math", "action": "calculator", "args": {"op": "add", "a": 1, "b": 2}}`
	action, err := JSONCodec{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionTool {
		t.Fatalf("expected tool action, got %q", action.Kind)
	}
	if action.Tool.Name != "calculator" {
		t.Errorf("expected tool name calculator, got %q", action.Tool.Name)
	}
	if action.Tool.Thought != "need math" {
		t.Errorf("expected thought, got %q", action.Tool.Thought)
	}
	if action.Tool.Args["op"] != "add" {
		t.Errorf("expected op=add, got %v", action.Tool.Args["op"])
	}
}

func TestJSONCodecDecodeToolMissingName(t *testing.T) {
	_, err := JSONCodec{}.Decode(`{"type": "tool", "args": {}}`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestJSONCodecDecodeToolNonObjectArgs(t *testing.T) {
	_, err := JSONCodec{}.Decode(`{"type": "tool", "action": "calculator", "args": "not a map"}`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestJSONCodecDecodeToolMissingArgs(t *testing.T) {
	action, err := JSONCodec{}.Decode(`{"type": "tool", "action": "clock"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Tool.Args == nil {
		t.Error("expected empty args map, got nil")
	}
	if action.Tool.SerializedArgs() != "{}" {
		t.Errorf("expected {}, got %q", action.Tool.SerializedArgs())
	}
}

func TestJSONCodecDecodeNoEnvelope(t *testing.T) {
	for _, raw := range []string{
		"just some prose",
		`{"content": "missing type"}`,
	} {
		_, err := JSONCodec{}.Decode(raw)
		if !errors.Is(err, errNoEnvelope) {
			t.Errorf("%q: expected errNoEnvelope, got %v", raw, err)
		}
	}
}

func TestJSONCodecDecodeMalformed(t *testing.T) {
	_, err := JSONCodec{}.Decode(`{"type": "final", "content": `)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for malformed JSON, got %v", err)
	}
}

func TestJSONCodecDecodeUnknownType(t *testing.T) {
	_, err := JSONCodec{}.Decode(`{"type": "teleport"}`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for unknown type, got %v", err)
	}
}

func TestJSONCodecDecodeTrailingText(t *testing.T) {
	raw := `{"type": "final", "content": "42"}` + "\nSome trailing prose the model added."
	action, err := JSONCodec{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionFinal || action.TextContent() != "42" {
		t.Errorf("expected final/42, got %q/%q", action.Kind, action.TextContent())
	}
}

func TestJSONCodecDecodeEdit(t *testing.T) {
	raw := `{"type": "edit", "file": "main.go", "changes": [{"op": "replace", "location": "old", "content": "new"}]}`
	action, err := JSONCodec{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionEdit {
		t.Fatalf("expected edit, got %q", action.Kind)
	}
	if action.Edit.File != "main.go" || len(action.Edit.Changes) != 1 {
		t.Errorf("unexpected edit payload: %+v", action.Edit)
	}
	if action.Edit.Changes[0].Op != EditReplace {
		t.Errorf("expected replace op, got %q", action.Edit.Changes[0].Op)
	}
}

func TestJSONCodecDecodeEditNoChanges(t *testing.T) {
	_, err := JSONCodec{}.Decode(`{"type": "edit", "file": "main.go"}`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestJSONCodecDecodeComposeAndSync(t *testing.T) {
	compose, err := JSONCodec{}.Decode(`{"type": "compose", "path": "notes.txt", "content": "hello"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if compose.Kind != ActionCompose || compose.Compose.Path != "notes.txt" {
		t.Errorf("unexpected compose action: %+v", compose)
	}

	sync, err := JSONCodec{}.Decode(`{"type": "sync", "path": "notes.txt", "content": "hello"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sync.Kind != ActionSync || sync.Sync.Path != "notes.txt" {
		t.Errorf("unexpected sync action: %+v", sync)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	actions := []Action{
		NewFinalAction("done"),
		NewThoughtAction("hmm"),
		NewToolAction("compute", "calculator", map[string]any{"op": "add"}),
		NewEditAction("a.go", []EditChange{{Op: EditDelete, Location: "x"}}),
		NewComposeAction("b.txt", "body"),
		NewSyncAction("c.txt", "body"),
	}
	codec := JSONCodec{}
	for _, want := range actions {
		encoded, err := codec.Encode(want)
		if err != nil {
			t.Fatalf("encode %s: %v", want.Kind, err)
		}
		got, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("decode %s: %v", want.Kind, err)
		}
		if got.Kind != want.Kind {
			t.Errorf("round trip changed kind: %q -> %q", want.Kind, got.Kind)
		}
	}
}

func TestReActCodecDecodeFinal(t *testing.T) {
	action, err := ReActCodec{}.Decode("Final Answer: the result is 7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionFinal || action.TextContent() != "the result is 7" {
		t.Errorf("unexpected action: %+v", action)
	}
}

func TestReActCodecDecodeTool(t *testing.T) {
	raw := "Thought: I need to add numbers\nAction: calculator\nAction Input: {\"op\": \"add\", \"a\": 1, \"b\": 2}"
	action, err := ReActCodec{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionTool {
		t.Fatalf("expected tool, got %q", action.Kind)
	}
	if action.Tool.Name != "calculator" {
		t.Errorf("expected calculator, got %q", action.Tool.Name)
	}
	if action.Tool.Thought != "I need to add numbers" {
		t.Errorf("unexpected thought %q", action.Tool.Thought)
	}
	if action.Tool.Args["op"] != "add" {
		t.Errorf("expected op=add, got %v", action.Tool.Args["op"])
	}
}

func TestReActCodecDecodeMultilineInput(t *testing.T) {
	raw := "Action: kv\nAction Input: {\"action\": \"set\",\n\"key\": \"a\", \"value\": \"b\"}"
	action, err := ReActCodec{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Tool.Args["key"] != "a" {
		t.Errorf("multiline args not parsed: %v", action.Tool.Args)
	}
}

func TestReActCodecDecodeBareThought(t *testing.T) {
	action, err := ReActCodec{}.Decode("Thought: just pondering")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionThought || action.TextContent() != "just pondering" {
		t.Errorf("unexpected action: %+v", action)
	}
}

func TestReActCodecDecodeBadArgs(t *testing.T) {
	_, err := ReActCodec{}.Decode("Action: calculator\nAction Input: not json at all")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestReActCodecDecodeNoEnvelope(t *testing.T) {
	_, err := ReActCodec{}.Decode("plain prose, no labels anywhere")
	if !errors.Is(err, errNoEnvelope) {
		t.Fatalf("expected errNoEnvelope, got %v", err)
	}
}

func TestReActCodecDecodeEdit(t *testing.T) {
	raw := "Edit: main.go\n[{\"op\": \"replace\", \"location\": \"old\", \"content\": \"new\"}]"
	action, err := ReActCodec{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionEdit || action.Edit.File != "main.go" {
		t.Errorf("unexpected action: %+v", action)
	}
}

func TestReActCodecDecodeCompose(t *testing.T) {
	action, err := ReActCodec{}.Decode("Compose: notes.txt\nline one\nline two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionCompose || action.Compose.Path != "notes.txt" {
		t.Fatalf("unexpected action: %+v", action)
	}
	if action.Compose.Content != "line one\nline two" {
		t.Errorf("unexpected body %q", action.Compose.Content)
	}
}

func TestReActCodecRoundTrip(t *testing.T) {
	actions := []Action{
		NewFinalAction("done"),
		NewChatAction("hi"),
		NewToolAction("compute", "calculator", map[string]any{"op": "add"}),
		NewEditAction("a.go", []EditChange{{Op: EditDelete, Location: "x"}}),
		NewComposeAction("b.txt", "body text"),
	}
	codec := ReActCodec{}
	for _, want := range actions {
		encoded, err := codec.Encode(want)
		if err != nil {
			t.Fatalf("encode %s: %v", want.Kind, err)
		}
		got, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("decode %s: %v", want.Kind, err)
		}
		if got.Kind != want.Kind {
			t.Errorf("round trip changed kind: %q -> %q", want.Kind, got.Kind)
		}
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]string{"": "json", "json": "json", "react": "react"} {
		codec, err := CodecByName(name)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", name, err)
		}
		if codec.Name() != want {
			t.Errorf("%q: expected codec %q, got %q", name, want, codec.Name())
		}
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Error("expected error for unknown codec name")
	}
}
