package agentloop

import "testing"

func TestAppendDoesNotMutateReceiver(t *testing.T) {
	base := NewConversationState("t1").Append(NewMessage(RoleUser, "one"))
	forked := base.Append(NewMessage(RoleUser, "two"))

	if len(base.Messages) != 1 {
		t.Errorf("receiver mutated: %d messages", len(base.Messages))
	}
	if len(forked.Messages) != 2 {
		t.Errorf("expected 2 messages in fork, got %d", len(forked.Messages))
	}

	// Appending to both forks must not clobber the other.
	a := base.Append(NewMessage(RoleUser, "a"))
	b := base.Append(NewMessage(RoleUser, "b"))
	if a.Messages[1].Content == b.Messages[1].Content {
		t.Error("forks share the same backing array")
	}
}

func TestWithStatusEndIsSticky(t *testing.T) {
	state := NewConversationState("t1").WithStatus(StatusEnd)
	if got := state.WithStatus(StatusContinue); got.Status != StatusEnd {
		t.Errorf("END must never revert, got %q", got.Status)
	}
}

func TestWithFeedbackClonesMap(t *testing.T) {
	base := NewConversationState("t1").WithFeedback("echo", "good")
	updated := base.WithFeedback("echo", "bad")

	if base.ToolFeedback["echo"] != "good" {
		t.Errorf("earlier state mutated: %q", base.ToolFeedback["echo"])
	}
	if updated.ToolFeedback["echo"] != "bad" {
		t.Errorf("expected updated feedback, got %q", updated.ToolFeedback["echo"])
	}
}

func TestNewMessageStampsTime(t *testing.T) {
	msg := NewMessage(RoleUser, "hi")
	if msg.Timestamp.IsZero() {
		t.Error("expected timestamp set")
	}
	if msg.Role != RoleUser || msg.Content != "hi" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestSerializedArgsStable(t *testing.T) {
	tool := ToolAction{Name: "calc", Args: map[string]any{"b": 2, "a": 1, "c": 3}}
	first := tool.SerializedArgs()
	for i := 0; i < 20; i++ {
		if got := tool.SerializedArgs(); got != first {
			t.Fatalf("unstable serialization: %q vs %q", first, got)
		}
	}
	if first != `{"a":1,"b":2,"c":3}` {
		t.Errorf("expected sorted keys, got %q", first)
	}
}

func TestActionTerminal(t *testing.T) {
	terminal := []Action{
		NewFinalAction("x"), NewChatAction("x"), NewErrorAction("x"),
		NewEditAction("f", nil), NewComposeAction("p", ""), NewSyncAction("p", ""),
	}
	for _, a := range terminal {
		if !a.Terminal() {
			t.Errorf("%s should be terminal", a.Kind)
		}
	}
	nonTerminal := []Action{
		NewThoughtAction("x"), NewObservationAction("x"), NewFeedbackAction("x"),
		NewToolAction("", "echo", nil),
	}
	for _, a := range nonTerminal {
		if a.Terminal() {
			t.Errorf("%s should not be terminal", a.Kind)
		}
	}
}
