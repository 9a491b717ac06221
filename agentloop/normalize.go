package agentloop

import (
	"encoding/json"
	"strings"
)

// Normalization reconstructs a canonical JSON envelope from model output
// that carries no well-formed envelope. The rule set below is fixed and
// closed: input matching no rule is a parse failure, never a guessed
// variant.
//
// Rules, applied in order:
//
//  1. A fenced code block whose body starts with "{" is unwrapped and the
//     body returned as the envelope.
//  2. A line starting with "Final Answer:" yields a final envelope with
//     the remaining text.
//  3. A line starting with "Action:" or "Tool:" yields a tool envelope.
//     The tool name is the rest of that line; thought text comes from a
//     preceding "Thought:" line; args come from an "Action Input:",
//     "Args:", or "Input:" line and must be a JSON object.
//  4. A line starting with "Thought:" (with no action line) yields a
//     thought envelope.
//  5. A line starting with "Observation:" yields an observation envelope.
//  6. A line starting with "Feedback:" yields a feedback envelope.
//  7. A line starting with "Error:" yields an error envelope.

// NormalizeEnvelope applies the fixed rule set to raw text. It returns the
// reconstructed canonical JSON envelope and true, or "" and false when no
// rule matches. It never invokes the model or inspects anything beyond the
// text itself, so it is deterministic and side-effect free.
func NormalizeEnvelope(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	// Rule 1: fenced envelope.
	if body, ok := unwrapFence(trimmed); ok {
		return body, true
	}

	// Rule 2: final answer.
	if content, ok := cutLabeled(trimmed, "Final Answer:"); ok {
		return marshalEnvelope(jsonEnvelope{Type: string(ActionFinal), Content: content}), true
	}

	// Rule 3: tool call.
	if name, ok := findLabeledLine(trimmed, "Action:", "Tool:"); ok && name != "" {
		thought, _ := findLabeledLine(trimmed, "Thought:")
		env := jsonEnvelope{Type: string(ActionTool), ToolName: name, Thought: thought}
		if argsText, ok := findLabeledBlock(trimmed, "Action Input:", "Args:", "Input:"); ok {
			// Keep the args text verbatim when it is valid JSON so that
			// non-object args still surface as a parse failure downstream.
			if json.Valid([]byte(argsText)) {
				env.Args = json.RawMessage(argsText)
			} else {
				quoted, _ := json.Marshal(argsText)
				env.Args = json.RawMessage(quoted)
			}
		}
		return marshalEnvelope(env), true
	}

	// Rules 4-7: single-label variants.
	for _, rule := range []struct {
		label string
		kind  ActionKind
	}{
		{"Thought:", ActionThought},
		{"Observation:", ActionObservation},
		{"Feedback:", ActionFeedback},
		{"Error:", ActionError},
	} {
		if content, ok := cutLabeled(trimmed, rule.label); ok {
			return marshalEnvelope(jsonEnvelope{Type: string(rule.kind), Content: content}), true
		}
	}

	return "", false
}

// unwrapFence extracts the body of a leading ``` fence when the body starts
// with a JSON object.
func unwrapFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	rest := strings.TrimPrefix(text, "```")
	// Drop an optional language tag on the fence line.
	if idx := strings.Index(rest, "\n"); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		return "", false
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	body := strings.TrimSpace(rest[:end])
	if !strings.HasPrefix(body, "{") {
		return "", false
	}
	return body, true
}

// cutLabeled returns the text after the first line starting with label,
// through the end of the input.
func cutLabeled(text, label string) (string, bool) {
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), label) {
			idx := offset + strings.Index(line, label)
			return strings.TrimSpace(text[idx+len(label):]), true
		}
		offset += len(line) + 1
	}
	return "", false
}

// findLabeledLine returns the remainder of the first line starting with any
// of the labels.
func findLabeledLine(text string, labels ...string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, label := range labels {
			if after, ok := strings.CutPrefix(trimmed, label); ok {
				return strings.TrimSpace(after), true
			}
		}
	}
	return "", false
}

// findLabeledBlock returns everything after the first matching label line,
// spanning subsequent lines until the next known label or end of input.
func findLabeledBlock(text string, labels ...string) (string, bool) {
	lines := strings.Split(text, "\n")
	start := -1
	var first string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, label := range labels {
			if after, ok := strings.CutPrefix(trimmed, label); ok {
				start = i
				first = strings.TrimSpace(after)
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", false
	}
	block := []string{first}
	for _, line := range lines[start+1:] {
		if isKnownLabel(strings.TrimSpace(line)) {
			break
		}
		block = append(block, line)
	}
	return strings.TrimSpace(strings.Join(block, "\n")), true
}

// isKnownLabel reports whether a line begins one of the normalization
// labels.
func isKnownLabel(line string) bool {
	for _, label := range []string{
		"Thought:", "Action:", "Tool:", "Action Input:", "Args:", "Input:",
		"Final Answer:", "Observation:", "Feedback:", "Error:",
	} {
		if strings.HasPrefix(line, label) {
			return true
		}
	}
	return false
}

// marshalEnvelope renders the canonical envelope. Marshal of jsonEnvelope
// cannot fail for these field types.
func marshalEnvelope(env jsonEnvelope) string {
	out, _ := json.Marshal(env)
	return string(out)
}
