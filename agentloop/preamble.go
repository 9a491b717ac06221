package agentloop

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"
)

// BuildEnvironmentContext generates the structured environment block that
// opens the instruction preamble.
func BuildEnvironmentContext() string {
	workingDir, _ := os.Getwd()

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	sb.WriteString("</environment>")
	return sb.String()
}

// BuildPreamble assembles the fixed instruction preamble sent as the system
// message of every inference request: the environment context, the response
// format for the selected codec, and the tool inventory.
func BuildPreamble(codec Codec, registry *ToolRegistry) string {
	var sb strings.Builder
	sb.WriteString("You are an autonomous agent that reasons step by step and acts through tools.\n\n")
	sb.WriteString(BuildEnvironmentContext())
	sb.WriteString("\n\n# Response format\n\n")
	sb.WriteString(formatInstructions(codec))

	if registry != nil && registry.Count() > 0 {
		sb.WriteString("\n\n# Available tools\n\n")
		descriptors := registry.Descriptors()
		sort.Slice(descriptors, func(i, j int) bool {
			return descriptors[i].Name < descriptors[j].Name
		})
		for _, d := range descriptors {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		}
	}
	return sb.String()
}

// formatInstructions renders worked examples in the codec's envelope format.
// Encode cannot fail for the fixed examples below.
func formatInstructions(codec Codec) string {
	examples := []struct {
		label  string
		action Action
	}{
		{"Reason without acting", NewThoughtAction("I should check the balance first.")},
		{"Invoke a tool", NewToolAction("The user asked for a sum.", "calculator",
			map[string]any{"op": "add", "a": 2, "b": 3})},
		{"Deliver the final answer", NewFinalAction("The sum is 5.")},
	}

	var sb strings.Builder
	sb.WriteString("Respond with exactly one action per turn, using this format:\n")
	for _, ex := range examples {
		encoded, err := codec.Encode(ex.action)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n%s\n", ex.label, encoded)
	}
	return sb.String()
}
