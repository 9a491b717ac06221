package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized observations are trimmed.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// TruncationLimits configures per-tool observation trimming before the
// observation is appended to the message log. The full untruncated output
// still reaches the event stream.
type TruncationLimits struct {
	CharLimits map[string]int            `json:"char_limits,omitempty"`
	LineLimits map[string]int            `json:"line_limits,omitempty"`
	Modes      map[string]TruncationMode `json:"modes,omitempty"`
	// DefaultCharLimit applies to tools without an entry. Zero disables
	// truncation for them.
	DefaultCharLimit int `json:"default_char_limit"`
}

// TruncateObservation trims output for toolName according to the limits.
func TruncateObservation(output, toolName string, limits TruncationLimits) string {
	charLimit := limits.DefaultCharLimit
	if v, ok := limits.CharLimits[toolName]; ok {
		charLimit = v
	}
	mode := TruncateTail
	if m, ok := limits.Modes[toolName]; ok {
		mode = m
	}

	truncated := output
	if charLimit > 0 && len(truncated) > charLimit {
		removed := len(truncated) - charLimit
		switch mode {
		case TruncateHeadTail:
			head := charLimit / 2
			tail := charLimit - head
			truncated = truncated[:head] +
				fmt.Sprintf("\n... [%d chars truncated] ...\n", removed) +
				truncated[len(truncated)-tail:]
		default:
			truncated = truncated[:charLimit] +
				fmt.Sprintf("\n... [%d chars truncated]", removed)
		}
	}

	if lineLimit, ok := limits.LineLimits[toolName]; ok && lineLimit > 0 {
		lines := strings.Split(truncated, "\n")
		if len(lines) > lineLimit {
			removed := len(lines) - lineLimit
			lines = lines[:lineLimit]
			lines = append(lines, fmt.Sprintf("... [%d lines truncated]", removed))
			truncated = strings.Join(lines, "\n")
		}
	}

	return truncated
}
