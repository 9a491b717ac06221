package agentloop

import (
	"fmt"
	"strings"
)

// SafetyPolicy configures the pre-execution safety gate and the interaction
// requirements for tool calls. It is read-only during an invocation.
type SafetyPolicy struct {
	MaxInputLength      int      `json:"max_input_length"`
	DangerousPatterns   []string `json:"dangerous_patterns,omitempty"`
	RequireConfirmation bool     `json:"require_confirmation"`
	RequireFeedback     bool     `json:"require_feedback"`
}

// DefaultSafetyPolicy returns a policy with a 10KB input cap and no pattern
// list. Confirmation and feedback are opt-in.
func DefaultSafetyPolicy() SafetyPolicy {
	return SafetyPolicy{MaxInputLength: 10000}
}

// SafetyResult is the combined outcome of all safety checks.
type SafetyResult struct {
	Passed   bool     `json:"passed"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	// Patterns lists every matched dangerous pattern.
	Patterns []string `json:"patterns,omitempty"`
}

// RunSafetyChecks runs every check against a proposed tool call and
// composes the results fail-closed. Both checks always run; when either
// fails the combined result carries every failure reason in Warnings. The
// function holds no shared state and is safe for concurrent threads.
func RunSafetyChecks(toolName, input string, policy SafetyPolicy) SafetyResult {
	lengthOK, lengthReason := checkInputLength(input, policy.MaxInputLength)
	patternsOK, patternReason, matched := checkDangerousPatterns(toolName, input, policy.DangerousPatterns)

	result := SafetyResult{Passed: lengthOK && patternsOK, Patterns: matched}
	var reasons []string
	if !lengthOK {
		reasons = append(reasons, lengthReason)
	}
	if !patternsOK {
		reasons = append(reasons, patternReason)
	}
	if len(reasons) > 0 {
		result.Reason = joinReasons(reasons)
		result.Warnings = reasons
	}
	return result
}

// checkInputLength fails on empty input or input longer than max.
func checkInputLength(input string, max int) (bool, string) {
	if strings.TrimSpace(input) == "" {
		return false, "tool input is empty"
	}
	if max > 0 && len(input) > max {
		return false, fmt.Sprintf("tool input length %d exceeds limit %d", len(input), max)
	}
	return true, ""
}

// checkDangerousPatterns does a case-insensitive substring match of each
// policy pattern against "toolName input". Every matched pattern is
// reported, not just the first.
func checkDangerousPatterns(toolName, input string, patterns []string) (bool, string, []string) {
	if len(patterns) == 0 {
		return true, "", nil
	}
	haystack := strings.ToLower(toolName + " " + input)
	var matched []string
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(pattern)) {
			matched = append(matched, pattern)
		}
	}
	if len(matched) == 0 {
		return true, "", nil
	}
	return false, "dangerous pattern(s) matched: " + strings.Join(matched, ", "), matched
}
