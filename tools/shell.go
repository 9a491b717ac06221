package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellPolicy governs what the shell tool may run.
type ShellPolicy struct {
	Enabled        bool
	WorkingDir     string
	AllowedCmds    []string // Prefix allowlist. Empty = allow all (when enabled).
	DeniedCmds     []string // Substring patterns to block.
	DefaultTimeout time.Duration
	MaxOutputBytes int
}

// DefaultShellPolicy returns safe defaults. Execution is disabled until a
// caller opts in.
func DefaultShellPolicy() ShellPolicy {
	return ShellPolicy{
		Enabled:     false,
		AllowedCmds: []string{},
		DeniedCmds: []string{
			"rm -rf /",
			"rm -rf /*",
			"mkfs",
			"dd if=",
			"> /dev/sd",
			"chmod -R 777 /",
			":(){ :|:& };:", // Fork bomb
		},
		DefaultTimeout: 30 * time.Second,
		MaxOutputBytes: 100 * 1024,
	}
}

// Shell runs commands through sh -c under the policy. It implements the
// agentloop.Tool contract; input is {"command": <string>, "timeout": <seconds>}.
type Shell struct {
	policy ShellPolicy
}

// NewShell creates a Shell with the given policy, filling zero fields from
// defaults.
func NewShell(policy ShellPolicy) *Shell {
	if policy.DefaultTimeout == 0 {
		policy.DefaultTimeout = 30 * time.Second
	}
	if policy.MaxOutputBytes == 0 {
		policy.MaxOutputBytes = 100 * 1024
	}
	return &Shell{policy: policy}
}

// Name returns "shell".
func (*Shell) Name() string { return "shell" }

// Description returns the tool description.
func (*Shell) Description() string {
	return `Run a shell command. Input: {"command": <string>, "timeout": <seconds, optional>}.`
}

type shellInput struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

type shellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// Invoke checks the command against the policy and executes it. Policy
// violations and timeouts are returned as errors so the loop reports them
// as tool failures.
func (s *Shell) Invoke(ctx context.Context, input string) (string, error) {
	if !s.policy.Enabled {
		return "", fmt.Errorf("shell execution is disabled")
	}

	var in shellInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid shell input: %w", err)
	}
	if strings.TrimSpace(in.Command) == "" {
		return "", fmt.Errorf("shell input has no command")
	}

	if err := s.checkPolicy(in.Command); err != nil {
		return "", err
	}

	timeout := s.policy.DefaultTimeout
	if in.Timeout > 0 {
		timeout = time.Duration(in.Timeout) * time.Second
	}
	if timeout > 5*time.Minute {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", in.Command)
	if s.policy.WorkingDir != "" {
		cmd.Dir = s.policy.WorkingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := shellResult{
		Stdout: truncateOutput(stdout.String(), s.policy.MaxOutputBytes),
		Stderr: truncateOutput(stderr.String(), s.policy.MaxOutputBytes),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return "", fmt.Errorf("command timed out after %s", timeout)
	case runErr != nil:
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return "", fmt.Errorf("run command: %w", runErr)
		}
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode shell result: %w", err)
	}
	return string(out), nil
}

// checkPolicy rejects denied patterns first, then enforces the prefix
// allowlist when one is configured.
func (s *Shell) checkPolicy(command string) error {
	cmdLower := strings.ToLower(command)
	for _, denied := range s.policy.DeniedCmds {
		if strings.Contains(cmdLower, strings.ToLower(denied)) {
			return fmt.Errorf("command blocked by security policy: matches denied pattern %q", denied)
		}
	}

	if len(s.policy.AllowedCmds) > 0 {
		for _, prefix := range s.policy.AllowedCmds {
			if strings.HasPrefix(command, prefix) {
				return nil
			}
		}
		return fmt.Errorf("command not in allowlist")
	}
	return nil
}

// truncateOutput truncates output to maxBytes, adding a note if truncated.
func truncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "\n\n[... output truncated ...]"
}
