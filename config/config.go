// Package config handles reagent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./reagent.yaml, ~/.config/reagent/config.yaml, /etc/reagent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"reagent.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reagent", "config.yaml"))
	}

	paths = append(paths, "/etc/reagent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all reagent configuration.
type Config struct {
	Model       ModelConfig       `yaml:"model"`
	Loop        LoopConfig        `yaml:"loop"`
	Safety      SafetyConfig      `yaml:"safety"`
	Interaction InteractionConfig `yaml:"interaction"`
	Memory      MemoryConfig      `yaml:"memory"`
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	ShellExec   ShellExecConfig   `yaml:"shell_exec"`
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"` // "text" or "json"
}

// ModelConfig defines the inference backend.
type ModelConfig struct {
	Provider    string   `yaml:"provider"` // openai, anthropic
	Name        string   `yaml:"name"`
	APIKey      string   `yaml:"api_key"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// LoopConfig tunes the controller.
type LoopConfig struct {
	// MaxIterations bounds consuming (tool) iterations per run.
	MaxIterations int `yaml:"max_iterations"`
	// Codec selects the response envelope format: "json" or "react".
	Codec string `yaml:"codec"`
	// LoopDetection enables repeated-tool-call detection.
	LoopDetection bool `yaml:"loop_detection"`
	// LoopDetectionWindow is the number of recent calls inspected.
	LoopDetectionWindow int `yaml:"loop_detection_window"`
}

// SafetyConfig defines the pre-execution gate.
type SafetyConfig struct {
	MaxInputLength      int      `yaml:"max_input_length"`
	DangerousPatterns   []string `yaml:"dangerous_patterns"`
	RequireConfirmation bool     `yaml:"require_confirmation"`
	RequireFeedback     bool     `yaml:"require_feedback"`
}

// InteractionConfig defines human-in-the-loop behavior.
type InteractionConfig struct {
	// TimeoutSec bounds each wait for human input (default 60).
	TimeoutSec int `yaml:"timeout_sec"`
	// SentinelEndsRun ends the run when feedback matches the report
	// sentinel instead of only recording it.
	SentinelEndsRun bool `yaml:"sentinel_ends_run"`
}

// MemoryConfig defines conversation persistence.
type MemoryConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`
	// PruneMaxAgeSec drops messages older than this on load. 0 = no age limit.
	PruneMaxAgeSec int `yaml:"prune_max_age_sec"`
	// PruneMaxEntries caps the loaded history length. 0 = no cap.
	PruneMaxEntries int `yaml:"prune_max_entries"`
}

// WorkspaceConfig defines the agent's root for file operations.
type WorkspaceConfig struct {
	// Path is the root directory for edit, compose, and sync actions.
	// If empty, file actions are disabled.
	Path string `yaml:"path"`
}

// ShellExecConfig defines shell execution capabilities.
type ShellExecConfig struct {
	// Enabled allows shell command execution. Disabled by default for safety.
	Enabled bool `yaml:"enabled"`
	// WorkingDir sets the default working directory for commands.
	WorkingDir string `yaml:"working_dir"`
	// DeniedPatterns are command patterns to block (e.g., "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
	// AllowedPrefixes limits commands to those starting with these prefixes.
	// Empty means all commands are allowed (subject to denied patterns).
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
	// DefaultTimeoutSec is the default timeout in seconds (default 30).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{Provider: "openai"},
		Loop: LoopConfig{
			MaxIterations:       25,
			Codec:               "json",
			LoopDetection:       true,
			LoopDetectionWindow: 6,
		},
		Safety: SafetyConfig{
			MaxInputLength:      10000,
			RequireConfirmation: true,
		},
		Interaction: InteractionConfig{TimeoutSec: 60},
		Memory:      MemoryConfig{PruneMaxEntries: 200},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Loop.MaxIterations <= 0 {
		return fmt.Errorf("loop.max_iterations must be positive, got %d", c.Loop.MaxIterations)
	}
	switch c.Loop.Codec {
	case "", "json", "react":
	default:
		return fmt.Errorf("loop.codec must be \"json\" or \"react\", got %q", c.Loop.Codec)
	}
	if c.Safety.MaxInputLength <= 0 {
		return fmt.Errorf("safety.max_input_length must be positive, got %d", c.Safety.MaxInputLength)
	}
	if c.Interaction.TimeoutSec < 0 {
		return fmt.Errorf("interaction.timeout_sec must not be negative, got %d", c.Interaction.TimeoutSec)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// InputTimeout returns the interaction timeout as a duration.
func (c *Config) InputTimeout() time.Duration {
	if c.Interaction.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Interaction.TimeoutSec) * time.Second
}
