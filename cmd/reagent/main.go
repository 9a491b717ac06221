// Command reagent runs the reason-then-act agent loop against a prompt,
// wiring configuration, persistence, tools, and a model provider together.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/reagentlabs/reagent/agentloop"
	"github.com/reagentlabs/reagent/checkpoint"
	"github.com/reagentlabs/reagent/config"
	"github.com/reagentlabs/reagent/llmclient"
	"github.com/reagentlabs/reagent/tools"
	"github.com/reagentlabs/reagent/workspace"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "reagent:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("reagent", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to config file")
	threadID := fs.String("thread", "default", "conversation thread identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("usage: reagent [-config path] [-thread id] <prompt>")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	logger := newLogger(os.Stderr, level, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, cleanup, err := buildController(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	state, runErr := ctrl.Run(ctx, *threadID, []agentloop.Message{
		agentloop.NewMessage(agentloop.RoleUser, prompt),
	})
	if runErr != nil {
		logger.Error("run ended with error", "thread", *threadID, "error", runErr)
	}

	if len(state.Messages) > 0 {
		fmt.Fprintln(stdout, state.Messages[len(state.Messages)-1].Content)
	}
	return runErr
}

// loadConfig finds and loads the config, falling back to defaults when no
// file exists and none was requested explicitly.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildController wires the controller from config. The returned cleanup
// releases the checkpoint store and provider resources.
func buildController(cfg *config.Config, logger *slog.Logger) (*agentloop.Controller, func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Persistence is optional; a missing path means in-memory only.
	var store checkpoint.Store
	if cfg.Memory.Path != "" {
		sqlStore, err := checkpoint.NewSQLiteStore(cfg.Memory.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		cleanups = append(cleanups, func() { sqlStore.Close() })
		store = sqlStore
	}

	adapter, err := llmclient.NewGollmAdapter(cfg.Model.Provider, cfg.Model.APIKey,
		llmclient.WithModel(cfg.Model.Name))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create model provider: %w", err)
	}
	client := llmclient.NewClient(llmclient.WithProvider(cfg.Model.Provider, adapter))
	cleanups = append(cleanups, func() { client.Close() })

	registry := agentloop.NewToolRegistry()
	tools.RegisterBuiltins(registry)
	if cfg.ShellExec.Enabled {
		registry.Register(tools.NewShell(shellPolicy(cfg.ShellExec)))
	}

	var applier agentloop.FileApplier
	if cfg.Workspace.Path != "" {
		ws, err := workspace.New(cfg.Workspace.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open workspace: %w", err)
		}
		applier = ws
	}

	codec, err := agentloop.CodecByName(cfg.Loop.Codec)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	loopCfg := agentloop.DefaultConfig()
	loopCfg.MaxIterations = cfg.Loop.MaxIterations
	loopCfg.Model = cfg.Model.Name
	loopCfg.Safety = agentloop.SafetyPolicy{
		MaxInputLength:      cfg.Safety.MaxInputLength,
		DangerousPatterns:   cfg.Safety.DangerousPatterns,
		RequireConfirmation: cfg.Safety.RequireConfirmation,
		RequireFeedback:     cfg.Safety.RequireFeedback,
	}
	loopCfg.Interaction = agentloop.InteractionPolicy{
		Timeout:         cfg.InputTimeout(),
		SentinelEndsRun: cfg.Interaction.SentinelEndsRun,
	}
	loopCfg.PruneMaxAge = time.Duration(cfg.Memory.PruneMaxAgeSec) * time.Second
	loopCfg.PruneMaxEntries = cfg.Memory.PruneMaxEntries
	loopCfg.EnableLoopDetection = cfg.Loop.LoopDetection
	loopCfg.LoopDetectionWindow = cfg.Loop.LoopDetectionWindow

	coord := agentloop.NewCoordinator(
		agentloop.NewReaderInput(os.Stdin),
		loopCfg.Interaction,
		logger,
	)

	ctrl := agentloop.NewController(
		llmclient.NewLoopClient(client),
		registry,
		&agentloop.Options{
			Config:      &loopCfg,
			Memory:      agentloop.NewMemoryStore(store, logger),
			Coordinator: coord,
			Applier:     applier,
			Codec:       codec,
			Logger:      logger,
		},
	)
	return ctrl, cleanup, nil
}

// shellPolicy maps shell config onto the tool policy, filling defaults for
// zero values.
func shellPolicy(cfg config.ShellExecConfig) tools.ShellPolicy {
	policy := tools.DefaultShellPolicy()
	policy.Enabled = cfg.Enabled
	policy.WorkingDir = cfg.WorkingDir
	if len(cfg.DeniedPatterns) > 0 {
		policy.DeniedCmds = cfg.DeniedPatterns
	}
	policy.AllowedCmds = cfg.AllowedPrefixes
	if cfg.DefaultTimeoutSec > 0 {
		policy.DefaultTimeout = time.Duration(cfg.DefaultTimeoutSec) * time.Second
	}
	return policy
}

// newLogger creates a structured logger that writes to w at the given level
// and format. Format must be "text" or "json"; any other value defaults to
// text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
