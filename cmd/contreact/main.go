// Contreact drives an autonomous, task-free agent through repeated
// think-act-reflect cycles against a local Ollama backend.
//
// Usage:
//
//	contreact init [dir]                  Set up a working directory
//	contreact run -config config.yaml     Execute an experimental run
//	contreact run -config c.yaml -resume  Resume an interrupted run
//	contreact models -config config.yaml  List models on the backend
//	contreact version                     Print version information
//
// Configuration is a single YAML file; see config.Config for the schema.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nugget/contreact/internal/agent"
	"github.com/nugget/contreact/internal/buildinfo"
	"github.com/nugget/contreact/internal/checkpoint"
	"github.com/nugget/contreact/internal/config"
	"github.com/nugget/contreact/internal/llm"
	"github.com/nugget/contreact/internal/memory"
	"github.com/nugget/contreact/internal/operator"
	"github.com/nugget/contreact/internal/runlog"
	"github.com/nugget/contreact/internal/tools"
)

// main constructs the OS-level environment and delegates to run so the
// full lifecycle can be driven from tests. Fatal errors produce a single
// diagnostic on stderr and a non-zero exit.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package's package-level globals make concurrent test invocations
// impossible, and the argument surface here is tiny.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var resume bool
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-resume":
			resume = true
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown argument: %s (try -help)", args[i])
		case command == "":
			command = args[i]
		default:
			cmdArgs = append(cmdArgs, args[i])
		}
	}

	switch command {
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "run":
		return runExperiment(ctx, stdout, stderr, configPath, resume)
	case "models":
		return listModels(ctx, stdout, configPath)
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s (try -help)", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, `contreact - autonomous agent cycle runner

Usage:
  contreact init [dir]                     Set up a working directory
  contreact run -config <file> [-resume]   Execute an experimental run
  contreact models -config <file>          List models on the backend
  contreact version                        Print version information`)
	return nil
}

// runExperiment wires the full stack and executes the run. Everything
// that can fail before the first cycle — config validation, backend
// reachability, model availability, store creation — fails here, fatally.
func runExperiment(ctx context.Context, stdout, stderr io.Writer, configPath string, resume bool) error {
	if configPath == "" {
		return fmt.Errorf("run requires -config <file>")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))

	logger.Info("starting", "build", buildinfo.String(), "config", configPath)

	client := llm.New(cfg.Ollama.URL)
	if err := client.VerifyModel(ctx, cfg.Model); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store, err := memory.NewStore(filepath.Join(cfg.DataDir, "memory.db"), cfg.RunID)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer store.Close()

	checkpoints, err := checkpoint.NewStore(filepath.Join(cfg.DataDir, "checkpoints.db"))
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer checkpoints.Close()

	eventLog, err := runlog.New(cfg.LogDir, cfg.RunID)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer eventLog.Close()

	channel := operator.Select(ctx, cfg, logger)
	defer channel.Close(context.Background())

	registry := tools.NewRegistry(logger)
	tools.RegisterMemoryTools(registry, store)
	tools.RegisterOperatorTool(registry, channel)

	embedder := llm.NewEmbedder(cfg.Embeddings.URL, cfg.Embeddings.Model)

	orch := agent.New(cfg, client, embedder, registry, eventLog, checkpoints, logger)

	fmt.Fprintf(stdout, "Starting experiment: %s\n", cfg.RunID)
	fmt.Fprintf(stdout, "Model: %s\n", cfg.Model)
	fmt.Fprintf(stdout, "Total cycles: %d\n\n", cfg.CycleCount)

	st, runErr := orch.Run(ctx, resume)
	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", cfg.RunID, runErr)
	}

	fmt.Fprintf(stdout, "\nExperiment %s completed\n", st.RunID)
	fmt.Fprintf(stdout, "Cycles executed: %d\n", len(st.ReflectionHistory))
	fmt.Fprintf(stdout, "Log file: %s\n", eventLog.FilePath())
	return nil
}

// listModels prints the model tags available on the configured backend.
func listModels(ctx context.Context, stdout io.Writer, configPath string) error {
	url := "http://localhost:11434"
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		url = cfg.Ollama.URL
	}

	models, err := llm.New(url).ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models from %s: %w", url, err)
	}

	for _, m := range models {
		fmt.Fprintln(stdout, m)
	}
	return nil
}
