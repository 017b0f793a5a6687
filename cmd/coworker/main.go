// Coworker is a Slack-resident agent that watches configured channels,
// decides whether each message needs anything from it, and acts through
// a small set of tools. Anything that changes external state is shown
// to the user for confirmation before it runs.
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	coworker serve           Connect to Slack and start observing
//	coworker init [dir]      Initialize a working directory with defaults
//	coworker ask <message>   Run one message through the pipeline (for testing)
//	coworker tools           List the registered tools
//	coworker version         Print version and build information
//	coworker -o json version Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nugget/coworker/internal/action"
	"github.com/nugget/coworker/internal/buildinfo"
	"github.com/nugget/coworker/internal/config"
	"github.com/nugget/coworker/internal/dispatch"
	"github.com/nugget/coworker/internal/feedback"
	"github.com/nugget/coworker/internal/llm"
	"github.com/nugget/coworker/internal/prompts"
	"github.com/nugget/coworker/internal/slack"
	"github.com/nugget/coworker/internal/tools"
	"github.com/nugget/coworker/internal/tracker"
	"github.com/nugget/coworker/internal/window"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the coworker command. All OS-level
// dependencies are injected as parameters so tests can drive the full
// lifecycle. Arguments are parsed by hand; the flag package relies on
// package-level globals that interfere with parallel tests, and the
// argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: coworker ask <message>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "tools":
		return runTools(stdout, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Coworker - Slack channel agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: coworker [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Connect to Slack and start observing")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Run one message through the pipeline (for testing)")
	fmt.Fprintln(w, "  tools        List the registered tools")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// newLogger builds the process logger with trace-level support.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// buildRegistry assembles the tool registry from the configuration.
// The builtins are always present; tracker and feedback tools join
// when their sections are configured. The returned cleanup closes any
// resources the tools hold open.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*tools.Registry, func(), error) {
	list := []*tools.Tool{tools.NoAction(), tools.MessageUser()}
	cleanup := func() {}

	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		gh, err := tracker.NewClient(nil, cfg.GitHub.Token, "", cfg.GitHub.Owner, cfg.GitHub.Repo, logger)
		if err != nil {
			return nil, nil, err
		}
		createIssue := tracker.CreateIssueTool(gh)
		listLabels := tracker.ListLabelsTool(gh)
		list = append(list, &createIssue, &listLabels)
		logger.Info("issue tracker configured", "owner", cfg.GitHub.Owner, "repo", cfg.GitHub.Repo)
	} else {
		logger.Warn("issue tracker not configured, create_issue unavailable")
	}

	if cfg.Feedback.Path != "" {
		store, err := feedback.NewStore(cfg.Feedback.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open feedback store %s: %w", cfg.Feedback.Path, err)
		}
		cleanup = func() { store.Close() }
		logTool := feedback.LogTool(store)
		readTool := feedback.ReadTool(store)
		list = append(list, &logTool, &readTool)
		logger.Info("feedback store opened", "path", cfg.Feedback.Path)
	}

	registry, err := tools.NewRegistry(list)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return registry, cleanup, nil
}

// runTools prints the registered tools and their calling schemas.
func runTools(w io.Writer, configPath string) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		cfg = config.Default()
	}

	registry, cleanup, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, name := range registry.Names() {
		_, desc, _ := registry.Get(name)
		marker := " "
		if desc.Mutating {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-18s %s\n", marker, name, desc.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "* requires confirmation before running")
	return nil
}

// writerOutbound prints replies to a writer. Used by the ask
// subcommand, where there is no channel to post into.
type writerOutbound struct {
	w io.Writer
}

func (o writerOutbound) PostReply(_ context.Context, _, _, text string) error {
	_, err := fmt.Fprintln(o.w, text)
	return err
}

// runAsk handles the "coworker ask <message>" subcommand. It runs a
// single message through the model and dispatcher without connecting
// to Slack. Useful for smoke-testing prompts and tool schemas.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	registry, cleanup, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	model := llm.NewOpenAIClient(cfg.Model, logger)

	conversation := []window.Message{{
		Author: "cli",
		Role:   window.RoleUser,
		Text:   strings.Join(args, " "),
	}}

	decision, err := model.Complete(ctx, prompts.SystemPrompt("coworker"), registry.Schemas(), conversation)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	res, err := action.Resolve(decision, registry)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	dispatcher := dispatch.New(writerOutbound{w: stdout}, logger)
	return dispatcher.Dispatch(ctx, res, tools.RuntimeContext{Channel: "cli", UserID: "cli"})
}

// runServe handles the "coworker serve" subcommand. It is the primary
// operating mode: loads config, opens the tool backends, connects to
// Slack over Socket Mode, and routes message events through the
// decision pipeline until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting coworker",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("config %s: %w", cfgPath, err)
	}

	// Reconfigure the logger now that the desired level is known.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"model", cfg.Model.Name,
		"channels", len(cfg.Slack.Channels),
	)

	registry, cleanup, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := slack.NewClient("", cfg.Slack.BotToken, cfg.Slack.AppToken, logger)

	botUserID, botName, err := api.AuthTest(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	logger.Info("authenticated to Slack", "bot", botName, "user_id", botUserID)

	model := llm.NewOpenAIClient(cfg.Model, logger)
	if err := model.Ping(ctx); err != nil {
		logger.Warn("model backend not reachable at startup", "error", err)
	}

	socket := slack.NewSocketClient(api, logger)
	defer socket.Close()
	go socket.Run(ctx)

	bridge := slack.NewBridge(slack.BridgeConfig{
		Source:       socket,
		Assembler:    window.NewAssembler(api, logger),
		Model:        model,
		Registry:     registry,
		Dispatcher:   dispatch.New(api, logger),
		SystemPrompt: prompts.SystemPrompt(botName),
		BotUserID:    botUserID,
		Channels:     cfg.Slack.Channels,
		ContextLimit: cfg.Slack.ContextLimit,
		Logger:       logger,
	})

	// Blocks until ctx is cancelled or the socket closes the stream.
	bridge.Start(ctx)

	logger.Info("coworker stopped", "uptime", buildinfo.Uptime())
	return nil
}
