package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/taskd/internal/api"
	"github.com/mattjoyce/taskd/internal/config"
	"github.com/mattjoyce/taskd/internal/doctor"
	"github.com/mattjoyce/taskd/internal/events"
	"github.com/mattjoyce/taskd/internal/inspect"
	"github.com/mattjoyce/taskd/internal/journal"
	"github.com/mattjoyce/taskd/internal/lock"
	"github.com/mattjoyce/taskd/internal/log"
	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/stdio"
	"github.com/mattjoyce/taskd/internal/tui/watch"

	tea "github.com/charmbracelet/bubbletea"
)

const version = "0.1.0"

// Exit codes for 'taskd run'.
const (
	exitOK         = 0
	exitTaskFailed = 1
	exitUsage      = 2
)

const eventBufferSize = 256

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitUsage)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe(args))
	case "stdio":
		os.Exit(runStdio(args))
	case "run":
		os.Exit(runTask(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "journal":
		os.Exit(runJournalNoun(args))
	case "watch":
		os.Exit(runWatch(args))
	case "version":
		fmt.Printf("taskd version %s\n", version)
		os.Exit(exitOK)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(exitUsage)
	}
}

func printUsage() {
	fmt.Print(`taskd - file and command task execution engine

Usage:
  taskd <command> [flags]

Transports:
  serve             Serve tasks over HTTP
  stdio             Serve newline-delimited JSON tasks on stdin/stdout

One-shot:
  run [file|-]      Execute one task request and print the response

Config Commands:
  config check      Validate configuration and integrity
  config lock       Pin the configuration with a .checksums manifest

Journal Commands:
  journal show <id> Show journaled runs of a task

Monitoring:
  watch             Live terminal view of a running 'taskd serve'

General:
  version           Show version information
  help              Show this help message

Every command accepts --config PATH. Without it taskd looks at $TASKD_CONFIG,
~/.config/taskd/config.yaml, /etc/taskd/config.yaml and ./config.yaml, and
falls back to built-in defaults.
`)
}

// --- NOUN DISPATCHERS ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return exitUsage
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return exitOK
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return exitOK
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return exitOK
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return exitUsage
	}
}

func runJournalNoun(args []string) int {
	if len(args) < 1 {
		printJournalNounHelp(os.Stderr)
		return exitUsage
	}
	if isHelpToken(args[0]) {
		printJournalNounHelp(os.Stdout)
		return exitOK
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "show":
		if hasHelpFlag(actionArgs) {
			printJournalShowHelp()
			return exitOK
		}
		return runJournalShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown journal action: %s\n", action)
		return exitUsage
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printConfigNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: taskd config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock")
}

func printJournalNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: taskd journal <action> [flags]")
	fmt.Fprintln(w, "Actions: show")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: taskd config check [--config PATH] [--json] [--strict]")
	fmt.Println("Validate configuration syntax, settings, and integrity.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: taskd config lock [--config PATH] [--dry-run]")
	fmt.Println("Record the BLAKE3 hash of the config file in .checksums.")
}

func printJournalShowHelp() {
	fmt.Println("Usage: taskd journal show <task_id> [--config PATH] [--json]")
	fmt.Println("Show every journaled run of a task id.")
}

// splitPositional separates flags from positional arguments so positionals
// may appear before or after flags.
func splitPositional(args []string, valueFlags ...string) (positional, flags []string) {
	takesValue := make(map[string]bool, len(valueFlags))
	for _, f := range valueFlags {
		takesValue["-"+f] = true
		takesValue["--"+f] = true
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-":
			positional = append(positional, arg)
		case strings.HasPrefix(arg, "-"):
			flags = append(flags, arg)
			if takesValue[arg] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		default:
			positional = append(positional, arg)
		}
	}
	return positional, flags
}

// --- ACTION IMPLEMENTATIONS ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	listen := fs.String("listen", "", "Override api.listen")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}
	if err := cfg.RequireAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to serve: %v\n", err)
		return 1
	}
	if issues := doctor.ServeErrors(cfg); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "Refusing to serve: %s: %s\n", issue.Field, issue.Message)
		}
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("taskd starting", "version", version, "config", cfg.SourcePath, "transport", "http")

	if cfg.Journal.Enabled {
		pidLock, err := lock.AcquirePIDLock(pidLockPath(cfg))
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath(cfg), "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(eventBufferSize)
	eng, err := newEngine(ctx, cfg, hub)
	if err != nil {
		logger.Error("failed to start engine", "error", err)
		return 1
	}
	defer eng.Close()
	eng.startPruner(ctx, logger)

	var history api.TaskJournal
	if eng.journal != nil {
		history = eng.journal
	}
	apiServer := api.New(api.Config{
		Listen:         cfg.API.Listen,
		APIKey:         cfg.API.Auth.APIKey,
		HMACSecret:     cfg.API.Auth.HMACSecret,
		MaxTimeout:     cfg.API.MaxTimeout,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}, eng.dispatcher, history, hub, log.WithComponent("api"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	logger.Info("taskd running (press Ctrl+C to stop)", "listen", cfg.API.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("api server failed", "error", err)
		return 1
	}

	logger.Info("taskd stopped")
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	apiURL := fs.String("api-url", "", "taskd API URL (default: derived from api.listen)")
	apiKey := fs.String("api-key", os.Getenv("TASKD_API_KEY"), "API bearer token (default: $TASKD_API_KEY or api.auth.api_key)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	url, key := *apiURL, *apiKey
	if url == "" || key == "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		url, key = watchTarget(cfg, url, key)
	}

	p := tea.NewProgram(watch.New(watch.NewClient(url, key)))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return exitOK
}

// watchTarget fills an unset URL or key from cfg. A wildcard listen host is
// reached over loopback.
func watchTarget(cfg *config.Config, url, key string) (string, string) {
	if url == "" {
		host, port, err := net.SplitHostPort(cfg.API.Listen)
		if err != nil {
			host, port = "127.0.0.1", "8080"
		}
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		url = "http://" + net.JoinHostPort(host, port)
	}
	if key == "" {
		key = cfg.API.Auth.APIKey
	}
	return url, key
}

func runStdio(args []string) int {
	fs := flag.NewFlagSet("stdio", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// stdout carries responses.
	log.SetupWriter(cfg.Service.LogLevel, os.Stderr)
	logger := log.WithComponent("main")
	logger.Info("taskd starting", "version", version, "config", cfg.SourcePath, "transport", "stdio")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		logger.Error("failed to start engine", "error", err)
		return 1
	}
	defer eng.Close()
	eng.startPruner(ctx, logger)

	server := stdio.NewServer(eng.dispatcher, cfg.Executor.MaxConcurrent, log.WithComponent("stdio"))
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("stdio transport failed", "error", err)
		return 1
	}

	logger.Info("taskd stopped")
	return 0
}

func runTask(args []string) int {
	positional, flagArgs := splitPositional(args, "config", "timeout")

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	timeout := fs.Duration("timeout", 0, "Deadline for the task (0 = none)")
	if err := fs.Parse(flagArgs); err != nil {
		return exitUsage
	}
	if len(positional) > 1 || *timeout < 0 {
		fmt.Fprintln(os.Stderr, "Usage: taskd run [--config PATH] [--timeout DURATION] [file|-]")
		return exitUsage
	}

	source := "-"
	if len(positional) == 1 {
		source = positional[0]
	}
	raw, err := readRequest(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read request: %v\n", err)
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitUsage
	}
	log.SetupWriter(cfg.Service.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start engine: %v\n", err)
		return 1
	}
	defer eng.Close()

	resp := <-eng.dispatcher.Submit(ctx, raw)
	if err := protocol.EncodeResponse(os.Stdout, resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write response: %v\n", err)
		return 1
	}
	if !resp.Success {
		return exitTaskFailed
	}
	return exitOK
}

func readRequest(source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(source)
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path := *configPath
	if path == "" {
		path = config.DiscoverConfigPath()
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No configuration found; pass --config")
		return 1
	}

	report, err := config.Check(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(report).Validate()
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Printf("Config: %s\n", report.ConfigPath)
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if *strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Compute the hash without writing .checksums")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path := *configPath
	if path == "" {
		path = config.DiscoverConfigPath()
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No configuration found; pass --config")
		return 1
	}

	report, err := config.Lock(path, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	fmt.Printf("HASH %s: %s\n", report.ConfigPath, report.Hash)
	if report.Written {
		fmt.Printf("WROTE .checksums: %s\n", report.ChecksumPath)
	} else {
		fmt.Printf("DRY-RUN .checksums: %s (not written)\n", report.ChecksumPath)
	}
	return 0
}

func runJournalShow(args []string) int {
	positional, flagArgs := splitPositional(args, "config")

	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output report in JSON")
	if err := fs.Parse(flagArgs); err != nil {
		return exitUsage
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskd journal show <task_id> [--config PATH] [--json]")
		return exitUsage
	}
	taskID := positional[0]

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if !cfg.Journal.Enabled {
		fmt.Fprintln(os.Stderr, "The journal is disabled (journal.enabled: false)")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := journal.Open(ctx, cfg.Journal.Path, log.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer store.Close()

	var report string
	if *jsonOut {
		report, err = inspect.BuildJSONReport(ctx, store, taskID)
	} else {
		report, err = inspect.BuildReport(ctx, store, taskID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Journal lookup failed: %v\n", err)
		return 1
	}

	fmt.Print(report)
	if *jsonOut {
		fmt.Println()
	}
	return 0
}
