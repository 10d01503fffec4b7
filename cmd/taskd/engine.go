package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mattjoyce/taskd/internal/command"
	"github.com/mattjoyce/taskd/internal/config"
	"github.com/mattjoyce/taskd/internal/dispatch"
	"github.com/mattjoyce/taskd/internal/events"
	"github.com/mattjoyce/taskd/internal/fileops"
	"github.com/mattjoyce/taskd/internal/journal"
	"github.com/mattjoyce/taskd/internal/log"
)

const pruneInterval = time.Hour

// engine is the dispatcher plus the optional collaborators observing it.
type engine struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	journal    *journal.Store
	hub        *events.Hub
}

// loadConfig loads configPath, falling back to discovery and then to
// Defaults() when no config file exists anywhere.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.DiscoverConfigPath()
	}
	if configPath == "" {
		return config.Defaults(), nil
	}
	return config.Load(configPath)
}

// newEngine wires handlers, journal and hub into a dispatcher. hub may be nil.
func newEngine(ctx context.Context, cfg *config.Config, hub *events.Hub) (*engine, error) {
	ex := cfg.Executor

	files := fileops.New(ex.WorkDir, log.WithComponent("fileops"))
	runner := command.NewRunner(command.Config{
		WorkDir:         ex.WorkDir,
		BaseEnv:         cfg.ChildEnvironment(),
		DefaultTimeout:  ex.DefaultTimeout,
		GracePeriod:     ex.GracePeriod,
		MaxStderrBytes:  ex.MaxStderrBytes,
		AllowedCommands: ex.AllowedCommands,
	}, log.WithComponent("command"))

	e := &engine{cfg: cfg, hub: hub}
	opts := []dispatch.Option{dispatch.WithLogger(log.WithComponent("dispatch"))}

	if cfg.Journal.Enabled {
		store, err := journal.Open(ctx, cfg.Journal.Path, log.WithComponent("journal"))
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		e.journal = store
		opts = append(opts, dispatch.WithObserver(store))
	}
	if hub != nil {
		opts = append(opts, dispatch.WithObserver(hub))
	}

	e.dispatcher = dispatch.New(files, runner, opts...)
	return e, nil
}

// startPruner prunes the journal in the background until ctx is done.
func (e *engine) startPruner(ctx context.Context, logger *slog.Logger) {
	if e.journal == nil || e.cfg.Journal.Retention <= 0 {
		return
	}
	if n, err := e.journal.Prune(ctx, e.cfg.Journal.Retention); err != nil {
		logger.Warn("initial journal prune failed", "error", err)
	} else if n > 0 {
		logger.Info("journal pruned", "rows", n)
	}
	go e.journal.RunPruner(ctx, e.cfg.Journal.Retention, pruneInterval)
}

func (e *engine) Close() error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Close()
}

// pidLockPath places the instance lock next to the journal database.
func pidLockPath(cfg *config.Config) string {
	dbPath := cfg.Journal.Path
	dbBase := filepath.Base(dbPath)
	ext := filepath.Ext(dbBase)
	return filepath.Join(filepath.Dir(dbPath), dbBase[:len(dbBase)-len(ext)]+".pid")
}
