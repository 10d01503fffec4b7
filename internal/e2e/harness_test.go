package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/taskd/internal/command"
	"github.com/mattjoyce/taskd/internal/dispatch"
	"github.com/mattjoyce/taskd/internal/events"
	"github.com/mattjoyce/taskd/internal/fileops"
	"github.com/mattjoyce/taskd/internal/journal"
	"github.com/mattjoyce/taskd/internal/log"
)

// stack is a fully wired engine rooted in a temp directory.
type stack struct {
	workDir    string
	dispatcher *dispatch.Dispatcher
	journal    *journal.Store
	hub        *events.Hub
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log.Setup("ERROR")

	tmpDir := t.TempDir()
	workDir := filepath.Join(tmpDir, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		t.Fatalf("failed to create workdir: %v", err)
	}

	store, err := journal.Open(context.Background(), filepath.Join(tmpDir, "journal.db"), log.Discard())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hub := events.NewHub(64)
	runner := command.NewRunner(command.Config{
		WorkDir: workDir,
		BaseEnv: os.Environ(),
	}, log.Discard())

	d := dispatch.New(
		fileops.New(workDir, log.Discard()),
		runner,
		dispatch.WithObserver(store),
		dispatch.WithObserver(hub),
		dispatch.WithLogger(log.Discard()),
	)
	return &stack{workDir: workDir, dispatcher: d, journal: store, hub: hub}
}
