package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrDuplicateID is returned by Begin when the id is already in flight.
var ErrDuplicateID = errors.New("task id is already in flight")

// Inflight maps request ids to their cancel functions so a caller can
// withdraw a task that is still running.
type Inflight struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewInflight creates an empty registry.
func NewInflight() *Inflight {
	return &Inflight{tasks: make(map[string]context.CancelFunc)}
}

// Begin derives a cancellable context for id. The returned done func must be
// called when the task finishes. Requests without an id run unregistered.
func (r *Inflight) Begin(ctx context.Context, id string) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	if id == "" {
		return ctx, cancel, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; ok {
		cancel()
		return nil, nil, ErrDuplicateID
	}
	r.tasks[id] = cancel

	done := func() {
		r.mu.Lock()
		delete(r.tasks, id)
		r.mu.Unlock()
		cancel()
	}
	return ctx, done, nil
}

// Cancel cancels the task registered under id. It reports whether one was found.
func (r *Inflight) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.tasks[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Len returns the number of registered tasks.
func (r *Inflight) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
