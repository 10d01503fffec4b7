package command

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// State is a lifecycle stage of a spawned child process.
type State string

const (
	StateCreated     State = "created"
	StateRunning     State = "running"
	StateTerminating State = "terminating"
	StateKilled      State = "killed"
	StateExited      State = "exited"
)

// validTransitions lists the states reachable from each state.
var validTransitions = map[State][]State{
	StateCreated:     {StateRunning},
	StateRunning:     {StateExited, StateTerminating},
	StateTerminating: {StateExited, StateKilled},
	StateKilled:      {StateExited},
}

// process owns one child from spawn to reap. Only the goroutine running
// start/wait drives transitions; the mutex protects readers of State.
type process struct {
	cmd    *exec.Cmd
	grace  time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	state State

	done    chan error
	started time.Time
}

func newProcess(cmd *exec.Cmd, grace time.Duration, logger *slog.Logger) *process {
	return &process{
		cmd:    cmd,
		grace:  grace,
		logger: logger,
		state:  StateCreated,
		done:   make(chan error, 1),
	}
}

// State returns the current lifecycle stage.
func (p *process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *process) transition(to State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, allowed := range validTransitions[p.state] {
		if allowed == to {
			p.logger.Debug("process state", "from", p.state, "to", to)
			p.state = to
			return
		}
	}
	panic(fmt.Sprintf("command: invalid process transition %s -> %s", p.state, to))
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) start() error {
	if err := p.cmd.Start(); err != nil {
		return err
	}
	p.started = time.Now()
	p.transition(StateRunning)

	go func() {
		p.done <- p.cmd.Wait()
	}()
	return nil
}

// wait blocks until the child exits or ctx is done. In the second case the
// child is terminated and reaped before wait returns, and ctxErr is set.
func (p *process) wait(ctx context.Context) (waitErr, ctxErr error) {
	select {
	case err := <-p.done:
		p.transition(StateExited)
		return err, nil
	case <-ctx.Done():
		return p.terminate(), ctx.Err()
	}
}

// terminate sends SIGTERM to the process group, escalates to SIGKILL after
// the grace period and waits for the child to be reaped.
func (p *process) terminate() error {
	p.transition(StateTerminating)
	p.logger.Warn("terminating command", "pid", p.pid(), "grace", p.grace)

	if err := signalGroup(p.cmd, sigTerm); err != nil {
		p.logger.Debug("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(p.grace)
	defer grace.Stop()

	select {
	case err := <-p.done:
		p.logger.Info("command exited after SIGTERM", "pid", p.pid())
		p.transition(StateExited)
		return err
	case <-grace.C:
	}

	p.logger.Warn("command did not exit after SIGTERM, sending SIGKILL", "pid", p.pid())
	p.transition(StateKilled)
	if err := signalGroup(p.cmd, sigKill); err != nil {
		p.logger.Error("failed to send SIGKILL", "error", err)
	}
	err := <-p.done
	p.transition(StateExited)
	return err
}
