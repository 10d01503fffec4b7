package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/task"
)

const (
	// DefaultGracePeriod is the wait between SIGTERM and SIGKILL.
	DefaultGracePeriod = 5 * time.Second

	// DefaultMaxStderrBytes caps how much stderr is quoted in an error message.
	DefaultMaxStderrBytes = 64 * 1024
)

// Config is the process-wide, read-only command configuration.
type Config struct {
	// WorkDir is used when a request has no path. Empty means the engine's
	// own working directory.
	WorkDir string
	// BaseEnv is the environment every child inherits before the request
	// overlay, as KEY=VALUE pairs.
	BaseEnv []string
	// DefaultTimeout bounds every command; zero means only the caller's
	// deadline applies.
	DefaultTimeout time.Duration
	GracePeriod    time.Duration
	MaxStderrBytes int
	// AllowedCommands lists the commands a request may run, either as the
	// name it is given by or as an absolute executable path. Empty allows
	// any command.
	AllowedCommands []string
}

// Result describes a child that was spawned.
type Result struct {
	PID      int
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Runner executes command/run operations. It holds no mutable state and is
// safe for concurrent use.
type Runner struct {
	cfg     Config
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewRunner creates a Runner, filling zero config values with defaults.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.MaxStderrBytes <= 0 {
		cfg.MaxStderrBytes = DefaultMaxStderrBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{cfg: cfg, logger: logger}
	if len(cfg.AllowedCommands) > 0 {
		r.allowed = make(map[string]struct{}, len(cfg.AllowedCommands))
		for _, name := range cfg.AllowedCommands {
			r.allowed[name] = struct{}{}
		}
	}
	return r
}

// Run spawns op and waits for it. The returned Result is non-nil whenever a
// child was started, including failed and terminated runs.
func (r *Runner) Run(ctx context.Context, op task.CommandRun) (*Result, error) {
	dir, err := r.workingDir(op.Dir)
	if err != nil {
		return nil, err
	}

	env := mergeEnv(r.cfg.BaseEnv, op.Environment)
	path, err := resolveExecutable(op.Command, dir, lookupEnv(env, "PATH"))
	if !r.permitted(op.Command, path) {
		r.logger.Warn("command not in allowed_commands", "command", op.Command)
		return nil, protocol.Errorf(protocol.TypePermission, "command %q is not in the allowed command list", op.Command)
	}
	if err != nil {
		return nil, err
	}

	if r.cfg.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.DefaultTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, interrupted(op.Command, err, 0)
	}

	// exec.CommandContext is deliberately not used: termination is
	// escalated by the process state machine.
	cmd := exec.Command(path)
	cmd.Args = append([]string{op.Command}, op.Arguments...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.WaitDelay = r.cfg.GracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	logger := r.logger.With("command", op.Command, "dir", dir)
	proc := newProcess(cmd, r.cfg.GracePeriod, logger)

	logger.Debug("spawning command", "path", path, "args", len(op.Arguments))
	if err := proc.start(); err != nil {
		return nil, classifyStart(op.Command, err)
	}

	waitErr, ctxErr := proc.wait(ctx)

	res := &Result{
		PID:      proc.pid(),
		ExitCode: -1,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(proc.started),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr != nil {
		return res, interrupted(op.Command, ctxErr, res.Duration)
	}
	return res, r.exitError(op.Command, cmd, waitErr, res)
}

// permitted matches command, or the executable it resolved to, against the
// allow list. An unresolved command only passes by name.
func (r *Runner) permitted(command, path string) bool {
	if r.allowed == nil {
		return true
	}
	if _, ok := r.allowed[command]; ok {
		return true
	}
	if path == "" {
		return false
	}
	_, ok := r.allowed[path]
	return ok
}

func (r *Runner) exitError(command string, cmd *exec.Cmd, waitErr error, res *Result) error {
	if waitErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		// ErrWaitDelay means the child exited cleanly but something it
		// spawned kept the output pipes open.
		if errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
			return nil
		}
		return protocol.Wrap(protocol.TypeIO, waitErr, "wait for %q", command)
	}

	msg := fmt.Sprintf("command %q exited with code %d", command, res.ExitCode)
	if sig, ok := exitSignal(exitErr.ProcessState); ok {
		msg = fmt.Sprintf("command %q was terminated by signal %s", command, sig)
	}
	if tail := r.stderrTail(res.Stderr); tail != "" {
		msg += ": " + tail
	}
	return &protocol.Error{Type: protocol.TypeCommandFailed, Message: msg}
}

// stderrTail returns the last MaxStderrBytes of stderr, trimmed.
func (r *Runner) stderrTail(stderr []byte) string {
	if len(stderr) > r.cfg.MaxStderrBytes {
		stderr = stderr[len(stderr)-r.cfg.MaxStderrBytes:]
	}
	return strings.TrimSpace(string(stderr))
}

func (r *Runner) workingDir(dir string) (string, error) {
	base := r.cfg.WorkDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", protocol.Wrap(protocol.TypeInternal, err, "determine working directory")
		}
		base = wd
	}
	if dir == "" {
		return base, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", protocol.Errorf(protocol.TypeNotFound, "working directory %s does not exist", dir)
	case errors.Is(err, fs.ErrPermission):
		return "", protocol.Errorf(protocol.TypePermission, "working directory %s is not accessible", dir)
	case err != nil:
		return "", protocol.Wrap(protocol.TypeIO, err, "stat working directory")
	case !info.IsDir():
		return "", protocol.Errorf(protocol.TypeNotFound, "working directory %s is not a directory", dir)
	}
	return dir, nil
}

func interrupted(command string, err error, elapsed time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return protocol.Errorf(protocol.TypeTimeout, "command %q timed out after %s", command, elapsed.Round(time.Millisecond))
	}
	return protocol.Errorf(protocol.TypeCancelled, "command %q was cancelled", command)
}

func classifyStart(command string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return protocol.Wrap(protocol.TypeNotFound, unwrapPath(err), "start %q", command)
	case errors.Is(err, fs.ErrPermission), isExecFormatError(err):
		return protocol.Wrap(protocol.TypePermission, unwrapPath(err), "start %q", command)
	default:
		return protocol.Wrap(protocol.TypeIO, err, "start %q", command)
	}
}

func unwrapPath(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}
