package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mattjoyce/taskd/internal/log"
	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/task"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver adds an observer of lifecycle transitions.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher validates requests and routes them to handlers. It is safe for
// concurrent use; requests share nothing but the handlers.
type Dispatcher struct {
	files     FileHandler
	commands  CommandHandler
	observers []Observer
	inflight  *Inflight
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Dispatcher.
func New(files FileHandler, commands CommandHandler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		files:    files,
		commands: commands,
		inflight: NewInflight(),
		logger:   log.WithComponent("dispatch"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch decodes raw as a TaskRequest and executes it. It always returns a
// response whose id/action echo whatever the payload carried.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) *protocol.TaskResponse {
	id, action := protocol.ReadHeader(raw)
	tr := d.begin(id, action)

	resp := d.guard(tr, func() *protocol.TaskResponse {
		req, err := protocol.DecodeRequest(raw)
		if err != nil {
			return tr.fail(err)
		}
		return d.run(ctx, tr, req)
	})
	return resp
}

// Execute runs an already-decoded request.
func (d *Dispatcher) Execute(ctx context.Context, req *protocol.TaskRequest) *protocol.TaskResponse {
	var id string
	var action protocol.Action
	if req != nil {
		id, action = req.ID, req.Action
	}
	tr := d.begin(id, action)

	return d.guard(tr, func() *protocol.TaskResponse {
		return d.run(ctx, tr, req)
	})
}

// Submit dispatches raw on its own goroutine. The channel receives exactly
// one response.
func (d *Dispatcher) Submit(ctx context.Context, raw []byte) <-chan *protocol.TaskResponse {
	out := make(chan *protocol.TaskResponse, 1)
	go func() {
		out <- d.Dispatch(ctx, raw)
	}()
	return out
}

// Cancel withdraws the in-flight task with the given id.
func (d *Dispatcher) Cancel(id string) bool {
	ok := d.inflight.Cancel(id)
	if ok {
		d.logger.Info("task cancellation requested", "task_id", id)
	}
	return ok
}

// Inflight returns the number of tasks currently executing.
func (d *Dispatcher) Inflight() int {
	return d.inflight.Len()
}

func (d *Dispatcher) run(ctx context.Context, tr *tracker, req *protocol.TaskRequest) *protocol.TaskResponse {
	tr.req = req

	op, err := task.Parse(req)
	if err != nil {
		return tr.fail(err)
	}

	ctx, done, err := d.inflight.Begin(ctx, req.ID)
	if err != nil {
		return tr.fail(protocol.Wrap(protocol.TypeValidation, err, "id %q", req.ID))
	}
	defer done()

	tr.move(StateValidated)
	tr.move(StateExecuting)

	if err := d.execute(ctx, tr, op); err != nil {
		return tr.fail(err)
	}
	return tr.complete()
}

// execute routes op to its handler. Handler panics are converted to
// INTERNAL_ERROR.
func (d *Dispatcher) execute(ctx context.Context, tr *tracker, op task.Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			tr.logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			err = protocol.Errorf(protocol.TypeInternal, "internal error while executing %s", op.Action())
		}
	}()

	switch op := op.(type) {
	case task.FileCreate:
		return d.files.Create(ctx, op)
	case task.FileEdit:
		return d.files.Edit(ctx, op)
	case task.FileDelete:
		return d.files.Delete(ctx, op)
	case task.CommandRun:
		res, err := d.commands.Run(ctx, op)
		if res != nil {
			tr.logger.Debug("command finished",
				"pid", res.PID,
				"exit_code", res.ExitCode,
				"duration_ms", res.Duration.Milliseconds(),
				"stdout_bytes", len(res.Stdout),
				"stderr_bytes", len(res.Stderr),
			)
		}
		return err
	default:
		return protocol.Errorf(protocol.TypeInternal, "no handler for operation %T", op)
	}
}

// guard makes sure a response is produced even if fn panics outside a handler.
func (d *Dispatcher) guard(tr *tracker, fn func() *protocol.TaskResponse) (resp *protocol.TaskResponse) {
	defer func() {
		if r := recover(); r != nil {
			tr.logger.Error("dispatch panicked", "panic", r, "stack", string(debug.Stack()))
			resp = tr.fail(protocol.Errorf(protocol.TypeInternal, "internal error"))
		}
	}()
	return fn()
}

func (d *Dispatcher) begin(id string, action protocol.Action) *tracker {
	now := d.now()
	tr := &tracker{
		d:          d,
		id:         id,
		action:     action,
		state:      StateReceived,
		receivedAt: now,
		logger:     d.logger.With("task_id", id, "action", string(action)),
	}
	tr.logger.Debug("task received")
	d.notify(Transition{
		TaskID:     id,
		Action:     action,
		From:       "",
		To:         StateReceived,
		At:         now,
		ReceivedAt: now,
	})
	return tr
}

func (d *Dispatcher) notify(t Transition) {
	for _, o := range d.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("observer panicked", "panic", r, "task_id", t.TaskID)
				}
			}()
			o.Observe(t)
		}()
	}
}

// tracker carries one request through its lifecycle. It is owned by a single
// goroutine.
type tracker struct {
	d          *Dispatcher
	id         string
	action     protocol.Action
	state      State
	receivedAt time.Time
	req        *protocol.TaskRequest
	resp       *protocol.TaskResponse
	logger     *slog.Logger
}

func (t *tracker) move(to State) {
	if err := checkTransition(t.state, to); err != nil {
		panic(err)
	}
	from := t.state
	t.state = to
	t.logger.Debug("task state", "from", from, "to", to)

	tr := Transition{
		TaskID:     t.id,
		Action:     t.action,
		From:       from,
		To:         to,
		At:         t.d.now(),
		ReceivedAt: t.receivedAt,
		Request:    t.req,
	}
	if to.Terminal() {
		tr.Response = t.resp
	}
	t.d.notify(tr)
}

func (t *tracker) complete() *protocol.TaskResponse {
	t.resp = protocol.NewSuccess(t.id, t.action)
	t.move(StateCompleted)
	t.logger.Info("task completed", "duration_ms", t.d.now().Sub(t.receivedAt).Milliseconds())
	return t.resp
}

// fail finalizes the request with err. A second terminal call returns the
// response already produced.
func (t *tracker) fail(err error) *protocol.TaskResponse {
	if t.state.Terminal() {
		return t.resp
	}
	t.resp = protocol.NewFailure(t.id, t.action, err)

	from := t.state
	t.state = StateFailed
	t.d.notify(Transition{
		TaskID:     t.id,
		Action:     t.action,
		From:       from,
		To:         StateFailed,
		At:         t.d.now(),
		ReceivedAt: t.receivedAt,
		Request:    t.req,
		Response:   t.resp,
		Err:        err,
	})

	errType := protocol.TypeOf(err)
	switch errType {
	case protocol.TypeInternal:
		t.logger.Error("task failed", "error_type", errType, "error", err)
	default:
		t.logger.Warn("task failed", "error_type", errType, "error", err)
	}
	return t.resp
}
