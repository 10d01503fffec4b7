// Package stdio serves task requests as newline-delimited JSON: one request
// per input line, one response per output line in completion order.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mattjoyce/taskd/internal/protocol"
)

// DefaultMaxLineBytes bounds a single request line.
const DefaultMaxLineBytes = 64 << 20

// Dispatcher is the part of the dispatcher the transport needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte) *protocol.TaskResponse
	Cancel(id string) bool
}

// Server reads requests from an input stream and writes responses to an
// output stream.
type Server struct {
	dispatcher   Dispatcher
	sem          *semaphore.Weighted
	logger       *slog.Logger
	maxLineBytes int

	mu sync.Mutex // serializes response lines

	pmu     sync.Mutex
	pending map[string][]*pendingTask

	// turn is closed once the previously read task has its slot, so
	// slots are granted in input order. Only the Serve loop touches it.
	turn chan struct{}
}

// pendingTask is a request line accepted by the reader and not yet answered.
type pendingTask struct {
	cancel context.CancelFunc
}

// NewServer creates a Server running at most maxConcurrent tasks at once.
func NewServer(d Dispatcher, maxConcurrent int, logger *slog.Logger) *Server {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher:   d,
		sem:          semaphore.NewWeighted(int64(maxConcurrent)),
		logger:       logger,
		maxLineBytes: DefaultMaxLineBytes,
		pending:      make(map[string][]*pendingTask),
	}
}

type line struct {
	data    []byte
	tooLong bool
}

// Serve processes r until EOF or until ctx is done, then waits for in-flight
// tasks. Every request line gets exactly one response line on w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.turn = make(chan struct{})
	close(s.turn)

	lines := make(chan line)
	readErr := make(chan error, 1)
	go s.read(ctx, r, lines, readErr)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stdio transport stopping", "reason", ctx.Err())
			return nil
		case ln, ok := <-lines:
			if !ok {
				err := <-readErr
				wg.Wait()
				return err
			}
			s.handle(ctx, ln, w, &wg)
		}
	}
}

func (s *Server) read(ctx context.Context, r io.Reader, lines chan<- line, readErr chan<- error) {
	defer close(lines)
	br := bufio.NewReaderSize(r, 64*1024)

	for {
		data, tooLong, err := readLine(br, s.maxLineBytes)
		if len(data) > 0 || tooLong {
			select {
			case lines <- line{data: data, tooLong: tooLong}:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			readErr <- err
			return
		}
	}
}

// readLine returns the next line without its terminator. Lines longer than
// max are consumed and reported with tooLong set.
func readLine(br *bufio.Reader, max int) ([]byte, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if !tooLong {
			if len(buf)+len(chunk) > max {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err != nil || !isPrefix {
			return buf, tooLong, err
		}
	}
}

func (s *Server) handle(ctx context.Context, ln line, w io.Writer, wg *sync.WaitGroup) {
	if ln.tooLong {
		s.write(w, protocol.NewFailure("", "", protocol.Errorf(protocol.TypeValidation,
			"request exceeds %d bytes", s.maxLineBytes)))
		return
	}

	data := bytes.TrimSpace(ln.data)
	if len(data) == 0 {
		return
	}

	if id, ok := cancelFrame(data); ok {
		found := s.cancelPending(id)
		if s.dispatcher.Cancel(id) {
			found = true
		}
		s.logger.Info("cancel requested", "task_id", id, "found", found)
		return
	}

	id, action := protocol.ReadHeader(data)
	taskCtx, cancel := context.WithCancel(ctx)
	pt := s.track(id, cancel)

	prev, mine := s.turn, make(chan struct{})
	s.turn = mine

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.untrack(id, pt)
		defer cancel()

		if !s.admit(taskCtx, prev, mine) {
			msg := fmt.Sprintf("task %q was cancelled before it started", id)
			if ctx.Err() != nil {
				msg = "transport is shutting down"
			}
			s.write(w, protocol.NewFailure(id, action, protocol.Errorf(protocol.TypeCancelled, "%s", msg)))
			return
		}
		defer s.sem.Release(1)
		s.write(w, s.dispatcher.Dispatch(taskCtx, data))
	}()
}

// admit waits for the previous line's turn, then for a free slot. It
// reports false when ctx ends first. mine is always closed so later
// lines are never stuck behind a withdrawn one.
func (s *Server) admit(ctx context.Context, prev <-chan struct{}, mine chan struct{}) bool {
	select {
	case <-prev:
	case <-ctx.Done():
		go func() {
			<-prev
			close(mine)
		}()
		return false
	}
	defer close(mine)
	return s.sem.Acquire(ctx, 1) == nil
}

func (s *Server) track(id string, cancel context.CancelFunc) *pendingTask {
	pt := &pendingTask{cancel: cancel}
	s.pmu.Lock()
	s.pending[id] = append(s.pending[id], pt)
	s.pmu.Unlock()
	return pt
}

func (s *Server) untrack(id string, pt *pendingTask) {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	list := s.pending[id]
	for i, p := range list {
		if p == pt {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.pending, id)
		return
	}
	s.pending[id] = list
}

// cancelPending cancels every unanswered line carrying id, whether it is
// still waiting for a slot or already running.
func (s *Server) cancelPending(id string) bool {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	for _, pt := range s.pending[id] {
		pt.cancel()
	}
	return len(s.pending[id]) > 0
}

func (s *Server) write(w io.Writer, resp *protocol.TaskResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := protocol.EncodeResponse(w, resp); err != nil {
		s.logger.Error("failed to write response", "task_id", resp.ID, "error", err)
	}
}

// cancelFrame recognizes the control line {"cancel":"<id>"}.
func cancelFrame(data []byte) (string, bool) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) != 1 {
		return "", false
	}
	raw, ok := frame["cancel"]
	if !ok {
		return "", false
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}
