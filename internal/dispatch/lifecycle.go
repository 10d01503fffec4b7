package dispatch

import (
	"fmt"
	"time"

	"github.com/mattjoyce/taskd/internal/protocol"
)

// State is a request lifecycle stage.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateValidated State = "VALIDATED"
	StateExecuting State = "EXECUTING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var validTransitions = map[State][]State{
	StateReceived:  {StateValidated, StateFailed},
	StateValidated: {StateExecuting, StateFailed},
	StateExecuting: {StateCompleted, StateFailed},
}

// Transition describes one lifecycle step of a request.
type Transition struct {
	TaskID     string
	Action     protocol.Action
	From       State
	To         State
	At         time.Time
	ReceivedAt time.Time

	// Request is nil until the payload decodes. Response and Err are only set
	// on terminal transitions.
	Request  *protocol.TaskRequest
	Response *protocol.TaskResponse
	Err      error
}

// Duration is the time from receipt to this transition.
func (t Transition) Duration() time.Duration {
	return t.At.Sub(t.ReceivedAt)
}

// Observer receives lifecycle transitions. Implementations must be safe for
// concurrent use and must not block for long.
type Observer interface {
	Observe(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// Observe calls f(t).
func (f ObserverFunc) Observe(t Transition) { f(t) }

func checkTransition(from, to State) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid lifecycle transition %s -> %s", from, to)
}
