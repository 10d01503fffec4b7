package events

import (
	"strings"

	"github.com/mattjoyce/taskd/internal/dispatch"
	"github.com/mattjoyce/taskd/internal/protocol"
)

// TaskEvent is the payload published for each lifecycle transition.
type TaskEvent struct {
	TaskID     string              `json:"task_id"`
	Action     protocol.Action     `json:"action"`
	From       dispatch.State      `json:"from,omitempty"`
	To         dispatch.State      `json:"to"`
	DurationMS int64               `json:"duration_ms"`
	Error      *protocol.ErrorInfo `json:"error,omitempty"`
}

// EventType names the event published for a transition into state,
// e.g. "task.completed".
func EventType(state dispatch.State) string {
	return "task." + strings.ToLower(string(state))
}

// Observe publishes t. It lets a Hub be registered as a dispatcher observer.
func (h *Hub) Observe(t dispatch.Transition) {
	ev := TaskEvent{
		TaskID:     t.TaskID,
		Action:     t.Action,
		From:       t.From,
		To:         t.To,
		DurationMS: t.Duration().Milliseconds(),
	}
	if t.Response != nil {
		ev.Error = t.Response.Error
	}
	h.Publish(EventType(t.To), ev)
}
