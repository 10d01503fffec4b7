package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/mattjoyce/taskd/internal/events"
)

// TaskRow is what the view knows about one task.
type TaskRow struct {
	ID        string
	Action    string
	State     string
	FirstSeen time.Time
	Duration  time.Duration
	ErrorType string
	Message   string
}

func (r *TaskRow) terminal() bool {
	return r.State == "COMPLETED" || r.State == "FAILED"
}

// Tracker folds lifecycle events into per-task rows. In-flight tasks are
// keyed by id; finished ones move to a bounded most-recent-first list.
type Tracker struct {
	keep      int
	active    map[string]*TaskRow
	recent    []*TaskRow
	completed int
	failed    int
}

func NewTracker(keep int) *Tracker {
	return &Tracker{keep: keep, active: make(map[string]*TaskRow)}
}

// Apply records e. Events that are not task transitions are ignored.
func (t *Tracker) Apply(e events.Event) {
	if !strings.HasPrefix(e.Type, "task.") {
		return
	}
	var te events.TaskEvent
	if err := json.Unmarshal(e.Data, &te); err != nil || te.TaskID == "" {
		return
	}

	row, ok := t.active[te.TaskID]
	if !ok {
		row = &TaskRow{ID: te.TaskID, FirstSeen: e.At}
		t.active[te.TaskID] = row
	}
	if te.Action != "" {
		row.Action = string(te.Action)
	}
	row.State = string(te.To)
	row.Duration = time.Duration(te.DurationMS) * time.Millisecond
	if te.Error != nil {
		row.ErrorType = string(te.Error.Type)
		row.Message = te.Error.Message
	}

	if !row.terminal() {
		return
	}
	delete(t.active, te.TaskID)
	if row.State == "COMPLETED" {
		t.completed++
	} else {
		t.failed++
	}
	t.recent = append([]*TaskRow{row}, t.recent...)
	if len(t.recent) > t.keep {
		t.recent = t.recent[:t.keep]
	}
}

// Active returns in-flight tasks, oldest first.
func (t *Tracker) Active() []*TaskRow {
	rows := make([]*TaskRow, 0, len(t.active))
	for _, r := range t.active {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].FirstSeen.Equal(rows[j].FirstSeen) {
			return rows[i].FirstSeen.Before(rows[j].FirstSeen)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

func (t *Tracker) Recent() []*TaskRow { return t.recent }

func (t *Tracker) Counts() (completed, failed int) { return t.completed, t.failed }

var taskColumns = []table.Column{
	{Title: "TASK", Width: 18},
	{Title: "ACTION", Width: 12},
	{Title: "STATE", Width: 10},
	{Title: "TIME", Width: 8},
	{Title: "ERROR", Width: 40},
}

// tableRows lists active tasks first, then recent outcomes. Active rows show
// how long the task has been running as of now.
func (t *Tracker) tableRows(now time.Time) []table.Row {
	var rows []table.Row
	for _, r := range t.Active() {
		rows = append(rows, table.Row{r.ID, r.Action, r.State, formatDuration(now.Sub(r.FirstSeen)), ""})
	}
	for _, r := range t.recent {
		errText := r.ErrorType
		if r.Message != "" {
			errText = fmt.Sprintf("%s: %s", r.ErrorType, r.Message)
		}
		rows = append(rows, table.Row{r.ID, r.Action, r.State, formatDuration(r.Duration), errText})
	}
	return rows
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
