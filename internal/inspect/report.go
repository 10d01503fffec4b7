// Package inspect renders the journal history of a task for operators.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/taskd/internal/journal"
)

// History looks up journal entries for a task id.
type History interface {
	Get(ctx context.Context, taskID string) ([]journal.Entry, error)
}

// Report is the structured JSON representation of a task's history.
type Report struct {
	TaskID   string `json:"task_id"`
	Runs     int    `json:"runs"`
	Failures int    `json:"failures"`
	Entries  []Run  `json:"entries"`
}

// Run is one journaled execution of the task id.
type Run struct {
	Seq           int    `json:"seq"`
	EntryID       string `json:"entry_id"`
	Action        string `json:"action"`
	Outcome       string `json:"outcome"`
	ErrorType     string `json:"error_type,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ContentDigest string `json:"content_digest,omitempty"`
	ReceivedAt    string `json:"received_at"`
	DurationMS    int64  `json:"duration_ms"`
}

// BuildReport renders a terminal-friendly report for a task id.
func BuildReport(ctx context.Context, h History, taskID string) (string, error) {
	report, err := gatherReportData(ctx, h, taskID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Task Report\n")
	fmt.Fprintf(&out, "Task ID     : %s\n", report.TaskID)
	fmt.Fprintf(&out, "Runs        : %d\n", report.Runs)
	fmt.Fprintf(&out, "Failures    : %d\n", report.Failures)
	fmt.Fprintf(&out, "\n")

	for _, run := range report.Entries {
		fmt.Fprintf(&out, "[%d] %s :: %s\n", run.Seq, run.Action, run.Outcome)
		fmt.Fprintf(&out, "    entry_id   : %s\n", run.EntryID)
		fmt.Fprintf(&out, "    received   : %s\n", run.ReceivedAt)
		fmt.Fprintf(&out, "    duration   : %s\n", time.Duration(run.DurationMS)*time.Millisecond)
		fmt.Fprintf(&out, "    digest     : %s\n", renderUnset(run.ContentDigest, "<none>"))
		if run.ErrorType != "" {
			fmt.Fprintf(&out, "    error      : %s\n", run.ErrorType)
			for _, line := range strings.Split(strings.TrimSpace(run.ErrorMessage), "\n") {
				fmt.Fprintf(&out, "      %s\n", line)
			}
		}
		fmt.Fprintf(&out, "\n")
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON report.
func BuildJSONReport(ctx context.Context, h History, taskID string) (string, error) {
	report, err := gatherReportData(ctx, h, taskID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(ctx context.Context, h History, taskID string) (*Report, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("task id is required")
	}

	entries, err := h.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", taskID, err)
	}

	report := &Report{
		TaskID:  taskID,
		Runs:    len(entries),
		Entries: make([]Run, 0, len(entries)),
	}
	for i, e := range entries {
		run := Run{
			Seq:           i + 1,
			EntryID:       e.ID,
			Action:        string(e.Action),
			Outcome:       "completed",
			ContentDigest: e.ContentDigest,
			ReceivedAt:    e.ReceivedAt.UTC().Format(time.RFC3339Nano),
			DurationMS:    e.DurationMS,
		}
		if !e.Success {
			report.Failures++
			run.Outcome = "failed"
			run.ErrorType = string(e.ErrorType)
			run.ErrorMessage = e.ErrorMessage
		}
		report.Entries = append(report.Entries, run)
	}
	return report, nil
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
