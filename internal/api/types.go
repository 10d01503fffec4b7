package api

import "github.com/mattjoyce/taskd/internal/journal"

// ErrorResponse is returned on HTTP-level errors. Task failures are always
// reported as a TaskResponse instead.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Inflight      int    `json:"inflight"`
}

// CancelResponse is returned by DELETE /tasks/{id}.
type CancelResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// TaskHistoryResponse is returned by GET /tasks/{id}.
type TaskHistoryResponse struct {
	TaskID  string          `json:"task_id"`
	Entries []journal.Entry `json:"entries"`
}
