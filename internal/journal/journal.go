// Package journal records the outcome of every task in SQLite. It is an
// observer of the dispatcher and is never read while executing tasks.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/taskd/internal/dispatch"
	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/storage"
)

// ErrNotFound is returned by Get when no entry exists for a task id.
var ErrNotFound = errors.New("task not found in journal")

const recordTimeout = 5 * time.Second

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one finished task.
type Entry struct {
	ID            string             `json:"id"`
	TaskID        string             `json:"task_id"`
	Action        protocol.Action    `json:"action"`
	Success       bool               `json:"success"`
	ErrorType     protocol.ErrorType `json:"error_type,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	ContentDigest string             `json:"content_digest,omitempty"`
	ReceivedAt    time.Time          `json:"received_at"`
	CompletedAt   time.Time          `json:"completed_at"`
	DurationMS    int64              `json:"duration_ms"`
}

// Store persists entries in the task_log table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the journal database at path, creating it if needed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps SQLITE_BUSY out of concurrent observers.
	db.SetMaxOpenConns(1)
	return New(db, logger), nil
}

// New wraps an already bootstrapped database.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Digest returns the hex BLAKE3-256 digest of a content value.
func Digest(value string) string {
	sum := blake3.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Record inserts e, assigning a fresh id when e.ID is empty.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	success := 0
	if e.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO task_log(id, task_id, action, success, error_type, error_message, content_digest, received_at, completed_at, duration_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.TaskID, string(e.Action), success,
		nullString(string(e.ErrorType)), nullString(e.ErrorMessage), nullString(e.ContentDigest),
		e.ReceivedAt.UTC().Format(timeLayout), e.CompletedAt.UTC().Format(timeLayout), e.DurationMS,
	)
	if err != nil {
		return "", fmt.Errorf("insert task_log: %w", err)
	}
	return e.ID, nil
}

// Get returns every entry for taskID, oldest first.
func (s *Store) Get(ctx context.Context, taskID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, task_id, action, success, error_type, error_message, content_digest, received_at, completed_at, duration_ms
FROM task_log
WHERE task_id = ?
ORDER BY completed_at ASC, id ASC;
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task_log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                       Entry
			action                  string
			success                 int
			errType, errMsg, digest sql.NullString
			receivedAt, completedAt string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &action, &success, &errType, &errMsg, &digest, &receivedAt, &completedAt, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan task_log: %w", err)
		}
		e.Action = protocol.Action(action)
		e.Success = success != 0
		e.ErrorType = protocol.ErrorType(errType.String)
		e.ErrorMessage = errMsg.String
		e.ContentDigest = digest.String
		if e.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt); err != nil {
			return nil, fmt.Errorf("parse received_at: %w", err)
		}
		if e.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task_log: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

// Prune deletes entries completed more than retention ago and returns how
// many were removed. A non-positive retention keeps everything.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_log WHERE completed_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune task_log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune task_log: %w", err)
	}
	return n, nil
}

// Observe records terminal lifecycle transitions. Failures are logged and
// never reach the task.
func (s *Store) Observe(t dispatch.Transition) {
	if !t.To.Terminal() || t.Response == nil {
		return
	}

	e := Entry{
		TaskID:      t.TaskID,
		Action:      t.Action,
		Success:     t.Response.Success,
		ReceivedAt:  t.ReceivedAt,
		CompletedAt: t.At,
		DurationMS:  t.Duration().Milliseconds(),
	}
	if t.Response.Error != nil {
		e.ErrorType = t.Response.Error.Type
		e.ErrorMessage = t.Response.Error.Message
	}
	if t.Request != nil && t.Request.Content != nil {
		e.ContentDigest = Digest(t.Request.Content.Value)
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := s.Record(ctx, e); err != nil {
		s.logger.Error("failed to journal task", "task_id", t.TaskID, "error", err)
	}
}

// RunPruner prunes on every tick until ctx is done.
func (s *Store) RunPruner(ctx context.Context, retention, every time.Duration) {
	if retention <= 0 || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx, retention)
			if err != nil {
				s.logger.Warn("journal prune failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("journal pruned", "rows", n)
			}
		}
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
