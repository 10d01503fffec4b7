package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/taskd/internal/journal"
	"github.com/mattjoyce/taskd/internal/protocol"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Inflight:      s.dispatcher.Inflight(),
	})
}

// handleOpenAPI handles GET /openapi.json (no auth).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}

// handleSubmitTask handles POST /tasks. The body is a TaskRequest; the reply
// is always 200 with a TaskResponse, whatever the task outcome.
func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	timeout := s.config.MaxTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.writeError(w, http.StatusBadRequest, "timeout must be a positive duration such as 30s")
			return
		}
		timeout = min(d, s.config.MaxTimeout)
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	respondTask(w, s.dispatcher.Dispatch(ctx, body))
}

// readBody reads the request body up to MaxBodyBytes. On failure it writes
// the response itself: an oversized body is answered as a failed task so
// callers see the same envelope as for any other rejected request.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err == nil {
		return body, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondTask(w, protocol.NewFailure("", "", protocol.Errorf(protocol.TypeValidation,
			"request body exceeds %d bytes", tooLarge.Limit)))
		return nil, false
	}
	s.writeError(w, http.StatusBadRequest, "failed to read request body")
	return nil, false
}

// handleCancelTask handles DELETE /tasks/{taskID}.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if !s.dispatcher.Cancel(taskID) {
		s.writeError(w, http.StatusNotFound, "task is not in flight")
		return
	}
	respondJSON(w, http.StatusAccepted, CancelResponse{ID: taskID, Status: "cancelling"})
}

// handleGetTask handles GET /tasks/{taskID}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "task journal is disabled")
		return
	}

	taskID := chi.URLParam(r, "taskID")
	entries, err := s.journal.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("failed to read journal", "task_id", taskID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}

	respondJSON(w, http.StatusOK, TaskHistoryResponse{TaskID: taskID, Entries: entries})
}

func respondTask(w http.ResponseWriter, resp *protocol.TaskResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = protocol.EncodeResponse(w, resp)
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
