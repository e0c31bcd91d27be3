package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pdf-ocr-server/internal/domain"

	"github.com/gorilla/mux"
)

const keepAliveInterval = 15 * time.Second

// ProgressHandler serves job progress as JSON and as a server-sent event stream
type ProgressHandler struct {
	progress domain.ProgressService
	logger   domain.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress domain.ProgressService, logger domain.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		logger:   logger,
	}
}

// GetProgress returns the current progress of a job
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	state, ok := h.progress.Query(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// StreamProgress pushes progress_update events for one job until it finishes
// or the client disconnects.
func (h *ProgressHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Subscribe before reading the current state so no update falls in between.
	updates, cancel := h.progress.Subscribe()
	defer cancel()

	state, ok := h.progress.Query(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, state); err != nil {
		return
	}
	flusher.Flush()
	if state.FinishedAt != nil {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("Progress stream closed by client", "job_id", jobID)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case update, open := <-updates:
			if !open {
				return
			}
			if update.JobID != jobID {
				continue
			}
			if err := writeEvent(w, update.State); err != nil {
				h.logger.Warn("Progress stream write failed", "job_id", jobID, "error", err)
				return
			}
			flusher.Flush()
			if update.State.FinishedAt != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, state domain.ProgressState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: progress_update\ndata: %s\n\n", data)
	return err
}
