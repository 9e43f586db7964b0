package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// RunResultResponse wraps a run summary for JSON encoding.
type RunResultResponse struct {
	RunID      string `json:"run_id"`
	Selected   int    `json:"selected"`
	Dispatched int    `json:"dispatched"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Batches    int    `json:"batches"`
	Cancelled  bool   `json:"cancelled"`
	Duration   string `json:"duration"`
}

// toResponse converts a RunSummary to a JSON-friendly format.
func toResponse(s core.RunSummary) RunResultResponse {
	return RunResultResponse{
		RunID:      s.RunID,
		Selected:   s.Selected,
		Dispatched: s.Dispatched,
		Completed:  s.Completed,
		Failed:     s.Failed,
		Batches:    s.Batches,
		Cancelled:  s.Cancelled,
		Duration:   s.Duration.String(),
	}
}

// handleStartTriage starts a triage run over the PENDING clashes.
func (s *Server) handleStartTriage(w http.ResponseWriter, r *http.Request) {
	runID, err := s.session.StartTriage(WithRequestMetadata(r.Context(), r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleTriageProgress streams run progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter or the
// Last-Event-ID header sent by reconnecting EventSource clients.
func (s *Server) handleTriageProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID, _ := strconv.Atoi(lastEventIDStr)

	progressCh, err := s.session.SubscribeProgress(runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - run complete or cancelled
				s.writeComplete(w, r, runID)
				flusher.Flush()
				return
			}

			// Skip events the client already has, but never the final one
			if lastEventIDStr != "" && progress.Percent < lastEventID && !progress.Done() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// writeComplete sends the final summary event.
func (s *Server) writeComplete(w http.ResponseWriter, r *http.Request, runID string) {
	summary, err := s.session.RunResult(r.Context(), runID)
	if err != nil {
		fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
		return
	}
	data, _ := json.Marshal(toResponse(summary))
	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
}

// handleTriageResult returns the final result of a run. While the run is
// still going it answers 202 with the current progress, unless ?wait=true
// asks to block until the run finishes.
func (s *Server) handleTriageResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	progress, err := s.session.RunProgress(runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !progress.Done() && !wait {
		writeJSON(w, http.StatusAccepted, progress)
		return
	}

	summary, err := s.session.RunResult(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, http.StatusGatewayTimeout)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(summary))
}

// handleCancelTriage stops a run before its next batch.
func (s *Server) handleCancelTriage(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.session.CancelTriage(runID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
