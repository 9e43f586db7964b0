package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/clashtriage/internal/core"
	"github.com/JonMunkholm/clashtriage/internal/logging"
	"github.com/JonMunkholm/clashtriage/internal/web/views"
)

// formOverhead is room for multipart boundaries and headers on top of the
// file size limit. The exact limit is enforced when the file is read.
const formOverhead = 64 << 10

// StatusResponse reports what the server is ready to do.
type StatusResponse struct {
	ClassifierReady bool             `json:"classifierReady"`
	Provider        string           `json:"provider,omitempty"`
	Dataset         *core.LoadResult `json:"dataset"`
	ActiveRun       string           `json:"activeRun,omitempty"`
}

// ClashListResponse wraps a filtered clash listing.
type ClashListResponse struct {
	Count   int                  `json:"count"`
	Clashes []core.EnrichedClash `json:"clashes"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports classifier readiness, the loaded dataset and the
// active run.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		ClassifierReady: s.session.ClassifierReady(),
		Provider:        s.session.ClassifierName(),
		ActiveRun:       s.session.ActiveRun(),
	}
	if ds := s.session.Dataset(); ds != nil {
		resp.Dataset = &core.LoadResult{DatasetID: ds.ID, FileName: ds.FileName, Count: ds.Len()}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDashboard renders the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	data := views.DashboardData{
		ClassifierReady: s.session.ClassifierReady(),
		Provider:        s.session.ClassifierName(),
		Filter:          filter,
		ActiveRun:       s.session.ActiveRun(),
	}
	if ds := s.session.Dataset(); ds != nil {
		all := ds.Snapshot()
		data.HasDataset = true
		data.FileName = ds.FileName
		data.Stats = core.ComputeStats(all)
		data.Clashes = core.FilterClashes(all, filter)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	views.Dashboard(data).Render(r.Context(), w)
}

// handleClashTablePartial renders only the clash table for the filter bar.
func (s *Server) handleClashTablePartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	views.ClashTable(s.session.Clashes(parseFilter(r))).Render(r.Context(), w)
}

// handleStatsPartial renders only the stats cards.
func (s *Server) handleStatsPartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	views.StatsPanel(s.session.Stats()).Render(r.Context(), w)
}

// handleImport loads a clash report, replacing the current dataset.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.session.Load(ctx, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handlePreview analyzes a clash report without loading it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	preview, err := s.session.Preview(header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// handleListClashes returns the clashes matching ?severity= and ?status=.
func (s *Server) handleListClashes(w http.ResponseWriter, r *http.Request) {
	clashes := s.session.Clashes(parseFilter(r))
	writeJSON(w, http.StatusOK, ClashListResponse{Count: len(clashes), Clashes: clashes})
}

// handleClearClashes drops the dataset.
func (s *Server) handleClearClashes(w http.ResponseWriter, r *http.Request) {
	s.session.Clear(WithRequestMetadata(r.Context(), r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleRetryFailed returns FAILED clashes to PENDING.
func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := s.session.ResetFailed(WithRequestMetadata(r.Context(), r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": n})
}

// handleStats returns dataset statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Stats())
}

// handleExport streams the triage export as a CSV attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.session.Dataset() == nil {
		respondError(w, r, core.ErrNoDataset, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.ExportFileName))
	if err := s.session.Export(w); err != nil {
		// Headers are already sent
		logging.FromContext(r.Context()).Error("export failed", "error", err)
	}
}

// formFile reads the "file" field of a size-limited multipart upload.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, core.ErrFileTooLarge
		}
		return nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, core.ErrNoFile
	}
	return file, header, nil
}

// parseFilter reads ?severity= and ?status=. Unknown statuses are ignored;
// severities match case-insensitively.
func parseFilter(r *http.Request) core.ClashFilter {
	var f core.ClashFilter
	q := r.URL.Query()

	if sev := strings.TrimSpace(q.Get("severity")); sev != "" && !strings.EqualFold(sev, "all") {
		f.Severity = core.ParseSeverity(sev)
	}

	switch st := core.ClashStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))); st {
	case core.StatusPending, core.StatusProcessing, core.StatusCompleted, core.StatusFailed:
		f.Status = st
	}
	return f
}
