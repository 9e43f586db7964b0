package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/clashtriage/internal/config"
	"github.com/JonMunkholm/clashtriage/internal/core"
)

const sampleReport = "Clash Name,Distance,Item 1 Name,Item 1 Layer,Item 2 Name,Item 2 Layer\n" +
	"C1,-0.1,Duct,L1,Beam,L2\n" +
	"C2,-0.2,Pipe,L1,Wall,L3\n" +
	"C3,0.0,Tray,L2,Column,L4\n"

// stubClassifier marks every clash Critical/MEP except the ids in fail.
type stubClassifier struct {
	fail map[string]bool
}

func (stubClassifier) Name() string { return "stub" }

func (c stubClassifier) ClassifyBatch(_ context.Context, clashes []core.RawClash) ([]core.ClassificationResult, error) {
	var out []core.ClassificationResult
	for _, cl := range clashes {
		if c.fail[cl.ID] {
			continue
		}
		out = append(out, core.ClassificationResult{
			ID:             cl.ID,
			Severity:       core.SeverityCritical,
			Responsibility: core.DisciplineMEP,
			Description:    "Reroute " + cl.Item1,
		})
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Import:   config.ImportConfig{MaxFileSize: 1 << 20, PreviewRows: 5},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, classifier core.Classifier) (*Server, *core.Session) {
	t.Helper()
	session := core.NewSession(classifier, core.SessionConfig{
		Triage: core.OrchestratorConfig{BatchSize: 2, Cooldown: -1},
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		session.Shutdown(ctx)
	})
	return NewServer(session, testConfig()), session
}

func uploadRequest(t *testing.T, path, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("Content-Security-Policy header missing")
	}
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	status := decode[StatusResponse](t, rec)
	if status.ClassifierReady {
		t.Error("ClassifierReady = true without classifier")
	}
	if status.Dataset != nil {
		t.Errorf("Dataset = %+v, want nil", status.Dataset)
	}

	serve(s, uploadRequest(t, "/api/import", "report.csv", sampleReport))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	status = decode[StatusResponse](t, rec)
	if status.Dataset == nil || status.Dataset.Count != 3 || status.Dataset.FileName != "report.csv" {
		t.Errorf("Dataset = %+v, want report.csv with 3 clashes", status.Dataset)
	}
}

func TestImport(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "/api/import", "report.csv", sampleReport))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	result := decode[core.LoadResult](t, rec)
	if result.Count != 3 {
		t.Errorf("Count = %d, want 3", result.Count)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/clashes?status=pending", nil))
	list := decode[ClashListResponse](t, rec)
	if list.Count != 3 {
		t.Fatalf("pending count = %d, want 3", list.Count)
	}
	if c := list.Clashes[0]; c.ID != "clash-1" || c.Item1 != "Duct" || c.Status != core.StatusPending {
		t.Errorf("first clash = %+v", c)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/clashes?status=completed", nil))
	if list := decode[ClashListResponse](t, rec); list.Count != 0 {
		t.Errorf("completed count = %d, want 0", list.Count)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string
		content    string
		maxSize    int64
		wantStatus int
		wantCode   string
	}{
		{"no file", "", "", 0, http.StatusBadRequest, "IMP002"},
		{"wrong extension", "report.txt", sampleReport, 0, http.StatusBadRequest, "IMP003"},
		{"too large", "report.csv", strings.Repeat("x", 200), 100, http.StatusRequestEntityTooLarge, "IMP001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil)
			if tt.maxSize > 0 {
				s.cfg.Import.MaxFileSize = tt.maxSize
			}

			rec := serve(s, uploadRequest(t, "/api/import", tt.fileName, tt.content))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	s, session := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "/api/preview", "report.csv", sampleReport))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	preview := decode[core.PreviewResponse](t, rec)
	if preview.Summary.DataRows != 3 {
		t.Errorf("DataRows = %d, want 3", preview.Summary.DataRows)
	}
	if session.Dataset() != nil {
		t.Error("preview loaded a dataset")
	}
}

func TestStartTriage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		classifier core.Classifier
		load       bool
		wantStatus int
		wantCode   string
	}{
		{"no classifier", nil, true, http.StatusServiceUnavailable, "AI001"},
		{"no dataset", stubClassifier{}, false, http.StatusNotFound, "RUN001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.classifier)
			if tt.load {
				serve(s, uploadRequest(t, "/api/import", "report.csv", sampleReport))
			}

			rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/triage", nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestTriageFlow(t *testing.T) {
	s, _ := newTestServer(t, stubClassifier{fail: map[string]bool{"clash-3": true}})
	serve(s, uploadRequest(t, "/api/import", "report.csv", sampleReport))

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/triage", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	runID := decode[map[string]string](t, rec)["run_id"]

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/triage/"+runID+"/result?wait=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[RunResultResponse](t, rec)
	if result.Completed != 2 || result.Failed != 1 || result.Batches != 2 || result.Cancelled {
		t.Errorf("result = %+v, want 2 completed, 1 failed, 2 batches", result)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	stats := decode[core.Stats](t, rec)
	if stats.Critical != 2 || stats.CriticalPercent != 67 || stats.Progress != 100 {
		t.Errorf("stats = %+v", stats)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, core.ExportFileName) {
		t.Errorf("Content-Disposition = %q", got)
	}
	lines := strings.Split(rec.Body.String(), "\n")
	if lines[0] != "ID,Item 1,Item 2,Distance,AI Status,AI Severity,AI Responsibility,AI Description" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("export lines = %d, want 4", len(lines))
	}
	if !strings.Contains(lines[3], `"FAILED"`) {
		t.Errorf("clash-3 row = %q, want FAILED", lines[3])
	}

	// Failed clashes go back to PENDING only on request.
	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/clashes/retry-failed", nil))
	if got := decode[map[string]int](t, rec)["reset"]; got != 1 {
		t.Errorf("reset = %d, want 1", got)
	}
}

func TestTriageProgress_SSE(t *testing.T) {
	s, _ := newTestServer(t, stubClassifier{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	serve(s, uploadRequest(t, "/api/import", "report.csv", sampleReport))
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/triage", nil))
	runID := decode[map[string]string](t, rec)["run_id"]

	resp, err := http.Get(srv.URL + "/api/triage/" + runID + "/progress")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var events []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if ev, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			events = append(events, ev)
			if ev == "complete" {
				break
			}
		}
	}
	if len(events) < 2 || events[0] != "progress" || events[len(events)-1] != "complete" {
		t.Errorf("events = %v, want progress... complete", events)
	}
}

func TestTriageRun_NotFound(t *testing.T) {
	s, _ := newTestServer(t, stubClassifier{})

	for _, path := range []string{"/api/triage/nope/result", "/api/triage/nope/progress"} {
		rec := serve(s, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
			continue
		}
		if resp := decode[ErrorResponse](t, rec); resp.Code != "RUN004" {
			t.Errorf("%s code = %q, want RUN004", path, resp.Code)
		}
	}
}

func TestExport_NoDataset(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestClearClashes(t *testing.T) {
	s, session := newTestServer(t, nil)
	serve(s, uploadRequest(t, "/api/import", "report.csv", sampleReport))

	rec := serve(s, httptest.NewRequest(http.MethodDelete, "/api/clashes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if session.Dataset() != nil {
		t.Error("dataset still loaded after clear")
	}
}

func TestDashboardPages(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Missing API Key") {
		t.Errorf("dashboard status = %d, body lacks key warning", rec.Code)
	}

	serve(s, uploadRequest(t, "/api/import", "report.csv", sampleReport))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/partials/clashes?severity=critical", nil))
	if !strings.Contains(rec.Body.String(), "No clashes found matching this filter.") {
		t.Error("critical filter should match nothing before triage")
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/partials/clashes", nil))
	if !strings.Contains(rec.Body.String(), "clash-3") {
		t.Error("unfiltered table missing clash-3")
	}
}

func TestRateLimit(t *testing.T) {
	session := core.NewSession(nil, core.SessionConfig{})
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	s := NewServer(session, cfg)

	for i := range 2 {
		if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrNotCSV, http.StatusBadRequest},
		{core.ErrNoDataset, http.StatusNotFound},
		{core.ErrRunInProgress, http.StatusConflict},
		{core.ErrNothingPending, http.StatusConflict},
		{core.ErrClassifierUnavailable, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
