package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/clashtriage/internal/logging"
)

// DefaultRunRetention is how long a finished run stays queryable.
const DefaultRunRetention = 30 * time.Minute

// SessionConfig tunes a Session. Zero values take the defaults.
type SessionConfig struct {
	Triage        OrchestratorConfig
	MaxImportSize int64
	PreviewRows   int
	RunRetention  time.Duration
}

// Session owns the single in-memory dataset and the triage runs over it.
// It is the entry point for the web handlers and the CLI.
type Session struct {
	classifier   Classifier
	orchestrator *Orchestrator
	gate         *RunGate

	maxImportSize int64
	previewRows   int
	retention     time.Duration

	mu      sync.RWMutex
	dataset *Dataset

	// runs holds *activeRun keyed by run id. Active runs never expire;
	// finished runs expire after the retention period.
	runs *gocache.Cache
}

type activeRun struct {
	ID        string
	DatasetID string
	Cancel    context.CancelFunc
	Done      chan struct{}

	mu        sync.Mutex
	progress  RunProgress
	result    *RunSummary
	listeners []chan RunProgress
}

// NewSession creates a session. classifier may be nil, in which case
// triage is disabled and StartTriage fails with ErrClassifierUnavailable.
func NewSession(classifier Classifier, cfg SessionConfig) *Session {
	s := &Session{
		classifier:    classifier,
		gate:          NewRunGate(),
		maxImportSize: cfg.MaxImportSize,
		previewRows:   cfg.PreviewRows,
		retention:     cfg.RunRetention,
	}
	if s.maxImportSize <= 0 {
		s.maxImportSize = DefaultMaxImportSize
	}
	if s.previewRows <= 0 {
		s.previewRows = DefaultPreviewRows
	}
	if s.retention <= 0 {
		s.retention = DefaultRunRetention
	}
	if classifier != nil {
		s.orchestrator = NewOrchestrator(classifier, cfg.Triage)
	}
	s.runs = gocache.New(s.retention, s.retention/2)
	return s
}

// ClassifierReady reports whether triage is available.
func (s *Session) ClassifierReady() bool {
	return s.classifier != nil
}

// ClassifierName returns the configured provider name, or "" when none.
func (s *Session) ClassifierName() string {
	if s.classifier == nil {
		return ""
	}
	return s.classifier.Name()
}

// LoadResult describes a freshly loaded dataset.
type LoadResult struct {
	DatasetID string `json:"datasetId"`
	FileName  string `json:"fileName"`
	Count     int    `json:"count"`
}

// Load reads a clash report and replaces the current dataset with it.
//
// An active run is cancelled; it finishes against the replaced dataset and
// its results are discarded. A report with no data rows loads as an empty
// dataset and is not an error.
func (s *Session) Load(ctx context.Context, fileName string, r io.Reader) (LoadResult, error) {
	if err := CheckImportName(fileName); err != nil {
		return LoadResult{}, err
	}
	text, err := ReadImport(r, s.maxImportSize)
	if err != nil {
		return LoadResult{}, fmt.Errorf("import %s: %w", fileName, err)
	}

	ds := NewDataset(fileName, ParseClashCSV(text))

	s.mu.Lock()
	s.dataset = ds
	s.cancelActive()
	s.mu.Unlock()

	logging.WithFields(ctx, "dataset_id", ds.ID, "file", fileName).
		Info("clash report imported", append([]any{"clashes", ds.Len()}, clientFields(ctx)...)...)

	return LoadResult{DatasetID: ds.ID, FileName: fileName, Count: ds.Len()}, nil
}

// Preview analyzes a clash report without loading it.
func (s *Session) Preview(fileName string, r io.Reader) (*PreviewResponse, error) {
	if err := CheckImportName(fileName); err != nil {
		return nil, err
	}
	text, err := ReadImport(r, s.maxImportSize)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", fileName, err)
	}
	return AnalyzeImport(text, s.previewRows), nil
}

// Clear drops the dataset and cancels any active run.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.dataset = nil
	s.cancelActive()
	s.mu.Unlock()

	logging.FromContext(ctx).Info("dataset cleared")
}

// Dataset returns the current dataset, or nil.
func (s *Session) Dataset() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Clashes returns a snapshot of the clashes matching f. Without a dataset
// the result is empty.
func (s *Session) Clashes(f ClashFilter) []EnrichedClash {
	ds := s.Dataset()
	if ds == nil {
		return []EnrichedClash{}
	}
	return FilterClashes(ds.Snapshot(), f)
}

// Stats summarizes the current dataset.
func (s *Session) Stats() Stats {
	return ComputeStats(s.Clashes(ClashFilter{}))
}

// ResetFailed returns FAILED clashes to PENDING so the next run picks them
// up. It is only ever user-triggered.
func (s *Session) ResetFailed(ctx context.Context) (int, error) {
	ds := s.Dataset()
	if ds == nil {
		return 0, ErrNoDataset
	}
	if s.gate.Active() != "" {
		return 0, ErrRunInProgress
	}
	n := ds.ResetFailed()
	logging.WithFields(ctx, "dataset_id", ds.ID).Info("failed clashes reset", "count", n)
	return n, nil
}

// Export writes the triage export for the current dataset.
func (s *Session) Export(w io.Writer) error {
	ds := s.Dataset()
	if ds == nil {
		return ErrNoDataset
	}
	return WriteExport(w, ds.Snapshot())
}

// StartTriage launches a run over the PENDING clashes and returns its id.
// Use SubscribeProgress or RunResult to follow it.
func (s *Session) StartTriage(ctx context.Context) (string, error) {
	if s.classifier == nil {
		return "", ErrClassifierUnavailable
	}

	// mu is held until the run is registered, so a concurrent Load or Clear
	// always finds the run and cancels it.
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.dataset
	if ds == nil {
		return "", ErrNoDataset
	}

	runID := uuid.New().String()
	if !s.gate.TryAcquire(runID) {
		return "", ErrRunInProgress
	}
	if pending, _ := ds.Pending(); len(pending) == 0 {
		s.gate.Release()
		return "", ErrNothingPending
	}

	// The run outlives the request that started it but keeps its values
	// (request id) for logging.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	run := &activeRun{
		ID:        runID,
		DatasetID: ds.ID,
		Cancel:    cancel,
		Done:      make(chan struct{}),
		progress:  RunProgress{RunID: runID, Phase: PhaseStarting},
	}
	s.runs.Set(runID, run, gocache.NoExpiration)
	logging.WithRun(ctx, runID).Info("triage run requested", append([]any{"dataset_id", ds.ID}, clientFields(ctx)...)...)

	go func() {
		defer s.gate.Release()
		defer cancel()

		summary := s.orchestrator.Run(runCtx, runID, ds, run.update)
		run.finish(summary)
		s.runs.Set(runID, run, s.retention)
	}()

	return runID, nil
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the run finishes. Slow listeners may miss
// intermediate updates; RunProgress always has the latest state.
func (s *Session) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan RunProgress, 10)

	run.mu.Lock()
	defer run.mu.Unlock()
	ch <- run.progress
	if run.result != nil {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// CancelTriage stops a run before its next batch.
func (s *Session) CancelTriage(runID string) error {
	run, err := s.lookup(runID)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// RunProgress returns the latest progress without blocking.
func (s *Session) RunProgress(runID string) (RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunProgress{}, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.progress, nil
}

// RunResult blocks until the run finishes or ctx ends.
func (s *Session) RunResult(ctx context.Context, runID string) (RunSummary, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunSummary{}, err
	}

	select {
	case <-run.Done:
	case <-ctx.Done():
		return RunSummary{}, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return *run.result, nil
}

// ActiveRun returns the id of the running triage, or "".
func (s *Session) ActiveRun() string {
	return s.gate.Active()
}

// WaitForRuns blocks until no run is active or ctx ends.
func (s *Session) WaitForRuns(ctx context.Context) error {
	return s.gate.WaitForDrain(ctx)
}

// Shutdown cancels the active run and waits for it to stop.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancelActive()
	s.mu.Unlock()
	return s.WaitForRuns(ctx)
}

func (s *Session) lookup(runID string) (*activeRun, error) {
	v, ok := s.runs.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return v.(*activeRun), nil
}

// cancelActive cancels the run holding the gate. Callers replacing the
// dataset hold mu so the run is always registered by the time it is seen.
func (s *Session) cancelActive() {
	if id := s.gate.Active(); id != "" {
		if run, err := s.lookup(id); err == nil {
			run.Cancel()
		}
	}
}

// update records p and fans it out to listeners.
func (r *activeRun) update(p RunProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = p
	for _, ch := range r.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the summary, closes listeners and releases waiters.
func (r *activeRun) finish(summary RunSummary) {
	r.mu.Lock()
	r.result = &summary
	for _, ch := range r.listeners {
		close(ch)
	}
	r.listeners = nil
	r.mu.Unlock()

	close(r.Done)
}
