package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const sessionCSV = "Clash Name,Distance,Item 1 Name,Item 1 Layer,Item 2 Name,Item 2 Layer\n" +
	"C1,0.1,DuctA,L1,BeamA,L2\n" +
	"C2,0.2,DuctB,L1,BeamB,L2\n" +
	"C3,0.3,DuctC,L1,BeamC,L2\n"

func newTestSession(c Classifier) *Session {
	return NewSession(c, SessionConfig{
		Triage: OrchestratorConfig{BatchSize: 2, Cooldown: -1},
	})
}

func loadSession(t *testing.T, s *Session) {
	t.Helper()
	res, err := s.Load(context.Background(), "clashes.csv", strings.NewReader(sessionCSV))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.Count != 3 {
		t.Fatalf("Load() count = %d, want 3", res.Count)
	}
}

func waitResult(t *testing.T, s *Session, runID string) RunSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := s.RunResult(ctx, runID)
	if err != nil {
		t.Fatalf("RunResult() error = %v", err)
	}
	return summary
}

// blockingClassifier holds every call until release is closed.
func blockingClassifier(started chan<- struct{}, release <-chan struct{}) *fakeClassifier {
	return &fakeClassifier{respond: func(_ context.Context, _ int, batch []RawClash) ([]ClassificationResult, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return classifyAll(batch), nil
	}}
}

func TestSession_LoadAndQuery(t *testing.T) {
	s := newTestSession(nil)
	loadSession(t, s)

	if got := len(s.Clashes(ClashFilter{})); got != 3 {
		t.Errorf("Clashes() = %d, want 3", got)
	}
	if got := len(s.Clashes(ClashFilter{Status: StatusCompleted})); got != 0 {
		t.Errorf("completed clashes = %d, want 0", got)
	}

	stats := s.Stats()
	if stats.Total != 3 || stats.ByStatus[StatusPending] != 3 || stats.Progress != 0 {
		t.Errorf("Stats() = %+v", stats)
	}

	s.Clear(context.Background())
	if s.Dataset() != nil {
		t.Error("dataset still present after Clear")
	}
	if got := s.Clashes(ClashFilter{}); got == nil || len(got) != 0 {
		t.Errorf("Clashes() after Clear = %v, want empty", got)
	}
}

func TestSession_LoadErrors(t *testing.T) {
	s := newTestSession(nil)

	if _, err := s.Load(context.Background(), "report.xml", strings.NewReader(sessionCSV)); !errors.Is(err, ErrNotCSV) {
		t.Errorf("Load(xml) error = %v, want ErrNotCSV", err)
	}

	small := NewSession(nil, SessionConfig{MaxImportSize: 10})
	if _, err := small.Load(context.Background(), "big.csv", strings.NewReader(sessionCSV)); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Load(big) error = %v, want ErrFileTooLarge", err)
	}

	res, err := s.Load(context.Background(), "empty.csv", strings.NewReader("Clash Name\n"))
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if res.Count != 0 || s.Dataset() == nil {
		t.Errorf("empty report should load as empty dataset, got %+v", res)
	}
}

func TestSession_StartTriagePreconditions(t *testing.T) {
	t.Run("no classifier", func(t *testing.T) {
		s := newTestSession(nil)
		loadSession(t, s)
		if _, err := s.StartTriage(context.Background()); !errors.Is(err, ErrClassifierUnavailable) {
			t.Errorf("error = %v, want ErrClassifierUnavailable", err)
		}
	})

	t.Run("no dataset", func(t *testing.T) {
		s := newTestSession(&fakeClassifier{})
		if _, err := s.StartTriage(context.Background()); !errors.Is(err, ErrNoDataset) {
			t.Errorf("error = %v, want ErrNoDataset", err)
		}
	})

	t.Run("nothing pending", func(t *testing.T) {
		s := newTestSession(&fakeClassifier{})
		s.Load(context.Background(), "empty.csv", strings.NewReader(""))
		if _, err := s.StartTriage(context.Background()); !errors.Is(err, ErrNothingPending) {
			t.Errorf("error = %v, want ErrNothingPending", err)
		}
		if s.ActiveRun() != "" {
			t.Error("gate not released after failed start")
		}
	})
}

func TestSession_RunToCompletion(t *testing.T) {
	s := newTestSession(&fakeClassifier{})
	loadSession(t, s)

	runID, err := s.StartTriage(context.Background())
	if err != nil {
		t.Fatalf("StartTriage() error = %v", err)
	}

	summary := waitResult(t, s, runID)
	if summary.Completed != 3 || summary.Batches != 2 || summary.Cancelled {
		t.Errorf("summary = %+v", summary)
	}
	if err := s.WaitForRuns(context.Background()); err != nil {
		t.Errorf("WaitForRuns() error = %v", err)
	}

	progress, err := s.RunProgress(runID)
	if err != nil {
		t.Fatalf("RunProgress() error = %v", err)
	}
	if progress.Phase != PhaseComplete || progress.Percent != 100 {
		t.Errorf("final progress = %+v", progress)
	}

	// A finished run still answers subscribers with its final state.
	ch, err := s.SubscribeProgress(runID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}
	var got []RunProgress
	for p := range ch {
		got = append(got, p)
	}
	if len(got) != 1 || !got[0].Done() {
		t.Errorf("late subscriber got %+v", got)
	}

	stats := s.Stats()
	if stats.Critical != 3 || stats.CriticalPercent != 100 || stats.Progress != 100 {
		t.Errorf("Stats() = %+v", stats)
	}

	var buf bytes.Buffer
	if err := s.Export(&buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n := strings.Count(buf.String(), `"COMPLETED"`); n != 3 {
		t.Errorf("export has %d completed rows, want 3:\n%s", n, buf.String())
	}

	if _, err := s.StartTriage(context.Background()); !errors.Is(err, ErrNothingPending) {
		t.Errorf("second StartTriage error = %v, want ErrNothingPending", err)
	}
}

func TestSession_SingleActiveRun(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := newTestSession(blockingClassifier(started, release))
	loadSession(t, s)

	runID, err := s.StartTriage(context.Background())
	if err != nil {
		t.Fatalf("StartTriage() error = %v", err)
	}
	<-started

	if _, err := s.StartTriage(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent StartTriage error = %v, want ErrRunInProgress", err)
	}
	if _, err := s.ResetFailed(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("ResetFailed during run error = %v, want ErrRunInProgress", err)
	}
	if got := s.ActiveRun(); got != runID {
		t.Errorf("ActiveRun() = %q, want %q", got, runID)
	}

	close(release)
	waitResult(t, s, runID)
}

func TestSession_CancelTriage(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := newTestSession(blockingClassifier(started, release))
	loadSession(t, s)

	runID, _ := s.StartTriage(context.Background())
	ch, err := s.SubscribeProgress(runID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}
	<-started

	if err := s.CancelTriage(runID); err != nil {
		t.Fatalf("CancelTriage() error = %v", err)
	}
	close(release)

	summary := waitResult(t, s, runID)
	if !summary.Cancelled || summary.Completed != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if got := len(s.Clashes(ClashFilter{Status: StatusPending})); got != 1 {
		t.Errorf("pending after cancel = %d, want 1", got)
	}

	// The channel is closed once the run finishes.
	for range ch {
	}
}

func TestSession_LoadCancelsActiveRun(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := newTestSession(blockingClassifier(started, release))
	loadSession(t, s)

	runID, _ := s.StartTriage(context.Background())
	<-started

	loadSession(t, s)
	close(release)

	summary := waitResult(t, s, runID)
	if !summary.Cancelled {
		t.Error("run not cancelled by Load")
	}
	if got := len(s.Clashes(ClashFilter{Status: StatusPending})); got != 3 {
		t.Errorf("new dataset pending = %d, want 3", got)
	}
}

func TestSession_LoadRacingStartTriage(t *testing.T) {
	report := func(item string) string {
		var b strings.Builder
		b.WriteString("Clash Name,Distance,Item 1 Name,Item 1 Layer,Item 2 Name,Item 2 Layer\n")
		for i := range 20 {
			fmt.Fprintf(&b, "C%d,0.1,%s,L1,Beam,L2\n", i, item)
		}
		return b.String()
	}
	oldReport, newReport := report("Old"), report("New")

	var loaded atomic.Bool
	var late atomic.Int32
	fc := &fakeClassifier{respond: func(_ context.Context, _ int, batch []RawClash) ([]ClassificationResult, error) {
		if loaded.Load() && batch[0].Item1 == "Old" {
			late.Add(1)
		}
		return classifyAll(batch), nil
	}}
	s := NewSession(fc, SessionConfig{Triage: OrchestratorConfig{BatchSize: 1, Cooldown: -1}})
	ctx := context.Background()

	for i := range 50 {
		loaded.Store(false)
		late.Store(0)
		if _, err := s.Load(ctx, "old.csv", strings.NewReader(oldReport)); err != nil {
			t.Fatalf("Load(old) error = %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.StartTriage(ctx)
		}()
		if _, err := s.Load(ctx, "new.csv", strings.NewReader(newReport)); err != nil {
			t.Fatalf("Load(new) error = %v", err)
		}
		loaded.Store(true)
		wg.Wait()

		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.WaitForRuns(waitCtx)
		cancel()
		if err != nil {
			t.Fatalf("iteration %d: WaitForRuns() error = %v", i, err)
		}
		// Only the batch already in flight when Load cancelled the run may
		// still reach the classifier.
		if n := late.Load(); n > 1 {
			t.Fatalf("iteration %d: %d batches of the replaced report classified after Load", i, n)
		}
	}
}

func TestSession_ResetFailed(t *testing.T) {
	fail := true
	fc := &fakeClassifier{respond: func(_ context.Context, _ int, batch []RawClash) ([]ClassificationResult, error) {
		if fail {
			return nil, errors.New("quota exceeded")
		}
		return classifyAll(batch), nil
	}}
	s := newTestSession(fc)

	if _, err := s.ResetFailed(context.Background()); !errors.Is(err, ErrNoDataset) {
		t.Errorf("ResetFailed() without dataset error = %v, want ErrNoDataset", err)
	}

	loadSession(t, s)
	runID, _ := s.StartTriage(context.Background())
	if summary := waitResult(t, s, runID); summary.Failed != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	s.WaitForRuns(context.Background())

	// FAILED clashes are terminal until the user resets them.
	if _, err := s.StartTriage(context.Background()); !errors.Is(err, ErrNothingPending) {
		t.Errorf("StartTriage() error = %v, want ErrNothingPending", err)
	}

	n, err := s.ResetFailed(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("ResetFailed() = %d, %v", n, err)
	}

	fail = false
	runID, err = s.StartTriage(context.Background())
	if err != nil {
		t.Fatalf("StartTriage() error = %v", err)
	}
	if summary := waitResult(t, s, runID); summary.Completed != 3 {
		t.Errorf("retry summary = %+v", summary)
	}
}

func TestSession_UnknownRun(t *testing.T) {
	s := newTestSession(&fakeClassifier{})

	if _, err := s.RunProgress("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("RunProgress() error = %v, want ErrRunNotFound", err)
	}
	if _, err := s.SubscribeProgress("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("SubscribeProgress() error = %v, want ErrRunNotFound", err)
	}
	if err := s.CancelTriage("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("CancelTriage() error = %v, want ErrRunNotFound", err)
	}
	if _, err := s.RunResult(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("RunResult() error = %v, want ErrRunNotFound", err)
	}
}

func TestSession_ExportWithoutDataset(t *testing.T) {
	s := newTestSession(nil)
	if err := s.Export(&bytes.Buffer{}); !errors.Is(err, ErrNoDataset) {
		t.Errorf("Export() error = %v, want ErrNoDataset", err)
	}
}

func TestSession_Preview(t *testing.T) {
	s := newTestSession(nil)

	resp, err := s.Preview("clashes.csv", strings.NewReader(sessionCSV))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if resp.Summary.DataRows != 3 || len(resp.Samples) != 3 || len(resp.UnmappedRoles) != 0 {
		t.Errorf("Preview() = %+v", resp)
	}
	if resp.Columns[2].Role != RoleItem1 {
		t.Errorf("column 2 role = %q, want item1", resp.Columns[2].Role)
	}
	if s.Dataset() != nil {
		t.Error("Preview loaded a dataset")
	}
}
