package core

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/JonMunkholm/clashtriage/internal/logging"
)

// Orchestrator defaults.
const (
	DefaultBatchSize   = 10
	DefaultCooldown    = 500 * time.Millisecond
	DefaultCallTimeout = 2 * time.Minute
)

// Orchestrator classifies the PENDING clashes of a dataset in sequential
// batches.
type Orchestrator struct {
	classifier  Classifier
	batchSize   int
	cooldown    time.Duration
	callTimeout time.Duration
}

// OrchestratorConfig tunes batching. Zero values take the defaults; a
// negative cooldown disables the pause between batches.
type OrchestratorConfig struct {
	BatchSize   int
	Cooldown    time.Duration
	CallTimeout time.Duration
}

// NewOrchestrator creates an orchestrator that sends batches to classifier.
func NewOrchestrator(classifier Classifier, cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		classifier:  classifier,
		batchSize:   cfg.BatchSize,
		cooldown:    cfg.Cooldown,
		callTimeout: cfg.CallTimeout,
	}
	if o.batchSize <= 0 {
		o.batchSize = DefaultBatchSize
	}
	if o.cooldown == 0 {
		o.cooldown = DefaultCooldown
	}
	if o.callTimeout <= 0 {
		o.callTimeout = DefaultCallTimeout
	}
	return o
}

// ProgressFunc receives a progress update after every state change.
type ProgressFunc func(RunProgress)

// Run classifies every PENDING clash in ds.
//
// Batches run strictly one after another. Cancelling ctx stops the run
// before the next batch starts; a call already in flight is allowed to
// finish and its results are kept. Clashes never dispatched stay PENDING.
// Classification failures are recorded as FAILED clashes, never returned.
func (o *Orchestrator) Run(ctx context.Context, runID string, ds *Dataset, onProgress ProgressFunc) RunSummary {
	start := time.Now()
	log := logging.WithRun(ctx, runID)

	pending, processed := ds.Pending()
	total := len(pending) + processed
	batches := chunk(pending, o.batchSize)

	summary := RunSummary{
		RunID:    runID,
		Selected: len(pending),
		Batches:  len(batches),
	}
	progress := RunProgress{
		RunID:    runID,
		Phase:    PhaseStarting,
		Total:    total,
		Selected: len(pending),
		Batches:  len(batches),
		Percent:  percent(processed, total),
	}
	emit := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}
	emit()

	log.Info("triage run started", "selected", len(pending), "batches", len(batches), "batch_size", o.batchSize)

	for i, batch := range batches {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		progress.Phase = PhaseClassifying
		progress.Batch = i + 1
		emit()

		completed, failed := o.dispatch(ctx, log, ds, i+1, batch)

		summary.Dispatched += len(batch)
		summary.Completed += completed
		summary.Failed += failed
		progress.Dispatched = summary.Dispatched
		progress.Completed = summary.Completed
		progress.Failed = summary.Failed
		progress.Percent = percent(processed+summary.Dispatched, total)

		log.Info("batch settled",
			"batch", i+1,
			"size", len(batch),
			"completed", completed,
			"failed", failed,
			"progress", progress.Percent,
		)
		emit()

		if i == len(batches)-1 || o.cooldown < 0 {
			continue
		}
		progress.Phase = PhaseCooldown
		emit()
		if !sleepCtx(ctx, o.cooldown) {
			summary.Cancelled = true
			break
		}
	}

	summary.Duration = time.Since(start)
	if summary.Cancelled {
		progress.Phase = PhaseCancelled
		log.Info("triage run cancelled", "dispatched", summary.Dispatched, "remaining", summary.Selected-summary.Dispatched)
	} else {
		progress.Phase = PhaseComplete
		log.Info("triage run complete",
			"completed", summary.Completed,
			"failed", summary.Failed,
			"duration", summary.Duration,
		)
	}
	emit()
	return summary
}

// dispatch sends one batch and settles every member to COMPLETED or FAILED.
func (o *Orchestrator) dispatch(ctx context.Context, log *slog.Logger, ds *Dataset, n int, batch []RawClash) (completed, failed int) {
	ids := make([]string, len(batch))
	for i, c := range batch {
		ids[i] = c.ID
	}
	ds.MarkProcessing(ids)

	// Cancellation is checked between batches only; the call itself is
	// bounded by the timeout.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.callTimeout)
	defer cancel()

	results, err := o.classifier.ClassifyBatch(callCtx, batch)
	if err != nil || len(results) == 0 {
		if err != nil {
			log.Warn("batch classification failed", "batch", n, "size", len(batch), "error", err)
		} else {
			log.Warn("batch classification returned no results", "batch", n, "size", len(batch))
		}
		return ds.ApplyResults(ids, nil)
	}

	byID := make(map[string]ClassificationResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	return ds.ApplyResults(ids, byID)
}

func chunk(clashes []RawClash, size int) [][]RawClash {
	var out [][]RawClash
	for start := 0; start < len(clashes); start += size {
		end := min(start+size, len(clashes))
		out = append(out, clashes[start:end])
	}
	return out
}

// percent rounds done/total to a whole percentage. It only reaches 100
// once every clash has been dispatched.
func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	p := int(math.Round(100 * float64(done) / float64(total)))
	if p >= 100 && done < total {
		return 99
	}
	return p
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
