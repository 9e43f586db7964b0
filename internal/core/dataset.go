package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dataset is the ordered set of clashes loaded from one file.
//
// All mutations merge by clash id, never by position, so a run holding a
// stale snapshot can only touch records that still exist.
type Dataset struct {
	ID       string
	FileName string
	LoadedAt time.Time

	mu      sync.RWMutex
	clashes []EnrichedClash
	index   map[string]int
}

// NewDataset wraps parsed clashes as PENDING records. Duplicate ids keep the
// first occurrence.
func NewDataset(fileName string, raw []RawClash) *Dataset {
	d := &Dataset{
		ID:       uuid.New().String(),
		FileName: fileName,
		LoadedAt: time.Now(),
		clashes:  make([]EnrichedClash, 0, len(raw)),
		index:    make(map[string]int, len(raw)),
	}
	for _, r := range raw {
		if _, dup := d.index[r.ID]; dup {
			continue
		}
		d.index[r.ID] = len(d.clashes)
		d.clashes = append(d.clashes, NewEnrichedClash(r))
	}
	return d
}

// Len returns the number of clashes.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clashes)
}

// Snapshot returns a copy of all clashes in dataset order.
func (d *Dataset) Snapshot() []EnrichedClash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]EnrichedClash, len(d.clashes))
	copy(out, d.clashes)
	return out
}

// Get returns the clash with id.
func (d *Dataset) Get(id string) (EnrichedClash, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[id]
	if !ok {
		return EnrichedClash{}, false
	}
	return d.clashes[i], true
}

// Pending returns the PENDING clashes in dataset order and the number of
// clashes in any other state.
func (d *Dataset) Pending() (pending []RawClash, processed int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.clashes {
		if c.Status == StatusPending {
			pending = append(pending, c.RawClash)
		} else {
			processed++
		}
	}
	return pending, processed
}

// MarkProcessing moves the given PENDING clashes to PROCESSING.
func (d *Dataset) MarkProcessing(ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		if i, ok := d.index[id]; ok && d.clashes[i].Status == StatusPending {
			d.clashes[i].Status = StatusProcessing
		}
	}
}

// ApplyResults settles a dispatched batch. Each id with a result becomes
// COMPLETED with the classification copied in; every other id becomes
// FAILED. Ids no longer in the dataset are ignored.
func (d *Dataset) ApplyResults(ids []string, results map[string]ClassificationResult) (completed, failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		i, ok := d.index[id]
		if !ok {
			continue
		}
		c := &d.clashes[i]
		res, found := results[id]
		if !found {
			c.Status = StatusFailed
			failed++
			continue
		}
		c.Status = StatusCompleted
		c.AISeverity = res.Severity
		c.AIResponsibility = res.Responsibility
		c.AIDescription = res.Description
		c.AIReasoning = res.Reasoning
		completed++
	}
	return completed, failed
}

// ResetFailed returns every FAILED clash to PENDING and reports how many
// were reset.
func (d *Dataset) ResetFailed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for i := range d.clashes {
		if d.clashes[i].Status == StatusFailed {
			d.clashes[i].Status = StatusPending
			n++
		}
	}
	return n
}
