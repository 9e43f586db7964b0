package core

// run_gate.go serializes triage runs.
//
// Only one run may classify the dataset at a time. The gate is a one-slot
// semaphore: StartTriage takes the slot without blocking and the run
// goroutine gives it back when it finishes. WaitForDrain lets shutdown wait
// for the active run.

import (
	"context"
	"sync"
)

// RunGate admits at most one triage run at a time.
type RunGate struct {
	slot chan struct{}

	mu      sync.Mutex
	active  string
	drained chan struct{}
}

// NewRunGate returns an open gate.
func NewRunGate() *RunGate {
	drained := make(chan struct{})
	close(drained)
	return &RunGate{
		slot:    make(chan struct{}, 1),
		drained: drained,
	}
}

// TryAcquire claims the gate for runID without blocking.
// Returns false when another run holds it.
func (g *RunGate) TryAcquire(runID string) bool {
	select {
	case g.slot <- struct{}{}:
	default:
		return false
	}

	g.mu.Lock()
	g.active = runID
	g.drained = make(chan struct{})
	g.mu.Unlock()
	return true
}

// Release frees the gate. Must be called exactly once per successful TryAcquire.
func (g *RunGate) Release() {
	g.mu.Lock()
	g.active = ""
	close(g.drained)
	g.mu.Unlock()

	<-g.slot
}

// Active returns the id of the run holding the gate, or "".
func (g *RunGate) Active() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// WaitForDrain blocks until no run holds the gate or ctx ends.
func (g *RunGate) WaitForDrain(ctx context.Context) error {
	g.mu.Lock()
	drained := g.drained
	g.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
