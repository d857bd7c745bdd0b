// internal/progress/progress.go
package progress

import "sync"

// State is a point-in-time snapshot of a run's progress. BytesTotal
// is the pre-scan source size estimate and may be zero when no scan
// ran; BytesDone counts bytes handed to the destination stream, which
// is compressed and therefore not directly comparable to BytesTotal.
type State struct {
	BytesTotal int64
	BytesDone  int64
	PartIndex  int
	Done       bool
}

// Aggregator collects progress reports from the pipeline. It is safe
// for concurrent use; reports arriving after Finish are discarded.
type Aggregator struct {
	mu    sync.Mutex
	state State
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// SetTotal records the expected source byte count from the pre-scan.
func (a *Aggregator) SetTotal(total int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Done {
		return
	}
	a.state.BytesTotal = total
}

// Report adds delta bytes and records the active part index.
// BytesDone never decreases; negative deltas are ignored.
func (a *Aggregator) Report(delta int64, part int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Done || delta < 0 {
		return
	}
	a.state.BytesDone += delta
	if part > a.state.PartIndex {
		a.state.PartIndex = part
	}
}

// Finish marks the run complete. Further reports are discarded, so a
// straggling pipeline goroutine cannot move a finished counter.
func (a *Aggregator) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Done = true
}

// Snapshot returns the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
