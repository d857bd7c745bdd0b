// internal/progress/reporter.go
package progress

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often the reporter logs a progress line.
const DefaultInterval = 100 * time.Millisecond

// Reporter periodically logs the aggregator's state while a run is
// active.
type Reporter struct {
	agg      *Aggregator
	logger   *zap.Logger
	interval time.Duration
}

// NewReporter creates a reporter. A non-positive interval falls back
// to DefaultInterval.
func NewReporter(agg *Aggregator, logger *zap.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{agg: agg, logger: logger, interval: interval}
}

// Run logs progress until the context is cancelled or the aggregator
// finishes. It blocks; callers run it in its own goroutine.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var last State
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := r.agg.Snapshot()
			if state.Done {
				return
			}
			if state == last {
				continue
			}
			last = state
			r.logger.Info("progress",
				zap.Int64("bytes_done", state.BytesDone),
				zap.Int64("bytes_total", state.BytesTotal),
				zap.Int("part", state.PartIndex))
		}
	}
}
