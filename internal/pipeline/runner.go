// internal/pipeline/runner.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/manu4linux/archivedir/internal/core"
	"go.uber.org/zap"
)

// Runner drives an ordered list of stages concurrently. Stage i+1
// begins consuming as soon as stage i produces its first bytes; a
// slow downstream stage blocks its upstream through the connecting
// pipe, so no stage materializes its output.
type Runner struct {
	stages []Stage
	logger *zap.Logger
}

// New creates a Runner over the given stages. At least one stage is
// required.
func New(logger *zap.Logger, stages ...Stage) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{stages: stages, logger: logger}
}

// Describe returns the stage chain as "tar -> gzip -> encrypt".
func (p *Runner) Describe() string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return strings.Join(names, " -> ")
}

// stageError records which stage failed first.
type stageError struct {
	stage string
	err   error
}

// Run executes all stages concurrently, feeding src into the first
// stage and the last stage's output into dst. It returns nil only
// when every stage reached end-of-stream without error; otherwise it
// returns a single terminal error identifying the first failing
// stage. Any failure (or ctx cancellation) tears the whole chain
// down: every connecting pipe is closed with the error so blocked
// stages unblock immediately.
func (p *Runner) Run(ctx context.Context, src io.Reader, dst io.Writer) error {
	if len(p.stages) == 0 {
		return core.WrapError(core.ErrStageFailed, fmt.Errorf("empty pipeline"))
	}
	if src == nil {
		src = strings.NewReader("")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Wire stage i's output to stage i+1's input.
	readers := make([]io.Reader, len(p.stages))
	writers := make([]io.Writer, len(p.stages))
	pipeReaders := make([]*io.PipeReader, 0, len(p.stages)-1)
	pipeWriters := make([]*io.PipeWriter, 0, len(p.stages)-1)

	readers[0] = src
	for i := 0; i < len(p.stages)-1; i++ {
		pr, pw := io.Pipe()
		writers[i] = pw
		readers[i+1] = pr
		pipeReaders = append(pipeReaders, pr)
		pipeWriters = append(pipeWriters, pw)
	}
	writers[len(p.stages)-1] = dst

	results := make([]stageError, len(p.stages))
	var wg sync.WaitGroup

	for i, s := range p.stages {
		wg.Add(1)
		go func(i int, s Stage) {
			defer wg.Done()
			err := s.Run(ctx, readers[i], writers[i])

			// Closing the output pipe signals EOF downstream; closing
			// with an error poisons the whole chain. The error is
			// wrapped so neighbouring stages that merely observe the
			// teardown are not blamed for the original failure.
			if i < len(p.stages)-1 {
				if err != nil {
					pipeWriters[i].CloseWithError(&propagatedError{cause: err})
				} else {
					pipeWriters[i].Close()
				}
			}
			if i > 0 && err != nil {
				pipeReaders[i-1].Close()
			}
			if err != nil {
				cancel()
			}
			results[i] = stageError{stage: s.Name(), err: err}
		}(i, s)
	}

	wg.Wait()

	// Attribute the failure to the most upstream stage with a real
	// error: once a stage emits garbage or dies, everything below it
	// fails too, and errors that are just echoes of another stage's
	// teardown are skipped entirely.
	var first, firstReal *stageError
	for i := range results {
		se := results[i]
		if se.err == nil {
			continue
		}
		if first == nil {
			first = &se
		}
		if firstReal == nil && !isTeardownEcho(se.err) {
			firstReal = &se
		}
	}
	if firstReal != nil {
		first = firstReal
	}
	if first == nil {
		if err := ctx.Err(); err != nil {
			return core.WrapError(core.ErrStageFailed, err)
		}
		return nil
	}

	p.logger.Error("pipeline stage failed",
		zap.String("stage", first.stage),
		zap.Error(first.err),
	)
	return core.WrapError(core.ErrStageFailed,
		fmt.Errorf("stage %s: %w", first.stage, first.err))
}

// propagatedError carries a failure through a pipe to a neighbouring
// stage without attributing it to that stage.
type propagatedError struct {
	cause error
}

func (p *propagatedError) Error() string { return p.cause.Error() }
func (p *propagatedError) Unwrap() error { return p.cause }

// isTeardownEcho reports whether err is what a stage sees when a
// neighbour tore the pipeline down, rather than an original failure.
func isTeardownEcho(err error) bool {
	var pe *propagatedError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled)
}
