// internal/sink/retry.go
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/manu4linux/archivedir/internal/core"
)

// RetryConfig controls the retry wrapper.
type RetryConfig struct {
	// Attempts is the total number of tries per operation.
	Attempts int

	// BaseDelay is the delay before the first retry; it doubles on
	// each subsequent retry.
	BaseDelay time.Duration

	// AttemptTimeout bounds each individual attempt. Zero disables
	// the per-attempt deadline.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig matches the upload behavior the backends are
// tuned for.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  3,
		BaseDelay: 2 * time.Second,
	}
}

// Retry wraps a Sink with bounded retries. Only failures classified
// as transient are retried; permanent failures, local I/O failures
// and context cancellation abort immediately.
type Retry struct {
	inner   Sink
	cfg     RetryConfig
	logger  *zap.Logger
	onRetry func()
}

// NewRetry wraps inner with the retry policy. onRetry, if non-nil, is
// invoked once per retry attempt (metrics hook).
func NewRetry(inner Sink, cfg RetryConfig, logger *zap.Logger, onRetry func()) *Retry {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retry{inner: inner, cfg: cfg, logger: logger, onRetry: onRetry}
}

// do runs op up to cfg.Attempts times. rewind, if non-nil, is called
// before each retry to reset the operation's input. timed applies the
// per-attempt deadline; operations whose result outlives the call
// (Open's stream) must not use it.
func (rt *Retry) do(ctx context.Context, name string, timed bool, rewind func() error, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < rt.cfg.Attempts; attempt++ {
		if attempt > 0 {
			if rt.onRetry != nil {
				rt.onRetry()
			}
			delay := rt.cfg.BaseDelay << (attempt - 1)
			rt.logger.Warn("retrying sink operation",
				zap.String("operation", name),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if rewind != nil {
				if err := rewind(); err != nil {
					return core.WrapError(core.ErrPartIO,
						fmt.Errorf("rewinding for retry: %w", err))
				}
			}
		}

		var err error
		if timed && rt.cfg.AttemptTimeout > 0 {
			attemptCtx, cancel := context.WithTimeout(ctx, rt.cfg.AttemptTimeout)
			err = op(attemptCtx)
			cancel()
		} else {
			err = op(ctx)
		}

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !errors.Is(err, core.ErrSinkTransient) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Store implements Sink. Seekable bodies are rewound between
// attempts; a non-seekable body cannot be replayed, so it gets a
// single attempt.
func (rt *Retry) Store(ctx context.Context, name string, r io.Reader, size int64) error {
	var rewind func() error
	if seeker, ok := r.(io.Seeker); ok {
		rewind = func() error {
			_, err := seeker.Seek(0, io.SeekStart)
			return err
		}
	}
	if rewind == nil {
		return rt.inner.Store(ctx, name, r, size)
	}
	return rt.do(ctx, "store", true, rewind, func(ctx context.Context) error {
		return rt.inner.Store(ctx, name, r, size)
	})
}

// Open implements Sink. Only the open call is retried; read errors on
// the returned stream surface to the caller.
func (rt *Retry) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := rt.do(ctx, "open", false, nil, func(ctx context.Context) error {
		var err error
		rc, err = rt.inner.Open(ctx, name)
		return err
	})
	return rc, err
}

// List implements Sink.
func (rt *Retry) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := rt.do(ctx, "list", true, nil, func(ctx context.Context) error {
		var err error
		names, err = rt.inner.List(ctx, prefix)
		return err
	})
	return names, err
}

// Delete implements Sink.
func (rt *Retry) Delete(ctx context.Context, name string) error {
	return rt.do(ctx, "delete", true, nil, func(ctx context.Context) error {
		return rt.inner.Delete(ctx, name)
	})
}

// Exists implements Sink.
func (rt *Retry) Exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := rt.do(ctx, "exists", true, nil, func(ctx context.Context) error {
		var err error
		ok, err = rt.inner.Exists(ctx, name)
		return err
	})
	return ok, err
}
