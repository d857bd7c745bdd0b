// internal/backup/backup.go
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manu4linux/archivedir/internal/archive"
	"github.com/manu4linux/archivedir/internal/compress"
	"github.com/manu4linux/archivedir/internal/config"
	"github.com/manu4linux/archivedir/internal/core"
	"github.com/manu4linux/archivedir/internal/crypto"
	"github.com/manu4linux/archivedir/internal/metrics"
	"github.com/manu4linux/archivedir/internal/pipeline"
	"github.com/manu4linux/archivedir/internal/progress"
	"github.com/manu4linux/archivedir/internal/sink"
	"github.com/manu4linux/archivedir/internal/split"
)

// MultiSourceBase is the archive base used when more than one source
// directory is backed up into a single archive.
const MultiSourceBase = "multi_backup"

// Runner executes backup and extract operations against a configured
// destination.
type Runner struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry
}

// New creates a Runner. A nil metrics registry disables recording.
func New(cfg *config.Config, logger *zap.Logger, reg *metrics.Registry) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger, metrics: reg}
}

// BaseName derives the archive base name from the source list:
// the basename of a single source, or a fixed multi-source name.
// Encrypted archives carry an .enc suffix so their nature is visible
// in a listing.
func BaseName(sources []string, encrypted bool) string {
	var base string
	if len(sources) == 1 {
		base = filepath.Base(filepath.Clean(sources[0]))
	} else {
		base = MultiSourceBase
	}
	base += ".tar.gz"
	if encrypted {
		base += ".enc"
	}
	return base
}

// Backup archives the configured sources into the destination as a
// sequence of parts. On any failure, parts stored so far are removed
// best effort so a retry starts clean.
func (r *Runner) Backup(ctx context.Context) (*core.Result, error) {
	start := time.Now()
	result, err := r.backup(ctx)
	elapsed := time.Since(start).Seconds()

	if r.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		r.metrics.RecordBackup(status, elapsed)
	}
	if err != nil {
		return nil, err
	}
	result.Duration = elapsed
	return result, nil
}

func (r *Runner) backup(ctx context.Context) (*core.Result, error) {
	cfg := r.cfg
	logger := r.logger.With(zap.String("run_id", uuid.NewString()[:8]))

	sources := cfg.Backup.Sources
	if len(sources) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("no backup sources configured"))
	}
	for _, src := range sources {
		if _, err := os.Stat(src); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("source %s: %w", src, err))
		}
	}

	s, err := r.openSink(ctx, cfg.Backup.Destination, logger)
	if err != nil {
		return nil, err
	}

	excludes := r.excludes()
	base := BaseName(sources, cfg.Encryption.Enabled)
	logger.Info("starting backup",
		zap.Strings("sources", sources),
		zap.String("destination", cfg.Backup.Destination),
		zap.String("archive", base),
		zap.Int64("split_size", cfg.SplitSizeBytes()),
		zap.Bool("encrypted", cfg.Encryption.Enabled))

	agg := progress.NewAggregator()
	scan, err := archive.Scan(sources, excludes)
	if err != nil {
		logger.Warn("source scan failed, progress totals unavailable", zap.Error(err))
	} else {
		agg.SetTotal(scan.Bytes)
		if r.metrics != nil {
			r.metrics.AddSourceBytes(scan.Bytes)
		}
		logger.Info("scanned sources",
			zap.Int64("bytes", scan.Bytes),
			zap.Int("files", scan.Files),
			zap.Int("excluded", scan.Excluded))
	}

	stages := []pipeline.Stage{
		archive.NewTar(sources, excludes, logger),
		compress.NewGzip(cfg.Backup.CompressLevel),
	}

	if cfg.Encryption.Enabled {
		salt, err := r.salt()
		if err != nil {
			return nil, err
		}
		// The metadata object is stored before any part so a partial
		// run never leaves undecryptable parts behind.
		meta := crypto.NewMetadata(salt, cfg.Encryption.Iterations)
		if err := crypto.SaveMetadata(ctx, s, base, meta); err != nil {
			return nil, err
		}
		stages = append(stages, crypto.NewEncrypt(cfg.Encryption.Password, salt, cfg.Encryption.Iterations))
	}

	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go progress.NewReporter(agg, logger, r.progressInterval()).Run(reporterCtx)

	w := split.NewWriter(ctx, s, base, cfg.SplitSizeBytes(), logger, func(delta int64, part int) {
		agg.Report(delta, part)
	})

	runner := pipeline.New(logger, stages...)
	logger.Debug("running pipeline", zap.String("stages", runner.Describe()))

	if err := runner.Run(ctx, nil, w); err != nil {
		r.abort(ctx, w, s, base, logger)
		agg.Finish()
		return nil, err
	}
	if err := w.Close(); err != nil {
		r.abort(ctx, w, s, base, logger)
		agg.Finish()
		return nil, err
	}
	agg.Finish()

	parts := w.Parts()
	if r.metrics != nil {
		r.metrics.AddBytesWritten(w.BytesWritten())
		for range parts {
			r.metrics.RecordPart()
		}
	}
	for _, p := range parts {
		logger.Info("part stored",
			zap.String("name", p.Name),
			zap.Int64("size", p.Size))
	}
	fields := []zap.Field{
		zap.Int("parts", len(parts)),
		zap.Int64("bytes_written", w.BytesWritten()),
	}
	if scan.Bytes > 0 {
		fields = append(fields, zap.Float64("ratio",
			float64(w.BytesWritten())/float64(scan.Bytes)))
	}
	logger.Info("backup complete", fields...)

	return &core.Result{
		Parts:        parts,
		BytesWritten: w.BytesWritten(),
		SourceBytes:  scan.Bytes,
	}, nil
}

// abort removes, best effort, everything a failed run stored: the
// parts committed so far and, for encrypted runs, the metadata object
// written before the first part.
func (r *Runner) abort(ctx context.Context, w *split.Writer, s sink.Sink, base string, logger *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	w.Abort(ctx)
	if r.cfg.Encryption.Enabled {
		name := crypto.MetadataName(base)
		if err := s.Delete(ctx, name); err != nil {
			logger.Warn("failed to remove metadata object",
				zap.String("name", name),
				zap.Error(err))
		}
	}
}

// openSink parses the destination and builds its retry-wrapped sink.
func (r *Runner) openSink(ctx context.Context, destination string, logger *zap.Logger) (sink.Sink, error) {
	dest, err := sink.ParseDestination(destination)
	if err != nil {
		return nil, err
	}

	s, err := sink.New(ctx, dest, sink.Config{
		S3: sink.S3Config{
			Endpoint:  r.cfg.S3.Endpoint,
			Region:    r.cfg.S3.Region,
			AccessKey: r.cfg.S3.AccessKey,
			SecretKey: r.cfg.S3.SecretKey,
		},
		GDrive: sink.GDriveConfig{
			ClientID:     r.cfg.GDrive.ClientID,
			ClientSecret: r.cfg.GDrive.ClientSecret,
			RefreshToken: r.cfg.GDrive.RefreshToken,
		},
		OneDrive: sink.OneDriveConfig{
			ClientID:     r.cfg.OneDrive.ClientID,
			ClientSecret: r.cfg.OneDrive.ClientSecret,
			RefreshToken: r.cfg.OneDrive.RefreshToken,
			TenantID:     r.cfg.OneDrive.TenantID,
		},
	})
	if err != nil {
		return nil, err
	}

	var onRetry func()
	if r.metrics != nil {
		onRetry = r.metrics.RecordRetry
	}
	return sink.NewRetry(s, sink.RetryConfig{
		Attempts:       r.cfg.Retry.Attempts,
		BaseDelay:      r.cfg.Retry.BaseDelay,
		AttemptTimeout: r.cfg.Retry.AttemptTimeout,
	}, logger, onRetry), nil
}

// excludes merges the configured patterns with the defaults.
func (r *Runner) excludes() []string {
	patterns := append([]string(nil), r.cfg.Backup.Excludes...)
	if r.cfg.Backup.DefaultExcludes {
		patterns = append(patterns, archive.DefaultExcludes...)
	}
	return patterns
}

// salt returns the configured salt or generates a fresh one.
func (r *Runner) salt() ([]byte, error) {
	if s := r.cfg.Encryption.Salt; s != "" {
		salt, err := crypto.ParseSalt(s)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		return salt, nil
	}
	return crypto.GenerateSalt()
}

func (r *Runner) progressInterval() time.Duration {
	if s := strings.TrimSpace(r.cfg.Backup.ProgressEvery); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return progress.DefaultInterval
}
