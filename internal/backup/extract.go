// internal/backup/extract.go
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manu4linux/archivedir/internal/archive"
	"github.com/manu4linux/archivedir/internal/compress"
	"github.com/manu4linux/archivedir/internal/core"
	"github.com/manu4linux/archivedir/internal/crypto"
	"github.com/manu4linux/archivedir/internal/pipeline"
	"github.com/manu4linux/archivedir/internal/split"
)

// Extract restores an archive from the destination into destDir.
// specifier names the archive by base name or by any one of its
// parts.
func (r *Runner) Extract(ctx context.Context, specifier, destDir string) error {
	start := time.Now()
	err := r.extract(ctx, specifier, destDir)

	if r.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		r.metrics.RecordExtract(status, time.Since(start).Seconds())
	}
	return err
}

func (r *Runner) extract(ctx context.Context, specifier, destDir string) error {
	logger := r.logger.With(zap.String("archive", split.BaseName(specifier)))

	s, err := r.openSink(ctx, r.cfg.Backup.Destination, logger)
	if err != nil {
		return err
	}

	base, names, err := split.Discover(ctx, s, specifier)
	if err != nil {
		return err
	}
	logger.Info("discovered archive",
		zap.Int("parts", len(names)),
		zap.String("destination_dir", destDir))

	stages := []pipeline.Stage{}
	if strings.HasSuffix(base, ".enc") {
		dec, err := r.decryptStage(ctx, s, base)
		if err != nil {
			return err
		}
		stages = append(stages, dec)
	}
	stages = append(stages,
		compress.NewGunzip(),
		archive.NewUntar(destDir, logger),
	)

	src := split.NewReader(ctx, s, names)
	defer src.Close()

	if err := pipeline.New(logger, stages...).Run(ctx, src, io.Discard); err != nil {
		return err
	}
	logger.Info("extract complete")
	return nil
}

// decryptStage builds the decryption stage from the stored metadata,
// falling back to explicitly configured salt and iterations when the
// metadata object is gone.
func (r *Runner) decryptStage(ctx context.Context, store crypto.MetadataStore, base string) (pipeline.Stage, error) {
	password := r.cfg.Encryption.Password
	if password == "" {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("archive %s is encrypted but no password is configured", base))
	}

	meta, err := crypto.LoadMetadata(ctx, store, base)
	if err != nil {
		if !errors.Is(err, core.ErrMetadataMissing) {
			return nil, err
		}
		if r.cfg.Encryption.Salt == "" {
			return nil, core.WrapError(core.ErrMetadataMissing,
				fmt.Errorf("metadata for %s is missing and no salt is configured: %w", base, err))
		}
		meta = crypto.Metadata{
			Salt:       r.cfg.Encryption.Salt,
			Iterations: r.cfg.Encryption.Iterations,
			Algorithm:  crypto.Algorithm,
			KDF:        crypto.KDF,
		}
	}

	salt, err := crypto.ParseSalt(meta.Salt)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	return crypto.NewDecrypt(password, salt, meta.Iterations), nil
}
