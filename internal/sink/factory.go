// internal/sink/factory.go
package sink

import (
	"context"
	"fmt"

	"github.com/manu4linux/archivedir/internal/core"
)

// Config carries backend credentials; only the section matching the
// destination scheme is consulted.
type Config struct {
	S3       S3Config
	GDrive   GDriveConfig
	OneDrive OneDriveConfig
}

// New creates the sink for a parsed destination.
func New(ctx context.Context, dest Destination, cfg Config) (Sink, error) {
	switch dest.Scheme {
	case SchemeLocal:
		return NewLocal(dest.Path)
	case SchemeS3:
		s3cfg := cfg.S3
		s3cfg.Bucket = dest.Bucket
		s3cfg.Prefix = dest.Path
		return NewS3(s3cfg)
	case SchemeGDrive:
		gcfg := cfg.GDrive
		gcfg.FolderPath = dest.Path
		return NewGDrive(ctx, gcfg)
	case SchemeOneDrive:
		ocfg := cfg.OneDrive
		ocfg.FolderPath = dest.Path
		return NewOneDrive(ctx, ocfg)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unsupported destination scheme %q", dest.Scheme))
	}
}
