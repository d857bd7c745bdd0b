// internal/sink/dest.go
package sink

import (
	"fmt"
	"strings"

	"github.com/manu4linux/archivedir/internal/core"
)

// Scheme identifies a destination backend.
type Scheme string

const (
	SchemeLocal    Scheme = "local"
	SchemeS3       Scheme = "s3"
	SchemeGDrive   Scheme = "gdrive"
	SchemeOneDrive Scheme = "onedrive"
)

// Destination is a parsed destination specifier.
type Destination struct {
	Scheme Scheme

	// Bucket is the S3 bucket name. Empty for other schemes.
	Bucket string

	// Path is the local directory, S3 key prefix, or remote folder
	// path depending on the scheme.
	Path string
}

// ParseDestination parses a destination specifier. Recognized forms:
//
//	/backups/nightly          local directory
//	s3://bucket/prefix        S3 bucket with optional key prefix
//	gdrive://Backups/nightly  Google Drive folder path
//	onedrive://Backups        OneDrive folder path
func ParseDestination(raw string) (Destination, error) {
	if raw == "" {
		return Destination{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("destination is empty"))
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Destination{Scheme: SchemeLocal, Path: raw}, nil
	}

	switch Scheme(scheme) {
	case SchemeS3:
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Destination{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("s3 destination %q has no bucket", raw))
		}
		return Destination{
			Scheme: SchemeS3,
			Bucket: bucket,
			Path:   strings.TrimSuffix(prefix, "/"),
		}, nil
	case SchemeGDrive, SchemeOneDrive:
		return Destination{
			Scheme: Scheme(scheme),
			Path:   strings.Trim(rest, "/"),
		}, nil
	default:
		return Destination{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown destination scheme %q", scheme))
	}
}

// String renders the destination back in specifier form.
func (d Destination) String() string {
	switch d.Scheme {
	case SchemeS3:
		if d.Path == "" {
			return "s3://" + d.Bucket
		}
		return "s3://" + d.Bucket + "/" + d.Path
	case SchemeGDrive, SchemeOneDrive:
		return string(d.Scheme) + "://" + d.Path
	default:
		return d.Path
	}
}
