// internal/archive/tar.go
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Tar is the archive stage: it streams a PAX tar of one or more
// source paths. Each source is archived under its base name, so
// extraction recreates `<basename>/...` trees. The stage ignores its
// input reader; it produces from the filesystem.
type Tar struct {
	sources  []string
	excludes []string
	logger   *zap.Logger
}

// NewTar creates the tar stage. Exclude patterns follow the semantics
// of Excluded.
func NewTar(sources, excludes []string, logger *zap.Logger) *Tar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tar{sources: sources, excludes: excludes, logger: logger}
}

// Name implements pipeline.Stage.
func (t *Tar) Name() string { return "tar" }

// Run implements pipeline.Stage.
func (t *Tar) Run(ctx context.Context, _ io.Reader, w io.Writer) error {
	tw := tar.NewWriter(w)
	for _, src := range t.sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", src, err)
		}
		if err := t.addPath(ctx, tw, abs); err != nil {
			return err
		}
	}
	return tw.Close()
}

func (t *Tar) addPath(ctx context.Context, tw *tar.Writer, root string) error {
	arcRoot := filepath.Base(root)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		arcname := arcRoot
		if rel != "." {
			arcname = arcRoot + "/" + filepath.ToSlash(rel)
		}

		if Excluded(arcname, t.excludes) {
			t.logger.Debug("excluded", zap.String("entry", arcname))
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		return t.writeEntry(tw, path, arcname, info)
	})
}

func (t *Tar) writeEntry(tw *tar.Writer, path, arcname string, info os.FileInfo) error {
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		var err error
		if link, err = os.Readlink(path); err != nil {
			return fmt.Errorf("reading link %s: %w", path, err)
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("header for %s: %w", path, err)
	}
	hdr.Name = arcname
	hdr.Format = tar.FormatPAX
	if info.IsDir() {
		hdr.Name += "/"
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header %s: %w", arcname, err)
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	return nil
}

// Untar is the extraction stage: it streams a tar into a destination
// directory, restoring relative paths, contents, permissions and
// symlinks. The stage writes nothing downstream.
type Untar struct {
	dest   string
	logger *zap.Logger
}

// NewUntar creates the extraction stage.
func NewUntar(dest string, logger *zap.Logger) *Untar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Untar{dest: dest, logger: logger}
}

// Name implements pipeline.Stage.
func (u *Untar) Name() string { return "untar" }

// Run implements pipeline.Stage.
func (u *Untar) Run(ctx context.Context, r io.Reader, _ io.Writer) error {
	if err := os.MkdirAll(u.dest, 0755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		target, err := u.safePath(hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("creating dir %s: %w", hdr.Name, err)
			}
			// MkdirAll honors umask and leaves pre-existing dirs
			// untouched; restore the archived mode exactly.
			if err := os.Chmod(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("setting mode on %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := u.extractFile(tr, target, hdr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s: %w", hdr.Name, err)
			}
		case tar.TypeLink:
			linkTarget, err := u.safePath(hdr.Linkname)
			if err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Link(linkTarget, target); err != nil {
				return fmt.Errorf("creating hardlink %s: %w", hdr.Name, err)
			}
		default:
			u.logger.Debug("skipping unsupported entry",
				zap.String("entry", hdr.Name),
				zap.Uint8("type", hdr.Typeflag),
			)
		}
	}
}

// safePath resolves an archive entry name under the destination,
// rejecting absolute paths and traversal outside the destination.
func (u *Untar) safePath(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path in archive: %s", name)
	}
	return filepath.Join(u.dest, cleaned), nil
}

func (u *Untar) extractFile(tr *tar.Reader, target string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
	if err != nil {
		return fmt.Errorf("creating %s: %w", hdr.Name, err)
	}

	if _, err := io.Copy(f, tr); err != nil {
		f.Close()
		return fmt.Errorf("extracting %s: %w", hdr.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", hdr.Name, err)
	}

	// O_CREATE honors umask; restore the archived mode exactly.
	return os.Chmod(target, os.FileMode(hdr.Mode))
}
