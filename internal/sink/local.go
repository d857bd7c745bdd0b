// internal/sink/local.go
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"

	"github.com/manu4linux/archivedir/internal/core"
)

// Local implements Sink for a local directory. Objects are written to
// a temp file and renamed into place, so readers never observe a
// partially written part.
type Local struct {
	dir string
}

// NewLocal creates a local sink rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.WrapError(core.ErrSinkPermanent,
			fmt.Errorf("creating destination directory: %w", err))
	}
	return &Local{dir: dir}, nil
}

func (l *Local) path(name string) string {
	return filepath.Join(l.dir, name)
}

// Store implements Sink.
func (l *Local) Store(ctx context.Context, name string, r io.Reader, size int64) error {
	t, err := renameio.TempFile(l.dir, l.path(name))
	if err != nil {
		return core.WrapError(core.ErrPartIO, fmt.Errorf("creating temp file: %w", err))
	}
	defer t.Cleanup()

	n, err := io.Copy(t, r)
	if err != nil {
		return core.WrapError(core.ErrPartIO, fmt.Errorf("writing %s: %w", name, err))
	}
	if size >= 0 && n != size {
		return core.WrapError(core.ErrPartIO,
			fmt.Errorf("writing %s: wrote %d bytes, expected %d", name, n, size))
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return core.WrapError(core.ErrPartIO, fmt.Errorf("finalizing %s: %w", name, err))
	}
	return nil
}

// Open implements Sink.
func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(name))
	if err != nil {
		return nil, core.WrapError(core.ErrPartIO, fmt.Errorf("opening %s: %w", name, err))
	}
	return f, nil
}

// List implements Sink. Only direct children are returned; the part
// namespace is flat.
func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, core.WrapError(core.ErrPartIO, fmt.Errorf("listing destination: %w", err))
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if prefix == "" || len(e.Name()) >= len(prefix) && e.Name()[:len(prefix)] == prefix {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Sink.
func (l *Local) Delete(ctx context.Context, name string) error {
	if err := os.Remove(l.path(name)); err != nil {
		return core.WrapError(core.ErrPartIO, fmt.Errorf("deleting %s: %w", name, err))
	}
	return nil
}

// Exists implements Sink.
func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(l.path(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, core.WrapError(core.ErrPartIO, fmt.Errorf("stat %s: %w", name, err))
	}
	return true, nil
}
