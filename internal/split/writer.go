// internal/split/writer.go
package split

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/manu4linux/archivedir/internal/core"
	"github.com/manu4linux/archivedir/internal/sink"
)

// PartName renders the object name of part index for an archive base
// name, zero-padded so lexical order matches numeric order.
func PartName(base string, index int) string {
	return fmt.Sprintf("%s.part_%03d", base, index)
}

// Writer slices a stream into fixed-capacity parts and stores each
// one in the sink as it fills. Each part is spooled to a local temp
// file first so the sink can replay it on retry.
type Writer struct {
	ctx    context.Context
	sink   sink.Sink
	base   string
	cap    int64
	tmpDir string
	logger *zap.Logger

	// report, if non-nil, receives byte deltas and the index of the
	// part currently being written.
	report func(delta int64, part int)

	cur     *os.File
	curSize int64
	next    int
	parts   []core.Part
	written int64
}

// NewWriter creates a part writer. capBytes is the maximum part size;
// values below one byte fall back to the default split size.
func NewWriter(ctx context.Context, s sink.Sink, base string, capBytes int64, logger *zap.Logger, report func(delta int64, part int)) *Writer {
	if capBytes < 1 {
		capBytes = core.DefaultSplitSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		ctx:    ctx,
		sink:   s,
		base:   base,
		cap:    capBytes,
		tmpDir: os.TempDir(),
		logger: logger,
		report: report,
	}
}

// Write implements io.Writer. Part files are opened lazily, so a
// stream whose size is an exact multiple of the capacity never
// produces a trailing empty part.
func (w *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := w.ctx.Err(); err != nil {
			return total, err
		}
		if w.cur == nil {
			if err := w.openPart(); err != nil {
				return total, err
			}
		}

		room := w.cap - w.curSize
		n := int64(len(p))
		if n > room {
			n = room
		}
		written, err := w.cur.Write(p[:n])
		w.curSize += int64(written)
		w.written += int64(written)
		total += written
		if w.report != nil && written > 0 {
			w.report(int64(written), w.next)
		}
		if err != nil {
			return total, core.WrapError(core.ErrPartIO,
				fmt.Errorf("writing part %d: %w", w.next, err))
		}
		p = p[n:]

		if w.curSize == w.cap {
			if err := w.flushPart(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (w *Writer) openPart() error {
	f, err := os.CreateTemp(w.tmpDir, "archivedir-part-*")
	if err != nil {
		return core.WrapError(core.ErrPartIO, fmt.Errorf("creating part spool: %w", err))
	}
	w.cur = f
	w.curSize = 0
	return nil
}

// flushPart uploads the current spool file as the next part and
// removes it.
func (w *Writer) flushPart() error {
	f := w.cur
	w.cur = nil
	defer func() {
		name := f.Name()
		f.Close()
		os.Remove(name)
	}()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return core.WrapError(core.ErrPartIO, fmt.Errorf("rewinding part spool: %w", err))
	}

	name := PartName(w.base, w.next)
	w.logger.Info("storing part",
		zap.String("part", name),
		zap.Int64("bytes", w.curSize))

	if err := w.sink.Store(w.ctx, name, f, w.curSize); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}

	w.parts = append(w.parts, core.Part{Index: w.next, Name: name, Size: w.curSize})
	w.next++
	return nil
}

// Close flushes the final partial part. It must be called exactly
// once after the stream ends; a failed Close leaves already-stored
// parts in place.
func (w *Writer) Close() error {
	if w.cur == nil {
		return nil
	}
	if w.curSize == 0 {
		// Never store a zero-length part.
		name := w.cur.Name()
		w.cur.Close()
		os.Remove(name)
		w.cur = nil
		return nil
	}
	return w.flushPart()
}

// Abort discards the in-progress spool and deletes any parts already
// stored, best effort.
func (w *Writer) Abort(ctx context.Context) {
	if w.cur != nil {
		name := w.cur.Name()
		w.cur.Close()
		os.Remove(name)
		w.cur = nil
	}
	for _, part := range w.parts {
		if err := w.sink.Delete(ctx, part.Name); err != nil {
			w.logger.Warn("could not delete part during abort",
				zap.String("part", part.Name), zap.Error(err))
		}
	}
	w.parts = nil
}

// Parts returns the parts stored so far, in index order.
func (w *Writer) Parts() []core.Part { return w.parts }

// BytesWritten returns the total bytes accepted by the writer.
func (w *Writer) BytesWritten() int64 { return w.written }
