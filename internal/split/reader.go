// internal/split/reader.go
package split

import (
	"context"
	"fmt"
	"io"

	"github.com/manu4linux/archivedir/internal/core"
	"github.com/manu4linux/archivedir/internal/sink"
)

// Reader concatenates an ordered list of parts into one stream,
// opening each part lazily as the previous one is exhausted.
type Reader struct {
	ctx   context.Context
	sink  sink.Sink
	names []string

	next int
	cur  io.ReadCloser
}

// NewReader creates a reader over the named parts in the given order.
func NewReader(ctx context.Context, s sink.Sink, names []string) *Reader {
	return &Reader{ctx: ctx, sink: s, names: names}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		if r.cur == nil {
			if r.next >= len(r.names) {
				return 0, io.EOF
			}
			rc, err := r.sink.Open(r.ctx, r.names[r.next])
			if err != nil {
				return 0, core.WrapError(core.ErrPartIO,
					fmt.Errorf("opening part %s: %w", r.names[r.next], err))
			}
			r.cur = rc
			r.next++
		}

		n, err := r.cur.Read(p)
		if err == io.EOF {
			closeErr := r.cur.Close()
			r.cur = nil
			if closeErr != nil {
				return n, core.WrapError(core.ErrPartIO,
					fmt.Errorf("closing part %s: %w", r.names[r.next-1], closeErr))
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return n, core.WrapError(core.ErrPartIO,
				fmt.Errorf("reading part %s: %w", r.names[r.next-1], err))
		}
		return n, nil
	}
}

// Close releases the currently open part, if any.
func (r *Reader) Close() error {
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return err
}
