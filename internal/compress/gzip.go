// internal/compress/gzip.go
package compress

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Gzip is the compression stage. Level follows gzip semantics:
// 1 (fast) to 9 (small); the backup default is 1, matching the tool's
// bias toward throughput over ratio.
type Gzip struct {
	level int
}

// NewGzip creates the compression stage. Out-of-range levels fall
// back to gzip.DefaultCompression.
func NewGzip(level int) *Gzip {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &Gzip{level: level}
}

// Name implements pipeline.Stage.
func (g *Gzip) Name() string { return "gzip" }

// Run implements pipeline.Stage.
func (g *Gzip) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, g.level)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return fmt.Errorf("compressing: %w", err)
	}
	return zw.Close()
}

// Gunzip is the decompression stage.
type Gunzip struct{}

// NewGunzip creates the decompression stage.
func NewGunzip() *Gunzip { return &Gunzip{} }

// Name implements pipeline.Stage.
func (g *Gunzip) Name() string { return "gunzip" }

// Run implements pipeline.Stage.
func (g *Gunzip) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("reading gzip header: %w", err)
	}
	defer zr.Close()

	// Concatenated gzip members are one logical stream.
	zr.Multistream(true)

	if _, err := io.Copy(w, zr); err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}
	return nil
}
