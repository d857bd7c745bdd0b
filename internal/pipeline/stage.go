// internal/pipeline/stage.go
package pipeline

import (
	"context"
	"io"
)

// Stage is one byte-stream transform in a pipeline. A stage consumes
// its reader to EOF and writes the transformed bytes to its writer.
//
// Terminal stages may ignore one side: a producer stage (e.g. the tar
// archiver) receives an immediately-EOF reader, and a consumer stage
// (e.g. the extractor) writes nothing downstream.
type Stage interface {
	// Name identifies the stage in errors and logs.
	Name() string

	// Run transforms bytes from r to w until EOF or failure. Run must
	// return promptly when ctx is cancelled or when a read/write on
	// the pipe fails because the pipeline is shutting down.
	Run(ctx context.Context, r io.Reader, w io.Writer) error
}

// Func adapts a function to the Stage interface.
type Func struct {
	StageName string
	RunFunc   func(ctx context.Context, r io.Reader, w io.Writer) error
}

// Name returns the stage name.
func (f Func) Name() string { return f.StageName }

// Run invokes the wrapped function.
func (f Func) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	return f.RunFunc(ctx, r, w)
}
