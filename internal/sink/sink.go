// internal/sink/sink.go
package sink

import (
	"context"
	"io"
)

// Sink defines the interface for archive destinations. Objects are
// flat names within the destination (part files and metadata files);
// backends map them onto their own namespace.
type Sink interface {
	// Store uploads an object. size is the exact object length;
	// backends that replay the body on retry may seek r back to the
	// start when it implements io.Seeker.
	Store(ctx context.Context, name string, r io.Reader, size int64) error

	// Open returns a reader over an object's content.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns object names matching the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object.
	Delete(ctx context.Context, name string) error

	// Exists checks whether an object is present.
	Exists(ctx context.Context, name string) (bool, error)
}
