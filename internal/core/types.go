// internal/core/types.go
package core

// Size constants for split caps.
const (
	// DefaultSplitSize is the default part size cap (3.5 GiB).
	DefaultSplitSize int64 = 7 * 1024 * 1024 * 1024 / 2

	// ConstrainedSplitSize is a safe cap for size-limited filesystems
	// such as FAT32 (3.9 GiB). Callers supply it through config when
	// the destination is known to be constrained.
	ConstrainedSplitSize int64 = 39 * 1024 * 1024 * 1024 / 10
)

// DefaultCompressLevel is the default gzip level (fast).
const DefaultCompressLevel = 1

// DefaultIterations is the default PBKDF2 iteration count.
const DefaultIterations = 100000

// Part is one size-bounded, ordered segment of an archive's final
// byte stream. Immutable once closed.
type Part struct {
	Index int
	Name  string
	Size  int64
}

// Result summarizes a completed backup run.
type Result struct {
	Parts        []Part
	BytesWritten int64
	SourceBytes  int64
	Duration     float64
}
