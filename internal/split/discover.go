// internal/split/discover.go
package split

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/manu4linux/archivedir/internal/core"
	"github.com/manu4linux/archivedir/internal/sink"
)

var partSuffixRe = regexp.MustCompile(`\.part_(\d{3,})$`)

// BaseName strips a trailing part suffix from a specifier, so both
// "backup.tar.gz" and "backup.tar.gz.part_002" name the same archive.
func BaseName(specifier string) string {
	if m := partSuffixRe.FindStringIndex(specifier); m != nil {
		return specifier[:m[0]]
	}
	return specifier
}

// Discover resolves an archive specifier to its ordered part names.
// Parts must be contiguous from index 000; a gap means the archive is
// incomplete and extraction would silently corrupt, so it fails
// instead. An archive stored as a single unsuffixed object is
// returned as-is.
func Discover(ctx context.Context, s sink.Sink, specifier string) (base string, names []string, err error) {
	base = BaseName(specifier)

	listed, err := s.List(ctx, base+".part_")
	if err != nil {
		return "", nil, core.WrapError(core.ErrPartDiscovery,
			fmt.Errorf("listing parts of %s: %w", base, err))
	}

	indexed := make(map[int]string)
	for _, name := range listed {
		suffix := strings.TrimPrefix(name, base+".part_")
		if suffix == name {
			continue
		}
		idx, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		indexed[idx] = name
	}

	if len(indexed) == 0 {
		ok, err := s.Exists(ctx, base)
		if err != nil {
			return "", nil, core.WrapError(core.ErrPartDiscovery,
				fmt.Errorf("checking %s: %w", base, err))
		}
		if ok {
			return base, []string{base}, nil
		}
		return "", nil, core.WrapError(core.ErrPartDiscovery,
			fmt.Errorf("no parts found for %s", base))
	}

	indices := make([]int, 0, len(indexed))
	for idx := range indexed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for want, got := range indices {
		if got != want {
			return "", nil, core.WrapError(core.ErrPartDiscovery,
				fmt.Errorf("parts of %s are not contiguous: missing index %03d", base, want))
		}
	}

	names = make([]string, 0, len(indices))
	for _, idx := range indices {
		names = append(names, indexed[idx])
	}
	return base, names, nil
}
