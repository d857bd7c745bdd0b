// internal/archive/exclude.go
package archive

import "strings"

// DefaultExcludes are patterns skipped by default during backup:
// caches, trash, build artifacts and other files that are either
// regenerable or known to break long-running archive runs.
var DefaultExcludes = []string{
	".Trash/*",
	".cache/*",
	".local/share/Trash/*",
	"node_modules/*",
	"__pycache__/*",
	"cache/*",
	"tmp/*",
	".DS_Store",
	"*.tmp",
	"*.temp",
	"*.log",
}

// Excluded reports whether the archive entry name matches any of the
// patterns. A pattern matches when it globs the entry name anchored
// at any path-component boundary (GNU tar exclude semantics, so
// "cache/*" hits "project/cache/obj.o") or occurs as a substring of
// the entry name.
func Excluded(name string, patterns []string) bool {
	suffixes := componentSuffixes(name)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(name, p) {
			return true
		}
		for _, s := range suffixes {
			if matchGlob(p, s) {
				return true
			}
		}
	}
	return false
}

// componentSuffixes returns the name and every suffix starting after
// a '/' ("a/b/c" -> ["a/b/c", "b/c", "c"]).
func componentSuffixes(name string) []string {
	out := []string{name}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			out = append(out, name[i+1:])
		}
	}
	return out
}

// matchGlob matches name against a glob pattern where '*' matches any
// run of characters (including '/') and '?' matches one character.
func matchGlob(pattern, name string) bool {
	// Iterative wildcard matching with single-star backtracking.
	var (
		p, n         int
		starP, starN = -1, 0
	)
	for n < len(name) {
		switch {
		case p < len(pattern) && (pattern[p] == name[n] || pattern[p] == '?'):
			p++
			n++
		case p < len(pattern) && pattern[p] == '*':
			starP, starN = p, n
			p++
		case starP >= 0:
			starN++
			p = starP + 1
			n = starN
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
