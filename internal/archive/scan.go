// internal/archive/scan.go
package archive

import (
	"os"
	"path/filepath"
)

// ScanResult summarizes a pre-backup source scan.
type ScanResult struct {
	Bytes    int64
	Files    int
	Dirs     int
	Excluded int
}

// Scan walks the sources applying exclude patterns and totals the
// bytes a backup will read. Symlinks are counted as entries but their
// targets are not sized. The total feeds log output and part-count
// estimates; it is not a hard limit.
func Scan(sources, excludes []string) (ScanResult, error) {
	var res ScanResult

	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return res, err
		}
		arcRoot := filepath.Base(abs)

		err = filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				// Unreadable entries are skipped here; the tar stage
				// will surface them as a stage failure if they matter.
				return nil
			}

			rel, _ := filepath.Rel(abs, path)
			arcname := arcRoot
			if rel != "." {
				arcname = arcRoot + "/" + filepath.ToSlash(rel)
			}

			if Excluded(arcname, excludes) {
				res.Excluded++
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			switch {
			case info.IsDir():
				res.Dirs++
			case info.Mode().IsRegular():
				res.Files++
				res.Bytes += info.Size()
			default:
				res.Files++
			}
			return nil
		})
		if err != nil {
			return res, err
		}
	}
	return res, nil
}
