package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// writeRawTar writes a single-entry tar without sanitizing the name.
func writeRawTar(t *testing.T, w io.Writer, name, content string) {
	t.Helper()
	tw := tar.NewWriter(w)
	hdr := &tar.Header{
		Name:     name,
		Mode:     0644,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
}

// buildTree creates a small source tree for round-trip tests.
func buildTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "project")

	files := map[string]string{
		"readme.txt":        "hello world\n",
		"data/numbers.bin":  "\x00\x01\x02\x03",
		"data/nested/deep":  "deep file",
		"logs/build.log":    "should be excludable",
		"scripts/run.sh":    "#!/bin/sh\necho hi\n",
	}
	for name, content := range files {
		path := filepath.Join(src, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chmod(filepath.Join(src, "scripts/run.sh"), 0755); err != nil {
		t.Fatal(err)
	}
	// Group-writable dir; MkdirAll alone would lose this under the
	// usual 022 umask.
	if err := os.Chmod(filepath.Join(src, "data", "nested"), 0775); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("readme.txt", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestTarUntar_RoundTrip(t *testing.T) {
	src := buildTree(t)
	dest := t.TempDir()
	ctx := context.Background()

	var buf bytes.Buffer
	if err := NewTar([]string{src}, nil, nil).Run(ctx, nil, &buf); err != nil {
		t.Fatalf("tar: %v", err)
	}
	if err := NewUntar(dest, nil).Run(ctx, &buf, io.Discard); err != nil {
		t.Fatalf("untar: %v", err)
	}

	// Contents round-trip under the source base name.
	got, err := os.ReadFile(filepath.Join(dest, "project", "data", "nested", "deep"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(got) != "deep file" {
		t.Errorf("content = %q, want %q", got, "deep file")
	}

	// Permissions round-trip.
	info, err := os.Stat(filepath.Join(dest, "project", "scripts", "run.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %o, want 0755", info.Mode().Perm())
	}

	// Directory permissions round-trip too, past the umask.
	info, err = os.Stat(filepath.Join(dest, "project", "data", "nested"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0775 {
		t.Errorf("dir mode = %o, want 0775", info.Mode().Perm())
	}

	// Symlinks round-trip as links.
	target, err := os.Readlink(filepath.Join(dest, "project", "link"))
	if err != nil {
		t.Fatalf("extracted link is not a symlink: %v", err)
	}
	if target != "readme.txt" {
		t.Errorf("link target = %q, want %q", target, "readme.txt")
	}
}

func TestTar_Excludes(t *testing.T) {
	src := buildTree(t)
	dest := t.TempDir()
	ctx := context.Background()

	var buf bytes.Buffer
	if err := NewTar([]string{src}, []string{"*.log"}, nil).Run(ctx, nil, &buf); err != nil {
		t.Fatalf("tar: %v", err)
	}
	if err := NewUntar(dest, nil).Run(ctx, &buf, io.Discard); err != nil {
		t.Fatalf("untar: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "project", "logs", "build.log")); !os.IsNotExist(err) {
		t.Error("excluded file should not be in the archive")
	}
	if _, err := os.Stat(filepath.Join(dest, "project", "readme.txt")); err != nil {
		t.Errorf("non-excluded file missing: %v", err)
	}
}

func TestTar_MultipleSources(t *testing.T) {
	dirA := filepath.Join(t.TempDir(), "alpha")
	dirB := filepath.Join(t.TempDir(), "beta")
	for _, d := range []string{dirA, dirB} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(d, "f.txt"), []byte(filepath.Base(d)), 0644); err != nil {
			t.Fatal(err)
		}
	}

	dest := t.TempDir()
	ctx := context.Background()

	var buf bytes.Buffer
	if err := NewTar([]string{dirA, dirB}, nil, nil).Run(ctx, nil, &buf); err != nil {
		t.Fatalf("tar: %v", err)
	}
	if err := NewUntar(dest, nil).Run(ctx, &buf, io.Discard); err != nil {
		t.Fatalf("untar: %v", err)
	}

	for _, name := range []string{"alpha", "beta"} {
		got, err := os.ReadFile(filepath.Join(dest, name, "f.txt"))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if string(got) != name {
			t.Errorf("content = %q, want %q", got, name)
		}
	}
}

func TestUntar_RejectsTraversal(t *testing.T) {
	// Hand-build a tar containing an escaping path.
	var buf bytes.Buffer
	writeRawTar(t, &buf, "../escape.txt", "gotcha")

	err := NewUntar(t.TempDir(), nil).Run(context.Background(), &buf, io.Discard)
	if err == nil {
		t.Fatal("expected error for path traversal entry")
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     bool
	}{
		{"project/cache/obj.o", []string{"cache/*"}, true},
		{"project/notes.log", []string{"*.log"}, true},
		{"project/logfile", []string{"*.log"}, false},
		{"project/node_modules/pkg/index.js", []string{"node_modules/*"}, true},
		{"project/src/main.go", []string{"*.log", "cache/*"}, false},
		{"project/.DS_Store", []string{".DS_Store"}, true},
		{"a/b/c", []string{"b"}, true}, // substring rule
	}
	for _, tt := range tests {
		if got := Excluded(tt.name, tt.patterns); got != tt.want {
			t.Errorf("Excluded(%q, %v) = %v, want %v", tt.name, tt.patterns, got, tt.want)
		}
	}
}

func TestScan(t *testing.T) {
	src := buildTree(t)

	res, err := Scan([]string{src}, []string{"*.log"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Excluded == 0 {
		t.Error("expected at least one excluded entry")
	}
	if res.Bytes == 0 || res.Files == 0 {
		t.Errorf("expected nonzero totals, got %+v", res)
	}

	all, err := Scan([]string{src}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if all.Bytes <= res.Bytes {
		t.Errorf("excluding files should reduce byte total: %d vs %d", all.Bytes, res.Bytes)
	}
}
