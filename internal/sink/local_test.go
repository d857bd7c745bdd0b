package sink

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocal_ImplementsSink(t *testing.T) {
	var _ Sink = (*Local)(nil)
	var _ Sink = (*S3)(nil)
	var _ Sink = (*GDrive)(nil)
	var _ Sink = (*OneDrive)(nil)
	var _ Sink = (*Retry)(nil)
}

func TestLocal_StoreOpen(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(filepath.Join(t.TempDir(), "dest"))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	data := []byte("part contents")
	if err := l.Store(ctx, "backup.tar.gz.part_000", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Store: %v", err)
	}

	rc, err := l.Open(ctx, "backup.tar.gz.part_000")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestLocal_StoreSizeMismatch(t *testing.T) {
	l, _ := NewLocal(t.TempDir())
	err := l.Store(context.Background(), "short", strings.NewReader("abc"), 10)
	if err == nil {
		t.Fatal("expected error for size mismatch")
	}
	// A failed store must not leave the object behind.
	if ok, _ := l.Exists(context.Background(), "short"); ok {
		t.Error("partial object visible after failed store")
	}
}

func TestLocal_NoPartialFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	l, _ := NewLocal(dir)

	failing := io.MultiReader(strings.NewReader("begin"), &failReader{})
	if err := l.Store(context.Background(), "part", failing, -1); err == nil {
		t.Fatal("expected store failure")
	}

	if _, err := os.Stat(filepath.Join(dir, "part")); !os.IsNotExist(err) {
		t.Error("failed store left the destination file behind")
	}
}

func TestLocal_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	l, _ := NewLocal(t.TempDir())

	for _, name := range []string{"b.tar.gz.part_000", "b.tar.gz.part_001", "other.enc"} {
		if err := l.Store(ctx, name, strings.NewReader("x"), 1); err != nil {
			t.Fatal(err)
		}
	}

	names, err := l.List(ctx, "b.tar.gz.part_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "b.tar.gz.part_000" || names[1] != "b.tar.gz.part_001" {
		t.Errorf("List = %v", names)
	}

	if err := l.Delete(ctx, "other.enc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := l.Exists(ctx, "other.enc"); ok {
		t.Error("object still exists after delete")
	}
}

type failReader struct{}

func (*failReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
