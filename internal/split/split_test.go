package split

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/manu4linux/archivedir/internal/core"
	"github.com/manu4linux/archivedir/internal/sink"
)

func newTestSink(t *testing.T) sink.Sink {
	t.Helper()
	s, err := sink.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPartName(t *testing.T) {
	if got := PartName("backup.tar.gz", 0); got != "backup.tar.gz.part_000" {
		t.Errorf("PartName = %q", got)
	}
	if got := PartName("backup.tar.gz", 42); got != "backup.tar.gz.part_042" {
		t.Errorf("PartName = %q", got)
	}
}

func TestWriter_SplitsAtCapacity(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	w := NewWriter(ctx, s, "b.tar.gz", 4, nil, nil)
	if _, err := io.Copy(w, strings.NewReader("0123456789")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	parts := w.Parts()
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	wantSizes := []int64{4, 4, 2}
	for i, p := range parts {
		if p.Index != i {
			t.Errorf("part %d has index %d", i, p.Index)
		}
		if p.Name != PartName("b.tar.gz", i) {
			t.Errorf("part %d name = %q", i, p.Name)
		}
		if p.Size != wantSizes[i] {
			t.Errorf("part %d size = %d, want %d", i, p.Size, wantSizes[i])
		}
	}
	if w.BytesWritten() != 10 {
		t.Errorf("BytesWritten = %d", w.BytesWritten())
	}
}

func TestWriter_ExactMultipleNoEmptyPart(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	w := NewWriter(ctx, s, "b.tar.gz", 4, nil, nil)
	if _, err := w.Write([]byte("01234567")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if len(w.Parts()) != 2 {
		t.Fatalf("parts = %d, want 2 (no trailing empty part)", len(w.Parts()))
	}
	names, _ := s.List(ctx, "b.tar.gz.part_")
	if len(names) != 2 {
		t.Errorf("stored objects = %v", names)
	}
}

func TestWriter_ReportsProgress(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	var total int64
	lastPart := -1
	w := NewWriter(ctx, s, "b", 8, nil, func(delta int64, part int) {
		total += delta
		if part < lastPart {
			t.Errorf("part index went backwards: %d after %d", part, lastPart)
		}
		lastPart = part
	})
	if _, err := w.Write(bytes.Repeat([]byte("x"), 20)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if total != 20 {
		t.Errorf("reported %d bytes, want 20", total)
	}
	if lastPart != 2 {
		t.Errorf("last part index = %d, want 2", lastPart)
	}
}

func TestWriterReader_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	data := make([]byte, 100*1024+17)
	rand.New(rand.NewSource(7)).Read(data)

	w := NewWriter(ctx, s, "big.tar.gz", 16*1024, nil, nil)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if len(w.Parts()) != 7 {
		t.Fatalf("parts = %d, want 7", len(w.Parts()))
	}

	base, names, err := Discover(ctx, s, "big.tar.gz")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if base != "big.tar.gz" {
		t.Errorf("base = %q", base)
	}

	r := NewReader(ctx, s, names)
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("reassembled stream differs from original")
	}
}

func TestWriter_Abort(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	w := NewWriter(ctx, s, "b", 4, nil, nil)
	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	w.Abort(ctx)

	names, _ := s.List(ctx, "b.part_")
	if len(names) != 0 {
		t.Errorf("parts left behind after abort: %v", names)
	}
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"backup.tar.gz":          "backup.tar.gz",
		"backup.tar.gz.part_000": "backup.tar.gz",
		"backup.tar.gz.part_123": "backup.tar.gz",
		"multi_backup.tar.gz.enc.part_007": "multi_backup.tar.gz.enc",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDiscover_GapFails(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	for _, idx := range []int{0, 1, 3} {
		if err := s.Store(ctx, PartName("b.tar.gz", idx), strings.NewReader("x"), 1); err != nil {
			t.Fatal(err)
		}
	}

	_, _, err := Discover(ctx, s, "b.tar.gz")
	if !errors.Is(err, core.ErrPartDiscovery) {
		t.Errorf("err = %v, want PART_DISCOVERY", err)
	}
}

func TestDiscover_MissingFromZeroFails(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	if err := s.Store(ctx, PartName("b.tar.gz", 1), strings.NewReader("x"), 1); err != nil {
		t.Fatal(err)
	}

	_, _, err := Discover(ctx, s, "b.tar.gz")
	if !errors.Is(err, core.ErrPartDiscovery) {
		t.Errorf("err = %v, want PART_DISCOVERY", err)
	}
}

func TestDiscover_PartSpecifier(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	for idx := 0; idx < 2; idx++ {
		if err := s.Store(ctx, PartName("b.tar.gz", idx), strings.NewReader("x"), 1); err != nil {
			t.Fatal(err)
		}
	}

	_, names, err := Discover(ctx, s, "b.tar.gz.part_001")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("names = %v, want both parts", names)
	}
}

func TestDiscover_SingleObjectFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	if err := s.Store(ctx, "whole.tar.gz", strings.NewReader("data"), 4); err != nil {
		t.Fatal(err)
	}

	_, names, err := Discover(ctx, s, "whole.tar.gz")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(names) != 1 || names[0] != "whole.tar.gz" {
		t.Errorf("names = %v", names)
	}
}

func TestDiscover_NothingFound(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	_, _, err := Discover(ctx, s, "missing.tar.gz")
	if !errors.Is(err, core.ErrPartDiscovery) {
		t.Errorf("err = %v, want PART_DISCOVERY", err)
	}
}
