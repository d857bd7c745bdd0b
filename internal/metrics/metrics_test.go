package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.RecordBackup("success", 12.5)
	r.RecordBackup("failure", 1.0)
	r.AddBytesWritten(1024)
	r.AddSourceBytes(4096)
	r.RecordPart()
	r.RecordPart()
	r.RecordRetry()

	if got := testutil.ToFloat64(r.backupsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("backups success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.bytesWritten); got != 1024 {
		t.Errorf("bytes written = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(r.partsCreated); got != 2 {
		t.Errorf("parts created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.uploadRetries); got != 1 {
		t.Errorf("upload retries = %v, want 1", got)
	}
}

func TestRegistry_Gather(t *testing.T) {
	r := NewRegistry()
	r.RecordExtract("success", 3.0)

	families, err := r.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "archivedir_extracts_total") {
			found = true
		}
	}
	if !found {
		t.Error("archivedir_extracts_total not exposed")
	}
}
