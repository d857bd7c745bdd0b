package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/manu4linux/archivedir/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
backup:
  sources:
    - /home/user/docs
    - /home/user/photos
  destination: s3://backups/nightly
  split_size_gb: 1.5
  compress_level: 6
  excludes:
    - "*.iso"
encryption:
  enabled: true
  password: secret
s3:
  endpoint: http://minio:9000
  access_key: ak
  secret_key: sk
retry:
  attempts: 5
  base_delay: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Backup.Sources) != 2 {
		t.Errorf("sources = %v", cfg.Backup.Sources)
	}
	if cfg.Backup.Destination != "s3://backups/nightly" {
		t.Errorf("destination = %q", cfg.Backup.Destination)
	}
	if cfg.Backup.CompressLevel != 6 {
		t.Errorf("compress_level = %d", cfg.Backup.CompressLevel)
	}
	if !cfg.Encryption.Enabled || cfg.Encryption.Password != "secret" {
		t.Errorf("encryption = %+v", cfg.Encryption)
	}
	// Defaults survive partial files.
	if cfg.Encryption.Iterations != core.DefaultIterations {
		t.Errorf("iterations = %d, want default", cfg.Encryption.Iterations)
	}
	if !cfg.Backup.DefaultExcludes {
		t.Error("default_excludes should default to true")
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.BaseDelay != 10*time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("BACKUP_TEST_SECRET", "from-env")
	path := writeConfig(t, `
s3:
  secret_key: ${BACKUP_TEST_SECRET}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.S3.SecretKey != "from-env" {
		t.Errorf("secret_key = %q, want expanded env value", cfg.S3.SecretKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSplitSizeBytes(t *testing.T) {
	cfg := Defaults()
	if got := cfg.SplitSizeBytes(); got != core.DefaultSplitSize {
		t.Errorf("default split size = %d, want %d", got, core.DefaultSplitSize)
	}

	cfg.Backup.SplitSizeGB = 1
	if got := cfg.SplitSizeBytes(); got != 1<<30 {
		t.Errorf("1 GB = %d bytes", got)
	}

	cfg.Backup.SplitSizeGB = 0
	if got := cfg.SplitSizeBytes(); got != core.DefaultSplitSize {
		t.Errorf("zero falls back: %d", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg = Defaults()
	cfg.Backup.CompressLevel = 11
	if err := cfg.Validate(); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("compress_level 11: err = %v", err)
	}

	cfg = Defaults()
	cfg.Encryption.Enabled = true
	if err := cfg.Validate(); !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("enabled encryption without password: err = %v", err)
	}

	cfg = Defaults()
	cfg.Retry.Attempts = 0
	if err := cfg.Validate(); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("zero attempts: err = %v", err)
	}
}
