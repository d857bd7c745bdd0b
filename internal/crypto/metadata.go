// internal/crypto/metadata.go
package crypto

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manu4linux/archivedir/internal/core"
)

// Algorithm and KDF identifiers recorded in metadata files.
const (
	Algorithm = "AES-256-CBC"
	KDF       = "PBKDF2-SHA256"
)

// Metadata describes the key-derivation parameters of an encrypted
// archive. It is stored alongside the archive parts so extraction can
// re-derive the key from the password alone.
type Metadata struct {
	Salt       string
	Iterations int
	Algorithm  string
	KDF        string
}

// NewMetadata builds the metadata record for a fresh salt.
func NewMetadata(salt []byte, iterations int) Metadata {
	return Metadata{
		Salt:       FormatSalt(salt),
		Iterations: iterations,
		Algorithm:  Algorithm,
		KDF:        KDF,
	}
}

// MetadataStore is the sink subset metadata persistence needs.
// sink.Sink satisfies it.
type MetadataStore interface {
	Store(ctx context.Context, name string, r io.Reader, size int64) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// MetadataName derives the metadata object name from an archive base
// name: the archive suffixes are stripped and ".enc" appended, so
// "photos.tar.gz" and "photos.tar.gz.enc" both map to "photos.enc".
func MetadataName(base string) string {
	for _, suffix := range []string{".tar.gz.enc", ".tar.bz2.enc", ".tar.gz", ".tar.bz2"} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	return base + ".enc"
}

// Encode renders the metadata in its key=value file format.
func (m Metadata) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "salt=%s\n", m.Salt)
	fmt.Fprintf(&buf, "iterations=%d\n", m.Iterations)
	fmt.Fprintf(&buf, "algorithm=%s\n", m.Algorithm)
	fmt.Fprintf(&buf, "kdf=%s\n", m.KDF)
	return buf.Bytes()
}

// ParseMetadata reads the key=value metadata format. Unknown keys are
// ignored so the format can grow.
func ParseMetadata(r io.Reader) (Metadata, error) {
	m := Metadata{Algorithm: Algorithm, KDF: KDF}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "salt":
			m.Salt = value
		case "iterations":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Metadata{}, fmt.Errorf("parsing iterations %q: %w", value, err)
			}
			m.Iterations = n
		case "algorithm":
			m.Algorithm = value
		case "kdf":
			m.KDF = value
		}
	}
	if err := sc.Err(); err != nil {
		return Metadata{}, fmt.Errorf("reading metadata: %w", err)
	}
	if m.Salt == "" {
		return Metadata{}, fmt.Errorf("metadata has no salt")
	}
	if m.Iterations <= 0 {
		return Metadata{}, fmt.Errorf("metadata has no iteration count")
	}
	return m, nil
}

// SaveMetadata writes the metadata object next to the archive parts.
func SaveMetadata(ctx context.Context, store MetadataStore, base string, m Metadata) error {
	data := m.Encode()
	name := MetadataName(base)
	if err := store.Store(ctx, name, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("storing metadata %s: %w", name, err)
	}
	return nil
}

// LoadMetadata reads the metadata object for an archive. A missing
// object surfaces as METADATA_MISSING so callers can fall back to
// explicit salt flags.
func LoadMetadata(ctx context.Context, store MetadataStore, base string) (Metadata, error) {
	name := MetadataName(base)
	rc, err := store.Open(ctx, name)
	if err != nil {
		return Metadata{}, core.WrapError(core.ErrMetadataMissing,
			fmt.Errorf("opening metadata %s: %w", name, err))
	}
	defer rc.Close()

	m, err := ParseMetadata(rc)
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing metadata %s: %w", name, err)
	}
	return m, nil
}
