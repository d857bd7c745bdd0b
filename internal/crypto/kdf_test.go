package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	salt, err := ParseSalt("000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatalf("parsing salt: %v", err)
	}

	key1, iv1 := DeriveKey("correct horse", salt, 1000)
	key2, iv2 := DeriveKey("correct horse", salt, 1000)
	if !bytes.Equal(key1, key2) || !bytes.Equal(iv1, iv2) {
		t.Error("same inputs produced different key material")
	}
	if len(key1) != 32 || len(iv1) != 16 {
		t.Errorf("key/iv sizes = %d/%d, want 32/16", len(key1), len(iv1))
	}

	// Vector computed with PBKDF2-HMAC-SHA256, 48 bytes of output.
	wantKey := "c914cc4f06cc6e8f46d157e3a1b5aa7abceebb17bb0444cd4c4ac16ca2ae9864"
	wantIV := "15ca4818a855241833d2aa66a69660e8"
	if got := hex.EncodeToString(key1); got != wantKey {
		t.Errorf("key = %s, want %s", got, wantKey)
	}
	if got := hex.EncodeToString(iv1); got != wantIV {
		t.Errorf("iv = %s, want %s", got, wantIV)
	}
}

func TestDeriveKey_SensitiveToInputs(t *testing.T) {
	salt, _ := ParseSalt("000102030405060708090a0b0c0d0e0f")
	otherSalt, _ := ParseSalt("f0e0d0c0b0a090807060504030201000")

	key, _ := DeriveKey("correct horse", salt, 1000)

	if k, _ := DeriveKey("battery staple", salt, 1000); bytes.Equal(k, key) {
		t.Error("different password produced same key")
	}
	if k, _ := DeriveKey("correct horse", otherSalt, 1000); bytes.Equal(k, key) {
		t.Error("different salt produced same key")
	}
	if k, _ := DeriveKey("correct horse", salt, 1001); bytes.Equal(k, key) {
		t.Error("different iteration count produced same key")
	}
}

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateSalt()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != SaltSize {
		t.Errorf("salt length = %d, want %d", len(a), SaltSize)
	}
	if bytes.Equal(a, b) {
		t.Error("two generated salts are identical")
	}
	if _, err := ParseSalt(FormatSalt(a)); err != nil {
		t.Errorf("formatted salt does not parse: %v", err)
	}
}

func TestParseSalt_Invalid(t *testing.T) {
	for _, s := range []string{"", "abcd", "zz0102030405060708090a0b0c0d0e0f"} {
		if _, err := ParseSalt(s); err == nil {
			t.Errorf("ParseSalt(%q) accepted invalid salt", s)
		}
	}
}
