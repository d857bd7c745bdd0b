// internal/crypto/kdf.go
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// SaltSize is the salt length in bytes (32 hex characters).
const SaltSize = 16

const (
	keySize = 32 // AES-256
	ivSize  = 16 // AES block
)

// DeriveKey derives the AES-256 key and CBC IV from a password, salt
// and iteration count using PBKDF2-SHA256. Both archive creation and
// extraction must use identical inputs to obtain the same key
// material.
func DeriveKey(password string, salt []byte, iterations int) (key, iv []byte) {
	material := pbkdf2.Key([]byte(password), salt, iterations, keySize+ivSize, sha256.New)
	return material[:keySize], material[keySize:]
}

// GenerateSalt returns a fresh random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// ParseSalt decodes a 32-character hex salt string.
func ParseSalt(s string) ([]byte, error) {
	if len(s) != SaltSize*2 {
		return nil, fmt.Errorf("salt must be %d hex characters, got %d", SaltSize*2, len(s))
	}
	salt, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("salt is not valid hex: %w", err)
	}
	return salt, nil
}

// FormatSalt encodes a salt as its hex string form.
func FormatSalt(salt []byte) string {
	return hex.EncodeToString(salt)
}
