// internal/crypto/stage.go
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/manu4linux/archivedir/internal/core"
)

// chunkSize is how much ciphertext/plaintext is processed per slice.
// Must be a multiple of the AES block size.
const chunkSize = 64 * 1024

// Encrypt is the encryption stage: AES-256-CBC with PKCS#7 padding,
// processed incrementally so the archive never has to fit in memory.
type Encrypt struct {
	key []byte
	iv  []byte
}

// NewEncrypt creates the encryption stage from the derived key
// material.
func NewEncrypt(password string, salt []byte, iterations int) *Encrypt {
	key, iv := DeriveKey(password, salt, iterations)
	return &Encrypt{key: key, iv: iv}
}

// Name implements pipeline.Stage.
func (e *Encrypt) Name() string { return "encrypt" }

// Run implements pipeline.Stage.
func (e *Encrypt) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}
	enc := cipher.NewCBCEncrypter(block, e.iv)

	buf := make([]byte, chunkSize)
	pending := make([]byte, 0, chunkSize+aes.BlockSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := r.Read(buf)
		pending = append(pending, buf[:n]...)

		if rerr == io.EOF {
			// PKCS#7: always pad, a full extra block when the
			// plaintext length is already block-aligned.
			pad := aes.BlockSize - len(pending)%aes.BlockSize
			for i := 0; i < pad; i++ {
				pending = append(pending, byte(pad))
			}
			enc.CryptBlocks(pending, pending)
			_, werr := w.Write(pending)
			return werr
		}
		if rerr != nil {
			return rerr
		}

		full := len(pending) &^ (aes.BlockSize - 1)
		if full > 0 {
			enc.CryptBlocks(pending[:full], pending[:full])
			if _, werr := w.Write(pending[:full]); werr != nil {
				return werr
			}
			pending = append(pending[:0], pending[full:]...)
		}
	}
}

// Decrypt is the decryption stage. Wrong password, wrong salt or
// iterations, and corrupted ciphertext are indistinguishable (no
// integrity tag is stored) and all surface as DECRYPTION_FAILED.
type Decrypt struct {
	key []byte
	iv  []byte
}

// NewDecrypt creates the decryption stage from the derived key
// material.
func NewDecrypt(password string, salt []byte, iterations int) *Decrypt {
	key, iv := DeriveKey(password, salt, iterations)
	return &Decrypt{key: key, iv: iv}
}

// Name implements pipeline.Stage.
func (d *Decrypt) Name() string { return "decrypt" }

// Run implements pipeline.Stage.
func (d *Decrypt) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	block, err := aes.NewCipher(d.key)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}
	dec := cipher.NewCBCDecrypter(block, d.iv)

	buf := make([]byte, chunkSize)
	pending := make([]byte, 0, chunkSize+2*aes.BlockSize)

	// When the downstream stage fails mid-stream (a wrong key turns
	// the plaintext into garbage, so the next stage usually dies
	// first), keep decrypting to the end and run the padding check
	// anyway: that is the only way to tell a bad password from a
	// genuine downstream failure.
	var writeErr error

	for {
		if writeErr == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		n, rerr := r.Read(buf)
		pending = append(pending, buf[:n]...)

		if rerr == io.EOF {
			out := w
			if writeErr != nil {
				out = io.Discard
			}
			if err := d.finish(pending, dec, out); err != nil {
				return err
			}
			return writeErr
		}
		if rerr != nil {
			if writeErr != nil {
				return writeErr
			}
			return rerr
		}

		// Decrypt all complete blocks except the final one, which may
		// be the padding block and must wait for EOF.
		full := len(pending) &^ (aes.BlockSize - 1)
		if full >= 2*aes.BlockSize {
			m := full - aes.BlockSize
			dec.CryptBlocks(pending[:m], pending[:m])
			if writeErr == nil {
				if _, werr := w.Write(pending[:m]); werr != nil {
					writeErr = werr
				}
			}
			pending = append(pending[:0], pending[m:]...)
		}
	}
}

// finish decrypts the held-back tail and strips PKCS#7 padding.
func (d *Decrypt) finish(pending []byte, dec cipher.BlockMode, w io.Writer) error {
	if len(pending) == 0 || len(pending)%aes.BlockSize != 0 {
		return core.WrapError(core.ErrDecryptionFailed,
			fmt.Errorf("ciphertext length %d not block-aligned", len(pending)))
	}

	dec.CryptBlocks(pending, pending)

	pad := int(pending[len(pending)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(pending) {
		return core.WrapError(core.ErrDecryptionFailed, fmt.Errorf("invalid padding"))
	}
	for _, b := range pending[len(pending)-pad:] {
		if int(b) != pad {
			return core.WrapError(core.ErrDecryptionFailed, fmt.Errorf("invalid padding"))
		}
	}

	_, err := w.Write(pending[:len(pending)-pad])
	return err
}
