// Package secrets abstracts the server-held key used to protect delegated
// credentials at rest. Every call binds the ciphertext to an owner through
// associated data, so a row moved to another user no longer decrypts.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wayne/internal/cryptox"
)

// ErrDecrypt is returned when a ciphertext cannot be opened under the given
// associated data.
var ErrDecrypt = errors.New("secret cannot be decrypted")

// Cipher encrypts and decrypts small secrets. aad must be the owning user id.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext, aad []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext, aad []byte) ([]byte, error)
}

// AESGCMCipher seals with a static AES-256 key held in process memory.
// Output layout is IV ‖ tag ‖ ciphertext.
type AESGCMCipher struct {
	key []byte
}

// NewAESGCMCipher parses a hex-encoded 32-byte key.
func NewAESGCMCipher(hexKey string) (*AESGCMCipher, error) {
	key, err := cryptox.ParseHexKey(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credential encryption key: %w", err)
	}
	return &AESGCMCipher{key: key}, nil
}

func (c *AESGCMCipher) Encrypt(_ context.Context, plaintext, aad []byte) ([]byte, error) {
	return cryptox.Seal(c.key, plaintext, aad)
}

func (c *AESGCMCipher) Decrypt(_ context.Context, ciphertext, aad []byte) ([]byte, error) {
	pt, err := cryptox.Open(c.key, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return pt, nil
}
