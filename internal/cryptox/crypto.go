// Package cryptox implements the authenticated symmetric sealing used for
// secrets the server keeps at rest.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/dmitrijs2005/wayne/internal/common"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the GCM standard nonce (IV) length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

var (
	ErrInvalidKey        = errors.New("invalid key length")
	ErrMalformedSealed   = errors.New("malformed sealed data")
	ErrAuthenticationTag = errors.New("message authentication failed")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM under key, authenticating aad as
// associated data. A fresh random IV is drawn on every call. The result is
// laid out as IV ‖ tag ‖ ciphertext.
//
// Example:
//
//	sealed, err := cryptox.Seal(key, []byte("AKIA..."), []byte(userID))
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(NonceSize)

	// Go's GCM appends the tag after the ciphertext.
	ctTag := aead.Seal(nil, iv, plaintext, aad)
	ct, tag := ctTag[:len(ctTag)-TagSize], ctTag[len(ctTag)-TagSize:]

	out := make([]byte, 0, NonceSize+TagSize+len(ct))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// Open reverses Seal. It fails with ErrAuthenticationTag when the data was
// tampered with, the key is wrong, or aad differs from the one used to seal.
func Open(key, sealed, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < NonceSize+TagSize {
		return nil, ErrMalformedSealed
	}

	iv := sealed[:NonceSize]
	tag := sealed[NonceSize : NonceSize+TagSize]
	ct := sealed[NonceSize+TagSize:]

	ctTag := make([]byte, 0, len(ct)+TagSize)
	ctTag = append(ctTag, ct...)
	ctTag = append(ctTag, tag...)

	plaintext, err := aead.Open(nil, iv, ctTag, aad)
	if err != nil {
		return nil, ErrAuthenticationTag
	}
	return plaintext, nil
}

// MAC returns hex(HMAC-SHA256(key, msg)). It is deterministic, so its output
// can be stored and looked up with an index.
func MAC(key []byte, msg string) string {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

// ParseHexKey decodes a hex-encoded AES-256 key.
func ParseHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}
