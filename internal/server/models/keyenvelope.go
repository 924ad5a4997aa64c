package models

import "time"

// KeyEnvelope is the per-user opaque secret blob: a password-derived-key
// salt plus the nonce and ciphertext of the wrapped master key (MKEK).
// The server never interprets the byte fields.
type KeyEnvelope struct {
	ID           string
	UserID       string
	Version      int
	PasswordSalt []byte
	MKEKNonce    []byte
	MKEKPayload  []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
