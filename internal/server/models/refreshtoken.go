package models

import "time"

// RefreshToken is a long-lived session grant. Only a keyed MAC of the opaque
// token is persisted; the plaintext is shown to the client once.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
