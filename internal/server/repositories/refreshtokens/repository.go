// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/wayne/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh
// tokens. Tokens are addressed by their keyed MAC, never by plaintext.
type Repository interface {
	// Create stores a refresh token hash for userID that expires at expiresAt.
	Create(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error

	// FindActive returns the token row whose hash matches and that has not
	// expired at now. Implementations return common.ErrorNotFound otherwise.
	FindActive(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// Delete removes one token by hash and reports whether a row was removed.
	Delete(ctx context.Context, tokenHash string) (bool, error)

	// DeleteAllForUser removes every token owned by userID.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes tokens whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
