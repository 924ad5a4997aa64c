// Package keyenvelopes persists the single opaque key envelope each user
// keeps on the server.
package keyenvelopes

import (
	"context"

	"github.com/dmitrijs2005/wayne/internal/server/models"
)

type Repository interface {
	// Upsert inserts the envelope or fully replaces the caller's existing one
	// and returns the envelope id. The previous contents are not retained.
	Upsert(ctx context.Context, envelope *models.KeyEnvelope) (string, error)
	GetByUserID(ctx context.Context, userID string) (*models.KeyEnvelope, error)
	GetByID(ctx context.Context, id string) (*models.KeyEnvelope, error)
}
