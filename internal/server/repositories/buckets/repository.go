// Package buckets persists delegated object-storage credentials, one row per
// user. Key material is stored only in encrypted form.
package buckets

import (
	"context"

	"github.com/dmitrijs2005/wayne/internal/server/models"
)

type Repository interface {
	// Create returns common.ErrorAlreadyExists if the user already has a bucket.
	Create(ctx context.Context, bucket *models.Bucket) (*models.Bucket, error)
	GetByUserID(ctx context.Context, userID string) (*models.Bucket, error)
}
