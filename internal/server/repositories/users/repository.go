// Package users declares the credential store: persistence of identity
// records (email and password hash).
package users

import (
	"context"

	"github.com/dmitrijs2005/wayne/internal/server/models"
)

// Repository persists users. Lookups return common.ErrorNotFound when the
// user is absent; Create returns common.ErrorAlreadyExists on a duplicate email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}
