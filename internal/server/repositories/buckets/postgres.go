package buckets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/dbx"
	"github.com/dmitrijs2005/wayne/internal/server/models"
)

const userConstraint = "storj_buckets_user_id_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, b *models.Bucket) (*models.Bucket, error) {
	query :=
		`INSERT INTO storj_buckets (user_id, bucket_name, access_key_id_encrypted, secret_access_key_encrypted, endpoint)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		b.UserID, b.BucketName, b.AccessKeyIDEncrypted, b.SecretAccessKeyEncrypted, b.Endpoint).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, userConstraint) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return b, nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.Bucket, error) {
	query :=
		`SELECT id, user_id, bucket_name, access_key_id_encrypted, secret_access_key_encrypted, endpoint, created_at, updated_at
		 FROM storj_buckets
		 WHERE user_id = $1
		 `

	b := &models.Bucket{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&b.ID, &b.UserID, &b.BucketName,
		&b.AccessKeyIDEncrypted, &b.SecretAccessKeyEncrypted, &b.Endpoint, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}
