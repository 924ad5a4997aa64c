package keyenvelopes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/dbx"
	"github.com/dmitrijs2005/wayne/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert relies on the unique user_id constraint so concurrent writers for
// the same user serialise in the database.
func (r *PostgresRepository) Upsert(ctx context.Context, e *models.KeyEnvelope) (string, error) {
	query :=
		`INSERT INTO key_envelopes (user_id, version, password_salt, mkek_nonce, mkek_payload)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		   version = EXCLUDED.version,
		   password_salt = EXCLUDED.password_salt,
		   mkek_nonce = EXCLUDED.mkek_nonce,
		   mkek_payload = EXCLUDED.mkek_payload,
		   updated_at = now()
		 RETURNING id
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query,
		e.UserID, e.Version, e.PasswordSalt, e.MKEKNonce, e.MKEKPayload).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.KeyEnvelope, error) {
	query :=
		`SELECT id, user_id, version, password_salt, mkek_nonce, mkek_payload, created_at, updated_at
		 FROM key_envelopes
		 WHERE user_id = $1
		 `
	return scanEnvelope(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.KeyEnvelope, error) {
	query :=
		`SELECT id, user_id, version, password_salt, mkek_nonce, mkek_payload, created_at, updated_at
		 FROM key_envelopes
		 WHERE id = $1
		 `
	return scanEnvelope(r.db.QueryRowContext(ctx, query, id))
}

func scanEnvelope(row *sql.Row) (*models.KeyEnvelope, error) {
	e := &models.KeyEnvelope{}
	err := row.Scan(&e.ID, &e.UserID, &e.Version, &e.PasswordSalt, &e.MKEKNonce, &e.MKEKPayload,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}
