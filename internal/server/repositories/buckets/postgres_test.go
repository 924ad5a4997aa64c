package buckets

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ = `(?s)^INSERT\s+INTO\s+storj_buckets\s*\(user_id,\s*bucket_name,\s*access_key_id_encrypted,\s*secret_access_key_encrypted,\s*endpoint\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`
	byUserQ = `(?s)^SELECT\s+id,\s*user_id,\s*bucket_name,.*FROM\s+storj_buckets\s+WHERE\s+user_id\s*=\s*\$1\s*$`
)

func sampleBucket() *models.Bucket {
	return &models.Bucket{
		UserID:                   "u1",
		BucketName:               "wayne-abc",
		AccessKeyIDEncrypted:     []byte("enc-ak"),
		SecretAccessKeyEncrypted: []byte("enc-sk"),
		Endpoint:                 "https://gateway.example",
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("u1", "wayne-abc", []byte("enc-ak"), []byte("enc-sk"), "https://gateway.example").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("b1", now, now))

	got, err := repo.Create(context.Background(), sampleBucket())
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "storj_buckets_user_id_key"})

	_, err := repo.Create(context.Background(), sampleBucket())
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), sampleBucket())
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Contains(t, err.Error(), "db error")
}

func TestGetByUserID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "user_id", "bucket_name", "access_key_id_encrypted", "secret_access_key_encrypted", "endpoint", "created_at", "updated_at"}
	mock.ExpectQuery(byUserQ).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b1", "u1", "wayne-abc", []byte("a"), []byte("s"), "https://gw", now, now))
	mock.ExpectQuery(byUserQ).WithArgs("u2").WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "wayne-abc", got.BucketName)
	assert.Equal(t, []byte("s"), got.SecretAccessKeyEncrypted)

	_, err = repo.GetByUserID(context.Background(), "u2")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
