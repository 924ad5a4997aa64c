package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/models"
	"github.com/dmitrijs2005/wayne/internal/server/provisioning"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wayne/internal/server/secrets"
	"github.com/google/uuid"
)

const bucketNamePrefix = "wayne-"

// BucketService provisions one object-storage bucket per user and keeps the
// issued key pair encrypted at rest. Every ciphertext is bound to its owner
// through the cipher's associated data.
type BucketService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provisioner provisioning.Provisioner
	cipher      secrets.Cipher
	logger      logging.Logger
}

func NewBucketService(db *sql.DB, m repomanager.RepositoryManager, p provisioning.Provisioner, c secrets.Cipher, logger logging.Logger) *BucketService {
	return &BucketService{
		db:          db,
		repomanager: m,
		provisioner: p,
		cipher:      c,
		logger:      logger.With("module", "buckets"),
	}
}

// BucketName derives the provider bucket name from a user id.
func BucketName(userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("%w: malformed user id", common.ErrorValidation)
	}
	return bucketNamePrefix + strings.ReplaceAll(id.String(), "-", ""), nil
}

// CreateForUser provisions a bucket and stores its credentials. It fails with
// common.ErrorAlreadyExists when the user already has one.
func (s *BucketService) CreateForUser(ctx context.Context, userID string) (*models.Bucket, error) {
	repo := s.repomanager.Buckets(s.db)

	_, err := repo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("%w: get bucket: %v", common.ErrorInternal, err)
	}

	name, err := BucketName(userID)
	if err != nil {
		return nil, err
	}

	exists, err := s.provisioner.BucketExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !exists {
		if err := s.provisioner.CreateBucket(ctx, name); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
	}

	creds, err := s.provisioner.IssueCredentials(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	aad := []byte(userID)
	plainAccess, plainSecret := []byte(creds.AccessKeyID), []byte(creds.SecretAccessKey)
	defer common.WipeByteArray(plainAccess)
	defer common.WipeByteArray(plainSecret)

	accessKey, err := s.cipher.Encrypt(ctx, plainAccess, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt access key: %v", common.ErrorInternal, err)
	}
	secretKey, err := s.cipher.Encrypt(ctx, plainSecret, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt secret key: %v", common.ErrorInternal, err)
	}

	b, err := repo.Create(ctx, &models.Bucket{
		UserID:                   userID,
		BucketName:               name,
		AccessKeyIDEncrypted:     accessKey,
		SecretAccessKeyEncrypted: secretKey,
		Endpoint:                 s.provisioner.Endpoint(),
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("%w: store bucket: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "bucket provisioned", "user_id", userID, "bucket", name)
	return b, nil
}

// EnsureForUser returns the user's bucket, provisioning it first if needed.
func (s *BucketService) EnsureForUser(ctx context.Context, userID string) (*models.Bucket, error) {
	b, err := s.repomanager.Buckets(s.db).GetByUserID(ctx, userID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: get bucket: %v", common.ErrorInternal, err)
	}

	b, err = s.CreateForUser(ctx, userID)
	if errors.Is(err, common.ErrorAlreadyExists) {
		// lost a race with a concurrent create
		return s.repomanager.Buckets(s.db).GetByUserID(ctx, userID)
	}
	return b, err
}

// GetForUser returns the decrypted credentials of the caller's bucket.
func (s *BucketService) GetForUser(ctx context.Context, userID string) (*models.BucketCredentials, error) {
	b, err := s.repomanager.Buckets(s.db).GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: get bucket: %v", common.ErrorInternal, err)
	}

	aad := []byte(userID)
	accessKey, err := s.cipher.Decrypt(ctx, b.AccessKeyIDEncrypted, aad)
	if err != nil {
		s.logger.Error(ctx, "bucket credential decrypt failed", "user_id", userID, "bucket_id", b.ID, "error", err)
		return nil, fmt.Errorf("%w: decrypt access key: %v", common.ErrorInternal, err)
	}
	defer common.WipeByteArray(accessKey)

	secretKey, err := s.cipher.Decrypt(ctx, b.SecretAccessKeyEncrypted, aad)
	if err != nil {
		s.logger.Error(ctx, "bucket credential decrypt failed", "user_id", userID, "bucket_id", b.ID, "error", err)
		return nil, fmt.Errorf("%w: decrypt secret key: %v", common.ErrorInternal, err)
	}
	defer common.WipeByteArray(secretKey)

	return &models.BucketCredentials{
		BucketID:        b.ID,
		BucketName:      b.BucketName,
		AccessKeyID:     string(accessKey),
		SecretAccessKey: string(secretKey),
		Endpoint:        b.Endpoint,
	}, nil
}
