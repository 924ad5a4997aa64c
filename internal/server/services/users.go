// Package services holds the control-plane use cases: authentication, token
// lifecycle, key envelope custody and delegated bucket credentials.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/dbx"
	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/auth"
	"github.com/dmitrijs2005/wayne/internal/server/models"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/repomanager"
)

// AuthResult is returned by Register and Login. RefreshToken is nil unless
// the caller asked to be remembered.
type AuthResult struct {
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresIn    time.Duration
}

// PasswordChange is one of IdentityPasswordChange or MasterSecretRotation.
type PasswordChange interface {
	passwordChange()
}

// IdentityPasswordChange replaces the login password and ends every session.
type IdentityPasswordChange struct {
	OldPassword string
	NewPassword string
}

// MasterSecretRotation replaces the key envelope. The server cannot check
// the old master secret; the client proves it by decrypting first.
type MasterSecretRotation struct {
	Envelope Envelope
}

func (IdentityPasswordChange) passwordChange() {}
func (MasterSecretRotation) passwordChange()   {}

// BucketEnsurer provisions delegated storage for a freshly registered user.
type BucketEnsurer interface {
	EnsureForUser(ctx context.Context, userID string) (*models.Bucket, error)
}

// UserService is the authentication gateway.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
	tokens      *TokenService
	envelopes   *EnvelopeService
	buckets     BucketEnsurer
	logger      logging.Logger
}

// NewUserService wires the gateway. buckets may be nil, in which case
// registration skips storage provisioning.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher,
	tokens *TokenService, envelopes *EnvelopeService, buckets BucketEnsurer, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		envelopes:   envelopes,
		buckets:     buckets,
		logger:      logger.With("module", "users"),
	}
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("%w: malformed email", common.ErrorValidation)
	}
	return validatePassword(password)
}

func validatePassword(password string) error {
	if len(password) < common.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, common.MinPasswordLength)
	}
	if len(password) > common.MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrorValidation, common.MaxPasswordLength)
	}
	return nil
}

// Register creates an account. Storage provisioning is attempted but its
// failure never fails the registration.
func (s *UserService) Register(ctx context.Context, email, password string, remember bool) (*AuthResult, error) {
	email = common.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("%w: create user: %v", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "user registered", "user_id", user.ID)

	if s.buckets != nil {
		if _, err := s.buckets.EnsureForUser(ctx, user.ID); err != nil {
			s.logger.Warn(ctx, "bucket provisioning skipped", "user_id", user.ID, "error", err)
		}
	}

	return s.startSession(ctx, user, remember)
}

// Login never tells an unknown email apart from a wrong password; both cost
// one bcrypt comparison and return common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string, remember bool) (*AuthResult, error) {
	email = common.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: get user: %v", common.ErrorInternal, err)
		}
		if err := s.hasher.CompareDummy(ctx, password); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		return nil, common.ErrorUnauthorized
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("%w: compare password: %v", common.ErrorInternal, err)
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	return s.startSession(ctx, user, remember)
}

func (s *UserService) startSession(ctx context.Context, user *models.User, remember bool) (*AuthResult, error) {
	access, err := s.tokens.IssueAccess(ctx, auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}

	res := &AuthResult{UserID: user.ID, AccessToken: access, ExpiresIn: s.tokens.AccessTTL()}
	if remember {
		refresh, err := s.tokens.IssueRefresh(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		res.RefreshToken = &refresh
	}
	return res, nil
}

// ChangePassword applies either variant of PasswordChange for userID.
func (s *UserService) ChangePassword(ctx context.Context, userID string, change PasswordChange) error {
	switch c := change.(type) {
	case IdentityPasswordChange:
		return s.changeIdentityPassword(ctx, userID, c)
	case MasterSecretRotation:
		return s.rotateMasterSecret(ctx, userID, c)
	default:
		return fmt.Errorf("%w: unsupported password change", common.ErrorValidation)
	}
}

func (s *UserService) changeIdentityPassword(ctx context.Context, userID string, c IdentityPasswordChange) error {
	if c.OldPassword == "" {
		return fmt.Errorf("%w: old_password is required", common.ErrorValidation)
	}
	if err := validatePassword(c.NewPassword); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return fmt.Errorf("%w: get user: %v", common.ErrorInternal, err)
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, c.OldPassword)
	if err != nil {
		return fmt.Errorf("%w: compare password: %v", common.ErrorInternal, err)
	}
	if !ok {
		return common.ErrorUnauthorized
	}

	hash, err := s.hasher.Hash(ctx, c.NewPassword)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, userID, hash); err != nil {
			return fmt.Errorf("%w: update password: %v", common.ErrorInternal, err)
		}
		_, err := s.tokens.revokeAll(ctx, tx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "identity password changed", "user_id", userID)
	return nil
}

// rotateMasterSecret overwrites the envelope without touching sessions. A
// zero version keeps the stored one, or starts at 1 when there is none.
func (s *UserService) rotateMasterSecret(ctx context.Context, userID string, c MasterSecretRotation) error {
	env := c.Envelope
	if env.Version == 0 {
		env.Version = 1
		current, err := s.envelopes.GetForUser(ctx, userID)
		switch {
		case err == nil:
			env.Version = current.Version
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}
	}

	if _, err := s.envelopes.Upsert(ctx, userID, env); err != nil {
		return err
	}
	s.logger.Info(ctx, "master secret rotated", "user_id", userID, "version", env.Version)
	return nil
}

// Logout revokes one refresh token. Unknown tokens are not an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh_token is required", common.ErrorValidation)
	}
	_, err := s.tokens.Revoke(ctx, refreshToken)
	return err
}

// Refresh exchanges a refresh token for a new access token.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	access, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return "", 0, err
	}
	return access, s.tokens.AccessTTL(), nil
}
