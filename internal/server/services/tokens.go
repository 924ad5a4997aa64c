package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/cryptox"
	"github.com/dmitrijs2005/wayne/internal/dbx"
	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/auth"
	"github.com/dmitrijs2005/wayne/internal/server/config"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/repomanager"
)

// TokenService issues stateless access tokens and manages the stateful
// refresh tokens behind them.
//
// Refresh tokens are looked up by HMAC-SHA256 under a server key rather than
// by a salted slow hash, so a lookup is a single indexed equality match.
// Forging a stored value still requires the key.
type TokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger

	jwtSecret  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *TokenService {
	return &TokenService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "tokens"),
		jwtSecret:   []byte(cfg.SecretKey),
		refreshKey:  []byte(cfg.RefreshTokenKey),
		accessTTL:   cfg.AccessTokenValidityDuration,
		refreshTTL:  cfg.RefreshTokenValidityDuration,
		now:         time.Now,
	}
}

// AccessTTL is the lifetime of every access token this service signs.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccess signs an access token carrying the user's id and email.
func (s *TokenService) IssueAccess(_ context.Context, id auth.Identity) (string, error) {
	token, err := auth.GenerateToken(id, s.jwtSecret, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("%w: sign access token: %v", common.ErrorInternal, err)
	}
	return token, nil
}

// VerifyAccess checks signature and expiry only; revocation state is not
// consulted.
func (s *TokenService) VerifyAccess(token string) (*auth.Identity, error) {
	return auth.ParseToken(token, s.jwtSecret)
}

// IssueRefresh creates a new refresh token for userID and returns the
// plaintext. Only its MAC is stored.
func (s *TokenService) IssueRefresh(ctx context.Context, userID string) (string, error) {
	token, err := common.MakeRandURLString(common.RefreshTokenSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	repo := s.repomanager.RefreshTokens(s.db)
	if err := repo.Create(ctx, userID, s.hash(token), s.now().Add(s.refreshTTL)); err != nil {
		return "", fmt.Errorf("%w: store refresh token: %v", common.ErrorInternal, err)
	}

	return token, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token stays valid until it expires or is revoked.
func (s *TokenService) Refresh(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrorUnauthorized
	}

	rt, err := s.repomanager.RefreshTokens(s.db).FindActive(ctx, s.hash(token), s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("%w: find refresh token: %v", common.ErrorInternal, err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("%w: load user: %v", common.ErrorInternal, err)
	}

	return s.IssueAccess(ctx, auth.Identity{UserID: user.ID, Email: user.Email})
}

// Revoke deletes a single refresh token and reports whether it existed.
func (s *TokenService) Revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	ok, err := s.repomanager.RefreshTokens(s.db).Delete(ctx, s.hash(token))
	if err != nil {
		return false, fmt.Errorf("%w: revoke refresh token: %v", common.ErrorInternal, err)
	}
	return ok, nil
}

// RevokeAllForUser deletes every refresh token owned by userID.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.revokeAll(ctx, s.db, userID)
}

func (s *TokenService) revokeAll(ctx context.Context, db dbx.DBTX, userID string) (int64, error) {
	n, err := s.repomanager.RefreshTokens(db).DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: revoke refresh tokens: %v", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "refresh tokens revoked", "user_id", userID, "count", n)
	return n, nil
}

// CleanupExpired removes refresh tokens past their expiry. It is meant to be
// driven by an external scheduler.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired refresh tokens: %v", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "expired refresh tokens removed", "count", n)
	return n, nil
}

func (s *TokenService) hash(token string) string {
	return cryptox.MAC(s.refreshKey, token)
}
