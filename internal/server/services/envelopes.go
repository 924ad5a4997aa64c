package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/dbx"
	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/models"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Envelope is the client-supplied key envelope. The byte fields are opaque.
type Envelope struct {
	Version      int
	PasswordSalt []byte
	MKEKNonce    []byte
	MKEKPayload  []byte
}

func (e Envelope) validate() error {
	switch {
	case e.Version < 1:
		return fmt.Errorf("%w: envelope version must be >= 1", common.ErrorValidation)
	case len(e.PasswordSalt) == 0:
		return fmt.Errorf("%w: password_salt is required", common.ErrorValidation)
	case len(e.MKEKNonce) == 0:
		return fmt.Errorf("%w: mkek.nonce is required", common.ErrorValidation)
	case len(e.MKEKPayload) == 0:
		return fmt.Errorf("%w: mkek.payload is required", common.ErrorValidation)
	}
	return nil
}

// EnvelopeService stores exactly one key envelope per user. Writes replace
// the previous envelope entirely; nothing is kept for history.
type EnvelopeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewEnvelopeService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *EnvelopeService {
	return &EnvelopeService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "envelopes"),
	}
}

// Upsert stores env as userID's envelope and returns its id.
func (s *EnvelopeService) Upsert(ctx context.Context, userID string, env Envelope) (string, error) {
	return s.upsert(ctx, s.db, userID, env)
}

func (s *EnvelopeService) upsert(ctx context.Context, db dbx.DBTX, userID string, env Envelope) (string, error) {
	if err := env.validate(); err != nil {
		return "", err
	}

	id, err := s.repomanager.KeyEnvelopes(db).Upsert(ctx, &models.KeyEnvelope{
		UserID:       userID,
		Version:      env.Version,
		PasswordSalt: env.PasswordSalt,
		MKEKNonce:    env.MKEKNonce,
		MKEKPayload:  env.MKEKPayload,
	})
	if err != nil {
		return "", fmt.Errorf("%w: upsert envelope: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "key envelope stored", "user_id", userID, "envelope_id", id, "version", env.Version)
	return id, nil
}

// GetForUser returns common.ErrorNotFound until the user bootstraps a vault.
func (s *EnvelopeService) GetForUser(ctx context.Context, userID string) (*models.KeyEnvelope, error) {
	return s.getForUser(ctx, s.db, userID)
}

func (s *EnvelopeService) getForUser(ctx context.Context, db dbx.DBTX, userID string) (*models.KeyEnvelope, error) {
	e, err := s.repomanager.KeyEnvelopes(db).GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: get envelope: %v", common.ErrorInternal, err)
	}
	return e, nil
}

// GetByID fetches an envelope by id on behalf of callerID. Envelopes owned by
// someone else yield common.ErrorForbidden.
func (s *EnvelopeService) GetByID(ctx context.Context, callerID, envelopeID string) (*models.KeyEnvelope, error) {
	if _, err := uuid.Parse(envelopeID); err != nil {
		return nil, common.ErrorNotFound
	}

	e, err := s.repomanager.KeyEnvelopes(s.db).GetByID(ctx, envelopeID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: get envelope: %v", common.ErrorInternal, err)
	}

	if e.UserID != callerID {
		s.logger.Warn(ctx, "envelope access denied", "caller_id", callerID, "envelope_id", envelopeID)
		return nil, common.ErrorForbidden
	}
	return e, nil
}
