package httpapi

import (
	"fmt"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/server/models"
	"github.com/dmitrijs2005/wayne/internal/server/services"
)

// Byte slices travel as standard base64 strings (encoding/json default).

type credentialsRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type authResponse struct {
	UserID       string  `json:"user_id"`
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type mkekDTO struct {
	Nonce   []byte `json:"nonce"`
	Payload []byte `json:"payload"`
}

type envelopeDTO struct {
	Version      int     `json:"version"`
	PasswordSalt []byte  `json:"password_salt"`
	MKEK         mkekDTO `json:"mkek"`
}

func (e envelopeDTO) toService() services.Envelope {
	return services.Envelope{
		Version:      e.Version,
		PasswordSalt: e.PasswordSalt,
		MKEKNonce:    e.MKEK.Nonce,
		MKEKPayload:  e.MKEK.Payload,
	}
}

func envelopeFromModel(e *models.KeyEnvelope) envelopeDTO {
	return envelopeDTO{
		Version:      e.Version,
		PasswordSalt: e.PasswordSalt,
		MKEK:         mkekDTO{Nonce: e.MKEKNonce, Payload: e.MKEKPayload},
	}
}

type upsertEnvelopeRequest struct {
	Envelope *envelopeDTO `json:"envelope"`
}

type envelopeIDResponse struct {
	EnvelopeID string `json:"envelope_id"`
}

type myEnvelopeResponse struct {
	Envelope   envelopeDTO `json:"envelope"`
	EnvelopeID string      `json:"envelope_id"`
}

type envelopeResponse struct {
	Envelope envelopeDTO `json:"envelope"`
}

const (
	passwordTypeIdentity = "wayne"
	passwordTypeMaster   = "master"
)

// changePasswordRequest carries both variants; toChange enforces that only
// the fields of the selected variant are present.
type changePasswordRequest struct {
	PasswordType string       `json:"password_type"`
	OldPassword  *string      `json:"old_password,omitempty"`
	NewPassword  *string      `json:"new_password,omitempty"`
	Envelope     *envelopeDTO `json:"envelope,omitempty"`
}

func (req changePasswordRequest) toChange() (services.PasswordChange, error) {
	switch req.PasswordType {
	case passwordTypeIdentity:
		if req.Envelope != nil {
			return nil, fmt.Errorf("%w: envelope is not allowed for password_type %q", common.ErrorValidation, req.PasswordType)
		}
		if req.OldPassword == nil || req.NewPassword == nil {
			return nil, fmt.Errorf("%w: old_password and new_password are required", common.ErrorValidation)
		}
		return services.IdentityPasswordChange{OldPassword: *req.OldPassword, NewPassword: *req.NewPassword}, nil
	case passwordTypeMaster:
		if req.OldPassword != nil || req.NewPassword != nil {
			return nil, fmt.Errorf("%w: passwords are not allowed for password_type %q", common.ErrorValidation, req.PasswordType)
		}
		if req.Envelope == nil {
			return nil, fmt.Errorf("%w: envelope is required", common.ErrorValidation)
		}
		return services.MasterSecretRotation{Envelope: req.Envelope.toService()}, nil
	case "":
		return nil, fmt.Errorf("%w: password_type is required", common.ErrorValidation)
	default:
		return nil, fmt.Errorf("%w: unknown password_type %q", common.ErrorValidation, req.PasswordType)
	}
}

type bucketCreatedResponse struct {
	BucketID   string `json:"bucket_id"`
	BucketName string `json:"bucket_name"`
	Endpoint   string `json:"endpoint"`
	Message    string `json:"message"`
}

type bucketCredentialsResponse struct {
	BucketID        string `json:"bucket_id"`
	BucketName      string `json:"bucket_name"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"`
}
