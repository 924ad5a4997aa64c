package client

import "context"

// Client is the transport-agnostic contract of the Wayne API.
type Client interface {
	Register(ctx context.Context, email, password string, remember bool) (*Session, error)
	Login(ctx context.Context, email, password string, remember bool) (*Session, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	RotateMasterSecret(ctx context.Context, envelope Envelope) error
	PutEnvelope(ctx context.Context, envelope Envelope) (string, error)
	GetEnvelope(ctx context.Context) (*Envelope, string, error)
	CreateBucket(ctx context.Context) (*Bucket, error)
	GetBucket(ctx context.Context) (*BucketCredentials, error)
	Health(ctx context.Context) error
}

// Session describes the tokens held after a register or login.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type MKEK struct {
	Nonce   []byte `json:"nonce"`
	Payload []byte `json:"payload"`
}

// Envelope is the opaque key envelope exactly as the server stores it.
type Envelope struct {
	Version      int    `json:"version"`
	PasswordSalt []byte `json:"password_salt"`
	MKEK         MKEK   `json:"mkek"`
}

type Bucket struct {
	BucketID   string `json:"bucket_id"`
	BucketName string `json:"bucket_name"`
	Endpoint   string `json:"endpoint"`
	Message    string `json:"message"`
}

type BucketCredentials struct {
	BucketID        string `json:"bucket_id"`
	BucketName      string `json:"bucket_name"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"`
}
