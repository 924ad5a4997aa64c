// Package provisioning talks to the external object-storage provider: it
// allocates one bucket per user and mints an access key pair scoped to it.
package provisioning

import (
	"context"
	"errors"
)

// ErrProvider wraps every failure reported by the storage provider.
var ErrProvider = errors.New("storage provider error")

// Credentials is a key pair usable against a single bucket.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Provisioner is the contract Wayne needs from the provisioning API.
type Provisioner interface {
	CreateBucket(ctx context.Context, name string) error
	BucketExists(ctx context.Context, name string) (bool, error)
	IssueCredentials(ctx context.Context, bucket string) (*Credentials, error)
	Endpoint() string
}
