package models

import "time"

// Bucket is the stored delegated object-storage credential. Both key fields
// are ciphertexts produced by the server-side secret cipher with the owning
// user id as associated data.
type Bucket struct {
	ID                       string
	UserID                   string
	BucketName               string
	AccessKeyIDEncrypted     []byte
	SecretAccessKeyEncrypted []byte
	Endpoint                 string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// BucketCredentials is the decrypted view of a Bucket handed to its owner.
type BucketCredentials struct {
	BucketID        string
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}
