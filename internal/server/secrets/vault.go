package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// VaultTransitCipher delegates encryption to a HashiCorp Vault transit key,
// so the key material never leaves Vault. The key must use an AEAD type
// (aes256-gcm96 or chacha20-poly1305) for associated data to be honoured.
type VaultTransitCipher struct {
	logical *api.Logical
	mount   string
	key     string
}

// VaultConfig locates the transit key.
type VaultConfig struct {
	Address string
	Token   string
	Mount   string
	KeyName string
}

// NewVaultTransitCipher builds a Vault API client from cfg.
func NewVaultTransitCipher(cfg VaultConfig) (*VaultTransitCipher, error) {
	vc := api.DefaultConfig()
	if cfg.Address != "" {
		vc.Address = cfg.Address
	}
	client, err := api.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	mount := cfg.Mount
	if mount == "" {
		mount = "transit"
	}
	if cfg.KeyName == "" {
		return nil, errors.New("vault transit key name is required")
	}
	return &VaultTransitCipher{logical: client.Logical(), mount: mount, key: cfg.KeyName}, nil
}

func (c *VaultTransitCipher) Encrypt(ctx context.Context, plaintext, aad []byte) ([]byte, error) {
	secret, err := c.logical.WriteWithContext(ctx, c.mount+"/encrypt/"+c.key, map[string]any{
		"plaintext":       base64.StdEncoding.EncodeToString(plaintext),
		"associated_data": base64.StdEncoding.EncodeToString(aad),
	})
	if err != nil {
		return nil, fmt.Errorf("vault encrypt: %w", err)
	}
	ct, err := stringField(secret, "ciphertext")
	if err != nil {
		return nil, err
	}
	return []byte(ct), nil
}

func (c *VaultTransitCipher) Decrypt(ctx context.Context, ciphertext, aad []byte) ([]byte, error) {
	secret, err := c.logical.WriteWithContext(ctx, c.mount+"/decrypt/"+c.key, map[string]any{
		"ciphertext":      string(ciphertext),
		"associated_data": base64.StdEncoding.EncodeToString(aad),
	})
	if err != nil {
		var respErr *api.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		return nil, fmt.Errorf("vault decrypt: %w", err)
	}
	encoded, err := stringField(secret, "plaintext")
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func stringField(secret *api.Secret, name string) (string, error) {
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault response without data")
	}
	v, ok := secret.Data[name].(string)
	if !ok {
		return "", fmt.Errorf("vault response without %s", name)
	}
	return v, nil
}
