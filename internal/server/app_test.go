package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/config"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wayne/internal/server/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SecretKey = "jwt"
	c.RefreshTokenKey = "mac"
	c.CredentialEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	return c
}

func TestNewCipher(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		c, err := NewCipher(testConfig())
		require.NoError(t, err)
		assert.IsType(t, &secrets.AESGCMCipher{}, c)
	})

	t.Run("local with bad key", func(t *testing.T) {
		cfg := testConfig()
		cfg.CredentialEncryptionKey = "short"
		_, err := NewCipher(cfg)
		require.Error(t, err)
	})

	t.Run("vault", func(t *testing.T) {
		cfg := testConfig()
		cfg.SecretBackend = config.SecretBackendVault
		cfg.VaultAddress = "http://127.0.0.1:8200"
		cfg.VaultToken = "root"
		c, err := NewCipher(cfg)
		require.NoError(t, err)
		assert.IsType(t, &secrets.VaultTransitCipher{}, c)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.SecretBackend = "hsm"
		_, err := NewCipher(cfg)
		require.Error(t, err)
	})
}

func TestNewApp_DBFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(context.Context, string, repomanager.PoolOptions) (*sql.DB, error) {
		return nil, errors.New("dial tcp: refused")
	}

	_, err := NewApp(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error")
}

func TestBuildServices(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	deps, err := buildServices(context.Background(), testConfig(), db, repomanager.NewPostgresRepositoryManager(), logging.Nop{})
	require.NoError(t, err)
	assert.NotNil(t, deps.users)
	assert.NotNil(t, deps.tokens)
	assert.NotNil(t, deps.envelopes)
	assert.NotNil(t, deps.buckets)
}
