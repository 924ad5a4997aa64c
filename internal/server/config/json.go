package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/wayne/internal/flagx"
	"github.com/dmitrijs2005/wayne/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Zero
// values leave the current setting untouched.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	GRPCHealthAddr               string         `json:"grpc_health_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	LogLevel                     string         `json:"log_level"`
	SecretKey                    string         `json:"secret_key"`
	RefreshTokenKey              string         `json:"refresh_token_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	HashConcurrency              int            `json:"hash_concurrency"`
	SecretBackend                string         `json:"secret_backend"`
	CredentialEncryptionKey      string         `json:"credential_encryption_key"`
	VaultAddress                 string         `json:"vault_address"`
	VaultToken                   string         `json:"vault_token"`
	VaultMount                   string         `json:"vault_mount"`
	VaultKeyName                 string         `json:"vault_key_name"`
	S3Endpoint                   string         `json:"s3_endpoint"`
	S3PublicEndpoint             string         `json:"s3_public_endpoint"`
	S3Region                     string         `json:"s3_region"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	IAMEndpoint                  string         `json:"iam_endpoint"`
	DBMaxOpenConns               int            `json:"db_max_open_conns"`
	DBMaxIdleConns               int            `json:"db_max_idle_conns"`
	DBConnMaxLifetime            timex.Duration `json:"db_conn_max_lifetime"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays values from the file named by -c/-config (or
// WAYNE_CONFIG). Fields missing from the file keep their current value.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RefreshTokenKey, c.RefreshTokenKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.HashConcurrency, c.HashConcurrency)
	setString(&config.SecretBackend, c.SecretBackend)
	setString(&config.CredentialEncryptionKey, c.CredentialEncryptionKey)
	setString(&config.VaultAddress, c.VaultAddress)
	setString(&config.VaultToken, c.VaultToken)
	setString(&config.VaultMount, c.VaultMount)
	setString(&config.VaultKeyName, c.VaultKeyName)
	setString(&config.S3Endpoint, c.S3Endpoint)
	setString(&config.S3PublicEndpoint, c.S3PublicEndpoint)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.IAMEndpoint, c.IAMEndpoint)
	setInt(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	setInt(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setDuration(&config.DBConnMaxLifetime, c.DBConnMaxLifetime)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
