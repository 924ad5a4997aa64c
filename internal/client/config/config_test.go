package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{ServerURL: "https://wayne.example", RequestTimeout: time.Second}, false},
		{"no scheme", Config{ServerURL: "wayne.example:8080", RequestTimeout: time.Second}, true},
		{"ftp", Config{ServerURL: "ftp://wayne.example", RequestTimeout: time.Second}, true},
		{"zero timeout", Config{ServerURL: "http://wayne.example"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"server_url":      "http://json:8080",
		"request_timeout": "3s",
	})

	t.Run("json over defaults", func(t *testing.T) {
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://json:8080", cfg.ServerURL)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	})

	t.Run("env over json", func(t *testing.T) {
		t.Setenv("WAYNE_SERVER_URL", "http://env:8080")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://env:8080", cfg.ServerURL)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	})

	t.Run("no file", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	})
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("bad json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ nope`), 0o600))
		_, err := LoadConfig(bad)
		require.Error(t, err)
	})

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("WAYNE_REQUEST_TIMEOUT", "soon")
		_, err := LoadConfig("")
		require.Error(t, err)
	})
}
