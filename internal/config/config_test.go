package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: \"9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./data/evaluations.db", cfg.Database.Path)
	assert.Equal(t, "memory", cfg.Retrieval.Type)
	assert.Equal(t, DefaultComplianceRules, cfg.Pipeline.ComplianceRules)
	assert.Zero(t, cfg.Dispatcher.MaxConcurrent)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.MaxFailuresBeforeSwitch)
}

func TestLoadConfig_ExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "groq-secret")
	t.Setenv("TEST_JWT_SECRET", "jwt-secret")

	cfg, err := LoadConfig(writeConfig(t, `
providers:
  - type: groq
    api_key: ${TEST_GROQ_KEY}
    retry_delay: 3s
auth:
  jwt_secret: ${TEST_JWT_SECRET}
`))
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "groq-secret", cfg.Providers[0].APIKey)
	assert.Equal(t, 3*time.Second, cfg.Providers[0].RetryDelay)
	assert.Equal(t, "jwt-secret", cfg.Auth.JWTSecret)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown gin mode", "server:\n  mode: prod\n"},
		{"postgres without url", "database:\n  type: postgres\n"},
		{"unknown database", "database:\n  type: mongo\n"},
		{"http retrieval without url", "retrieval:\n  type: http\n"},
		{"unknown retrieval", "retrieval:\n  type: chroma\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
