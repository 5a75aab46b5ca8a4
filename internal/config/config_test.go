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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Fetcher.MaxRetries)
	assert.Equal(t, time.Second, cfg.Fetcher.JitterMin)
	assert.Equal(t, 3*time.Second, cfg.Fetcher.JitterMax)
	assert.Equal(t, 10, cfg.Filter.MinLength)
	assert.Equal(t, 10000, cfg.Filter.MaxLength)
	assert.Equal(t, DefaultBlacklist, cfg.Filter.BlacklistKeywords)
	assert.True(t, cfg.Preview.AutoApprove)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Vector.Enabled)
	assert.False(t, cfg.Storage.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
fetcher:
  max_retries: 5
  jitter_min: 200ms
  jitter_max: 400ms
filter:
  allowed_organizations: [某機關]
  blacklist_keywords: [機密]
processing:
  workers: 8
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Fetcher.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Fetcher.JitterMin)
	assert.Equal(t, []string{"某機關"}, cfg.Filter.AllowedOrganizations)
	assert.Equal(t, []string{"機密"}, cfg.Filter.BlacklistKeywords)
	assert.Equal(t, 8, cfg.Processing.Workers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted length bounds", "filter:\n  min_length: 50\n  max_length: 20\n"},
		{"zero retries", "fetcher:\n  max_retries: 0\n"},
		{"inverted jitter", "fetcher:\n  jitter_min: 5s\n  jitter_max: 1s\n"},
		{"zero workers", "processing:\n  workers: 0\n"},
		{"vector without key", "vector:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JINA_API_KEY", "")
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
