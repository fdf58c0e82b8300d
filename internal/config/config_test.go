// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/format"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Delivery.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Delivery.SettleDelay.Duration)
	assert.Equal(t, time.Second, cfg.Delivery.InterAttemptDelay.Duration)
	assert.Equal(t, time.Second, cfg.Delivery.ReconcileDelay.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Provision.SettleDelay.Duration)
	assert.Equal(t, 3, cfg.Provision.ListRefreshes)
	assert.Equal(t, format.Text, cfg.DefaultFormat())
	assert.Len(t, cfg.Validator.Markers, len(format.DefaultMarkers))
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://chat.example.com/api/chat"
token = "secret"
timeout = "30s"
rate_limit = 2.5

[delivery]
max_retries = 3
settle_delay = "500ms"
default_format = "pdf"

[[validator.markers]]
subject = "File"
outcome = "is ready"

[instructions.documentTemplates]
pdf = "Read it carefully."
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com/api/chat", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout.Duration)
	assert.Equal(t, 2.5, cfg.API.RateLimit)
	assert.Equal(t, 3, cfg.Delivery.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Delivery.SettleDelay.Duration)
	assert.Equal(t, time.Second, cfg.Delivery.InterAttemptDelay.Duration, "unset values get defaults")
	assert.Equal(t, format.PDF, cfg.DefaultFormat())
	assert.Equal(t, []format.Marker{{Subject: "File", Outcome: "is ready"}}, cfg.Validator.Markers)
	assert.Equal(t, "Read it carefully.", cfg.Instructions["documentTemplates"]["pdf"])
}

func TestLoadFromPath_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "[delivery]\nsettle_delay = \"soon\"\n", "failed to decode"},
		{"unknown key", "[api]\nbase_ulr = \"https://x\"\n", "unknown config keys"},
		{"out of range", "[delivery]\nmax_retries = 99\n", "delivery.max_retries"},
		{"bad format", "[delivery]\ndefault_format = \"gif\"\n", "delivery.default_format"},
		{"bad scheme", "[api]\nbase_url = \"ftp://host/api/chat\"\n", "api.base_url"},
		{"not toml", "this is = = not toml", "failed to decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromPath_TightensPermissions(t *testing.T) {
	path := writeConfig(t, "[log]\nlevel = \"debug\"\n")
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		fields []string
	}{
		{"valid default config", func(c *Config) {}, nil},
		{"negative delay", func(c *Config) { c.Delivery.SettleDelay = D(-time.Second) }, []string{"delivery.settle_delay"}},
		{"zero retries", func(c *Config) { c.Delivery.MaxRetries = 0 }, []string{"delivery.max_retries"}},
		{"missing host", func(c *Config) { c.API.BaseURL = "https:///api/chat" }, []string{"api.base_url"}},
		{"blank marker", func(c *Config) { c.Validator.Markers = []format.Marker{{Subject: "Doc"}} }, []string{"validator.markers[0]"}},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, []string{"log.level"}},
		{"several", func(c *Config) {
			c.API.RateLimit = -1
			c.Provision.ListRefreshes = 0
		}, []string{"api.rate_limit", "provision.list_refreshes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			var got []string
			for _, e := range verrs {
				got = append(got, e.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_API_URL", "http://localhost:3000/api/chat")
	t.Setenv("DOCCHAT_TOKEN", "env-token")
	t.Setenv("DOCCHAT_LOG_LEVEL", "debug")
	t.Setenv("DOCCHAT_FORMAT", "excel")
	t.Setenv("DOCCHAT_MAX_RETRIES", "2")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://localhost:3000/api/chat", cfg.API.BaseURL)
	assert.Equal(t, "env-token", cfg.API.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, format.Excel, cfg.DefaultFormat())
	assert.Equal(t, 2, cfg.Delivery.MaxRetries)

	t.Setenv("DOCCHAT_MAX_RETRIES", "many")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 2, cfg.Delivery.MaxRetries, "non-integer values are ignored")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOCCHAT_TEST_DOTENV=from-file\n"), 0600))

	t.Setenv("DOCCHAT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DOCCHAT_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("DOCCHAT_TEST_DOTENV"))

	// Variables already in the environment are not overwritten.
	t.Setenv("DOCCHAT_TEST_DOTENV", "from-env")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv("DOCCHAT_TEST_DOTENV"))
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.API.Token = "keep-me"
	cfg.Delivery.InterAttemptDelay = D(1500 * time.Millisecond)
	cfg.Instructions = map[string]map[string]string{"conversionInstructions": {"toPdf": "PDF please."}}
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `inter_attempt_delay = "1.5s"`)

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "keep-me", loaded.API.Token)
	assert.Equal(t, 1500*time.Millisecond, loaded.Delivery.InterAttemptDelay.Duration)
	assert.Equal(t, "PDF please.", loaded.Instructions["conversionInstructions"]["toPdf"])
}

func TestConfig_StringRedactsToken(t *testing.T) {
	cfg := Default()
	cfg.API.Token = "super-secret"

	out := cfg.String()
	assert.NotContains(t, out, "super-secret")
	assert.Contains(t, out, "[REDACTED]")
	assert.Equal(t, "super-secret", cfg.API.Token, "original is untouched")
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := Default()
	cfg.Instructions = map[string]map[string]string{"documentTemplates": {"pdf": "a"}}

	clone := cfg.Clone()
	clone.Instructions["documentTemplates"]["pdf"] = "b"
	clone.Validator.Markers[0].Subject = "changed"

	assert.Equal(t, "a", cfg.Instructions["documentTemplates"]["pdf"])
	assert.False(t, strings.EqualFold(cfg.Validator.Markers[0].Subject, "changed"))
}
