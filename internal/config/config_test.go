package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MEDRUNNER_API_URL", "https://api.example.test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/hub/emergency", cfg.HubPath)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 4, cfg.ReconnectAttempts)
	assert.Zero(t, cfg.TokenSkew)
	assert.Contains(t, cfg.AvailableLocales, "en-US")
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MEDRUNNER_RECONNECT_DELAY=250ms\nMEDRUNNER_AVAILABLE_LOCALES=en-US, fr-FR\n"), 0o600))
	t.Setenv("MEDRUNNER_API_URL", "http://localhost:9090")
	t.Setenv("MEDRUNNER_RECONNECT_DELAY", "")
	t.Setenv("MEDRUNNER_AVAILABLE_LOCALES", "")
	os.Unsetenv("MEDRUNNER_RECONNECT_DELAY")
	os.Unsetenv("MEDRUNNER_AVAILABLE_LOCALES")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, []string{"en-US", "fr-FR"}, cfg.AvailableLocales)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			APIURL:            "https://api.example.test",
			HubPath:           "/hub/emergency",
			ReconnectAttempts: 4,
			RequestTimeout:    time.Second,
			StateFile:         "state.json",
			AvailableLocales:  []string{"en-US"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad url", func(c *Config) { c.APIURL = "ftp://x" }, "MEDRUNNER_API_URL must be an http(s) URL"},
		{"hub path", func(c *Config) { c.HubPath = "hub" }, "MEDRUNNER_HUB_PATH must start with /"},
		{"attempts", func(c *Config) { c.ReconnectAttempts = 0 }, "MEDRUNNER_RECONNECT_ATTEMPTS must be positive"},
		{"skew", func(c *Config) { c.TokenSkew = -time.Second }, "MEDRUNNER_TOKEN_SKEW cannot be negative"},
		{"locales", func(c *Config) { c.AvailableLocales = nil }, "MEDRUNNER_AVAILABLE_LOCALES cannot be empty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.errMsg)
		})
	}
}

func TestLoadServerRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadServer(filepath.Join(t.TempDir(), "missing.env"))
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoadServer(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://portal.example.test")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "2")

	cfg, err := LoadServer(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, []string{"http://localhost:5173", "https://portal.example.test"}, cfg.CORSOrigins)
	assert.Equal(t, int32(4), cfg.DBMaxConns)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.DevRoutes)
	assert.False(t, cfg.SecureCookie)
	assert.Equal(t, time.Hour, cfg.TokenCleanup)
}
