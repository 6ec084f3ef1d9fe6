package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "custodyd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsSecureByDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.Auth.Enabled)
	require.True(t, cfg.Auth.enabledSet)
	require.False(t, cfg.Auth.AllowAnonymous)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.ErrorIs(t, cfg.RequireSecret(), ErrAuthSecretMissing)
}

func TestLoadRequiresOptionalPathsWhenAllowAnonymousEnabled(t *testing.T) {
	path := writeConfig(t, "auth:\n  enabled: true\n  allowAnonymous: true\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
listen: 127.0.0.1:9000
readTimeout: 5s
storage:
  dataDir: /var/lib/custodyd
history:
  driver: postgres
  dsn: postgres://history
genesis: genesis.toml
pausedModules: [" Loan ", rental]
rateLimits:
  - id: mutations
    requestsPerMinute: 120
    burst: 10
auth:
  enabled: true
  hmacSecret: s3cret
  allowAnonymous: true
  optionalPaths: [" /v1/assets "]
log:
  path: /var/log/custodyd.log
  maxSizeMB: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, 5*time.Second, cfg.ReadTimeout)
	require.Equal(t, 30*time.Second, cfg.WriteTimeout)
	require.Equal(t, "/var/lib/custodyd", cfg.Storage.DataDir)
	require.Equal(t, "postgres", cfg.History.Driver)
	require.Equal(t, []string{"loan", "rental"}, cfg.PausedModules)
	require.Equal(t, []string{"/v1/assets"}, cfg.Auth.OptionalPaths)
	require.Equal(t, 50, cfg.Log.MaxSizeMB)
	require.NoError(t, cfg.RequireSecret())
}

func TestLoadRejectsUnknownModuleAndFields(t *testing.T) {
	_, err := Load(writeConfig(t, "pausedModules: [staking]\n"))
	require.Error(t, err)
	_, err = Load(writeConfig(t, "services: []\n"))
	require.Error(t, err)
}

func TestLoadRejectsDuplicateRateLimit(t *testing.T) {
	_, err := Load(writeConfig(t, "rateLimits:\n  - id: a\n  - id: a\n"))
	require.Error(t, err)
}

func TestLoadRejectsHalfTLS(t *testing.T) {
	_, err := Load(writeConfig(t, "security:\n  tlsCertFile: /etc/cert.pem\n"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	env := map[string]string{"ONDA_LISTEN": ":7000", "ONDA_AUTH_SECRET": "k", "ONDA_HISTORY_DSN": "file:h.db"}
	cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.Equal(t, ":7000", cfg.ListenAddress)
	require.Equal(t, "k", cfg.Auth.HMACSecret)
	require.Equal(t, "file:h.db", cfg.History.DSN)
}
