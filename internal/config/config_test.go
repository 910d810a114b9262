package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: 8080
  env: "test"
database:
  driver: "sqlite"
  url: "file:test.db"
jwt:
  secret: "from-file"
hire:
  max_retries: 5
  timeout: 3s
realtime:
  allowed_origins:
    - "http://localhost:5173"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 5, cfg.Hire.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Hire.Timeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Realtime.AllowedOrigins)

	// дефолты
	assert.Equal(t, 60, cfg.JWT.TTL)
	assert.Equal(t, 20, cfg.Fanout.BatchSize)
	assert.Equal(t, 3, cfg.Email.MaxAttempts)
	assert.Equal(t, "@daily", cfg.Cleanup.Schedule)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("HIRE_MAX_RETRIES", "7")
	t.Setenv("FANOUT_RETRY_DELAY", "250ms")
	t.Setenv("REALTIME_ALLOWED_ORIGINS", "https://a.test,https://b.test")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 7, cfg.Hire.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Fanout.RetryDelay)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Realtime.AllowedOrigins)
}

func TestLoad_MissingFileUsesEnvOnly(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("DATABASE_URL", "user:pass@tcp(localhost:3306)/gigflow")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	_, err := Load(writeConfig(t, "database:\n  driver: \"oracle\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "database.url is required")
	assert.Contains(t, err.Error(), "jwt.secret is required")

	t.Setenv("EMAIL_ENABLED", "true")
	_, err = Load(writeConfig(t, testYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email.smtp_host")
}
