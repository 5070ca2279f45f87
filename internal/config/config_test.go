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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: presence
  user: presence
  password: presence
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 20, cfg.Database.MaxConns)
	require.Equal(t, 0.5, cfg.Recognition.DetectionThreshold)
	require.Equal(t, 60.0, cfg.Recognition.ConfidenceThreshold)
	require.Equal(t, 5, cfg.Recognition.MaxTemplatesPerIdent)
	require.Equal(t, 50.0, cfg.Lighting.BrightnessThreshold)
	require.True(t, cfg.Lighting.Enhance())
	require.Equal(t, 60*time.Second, cfg.Session.TTL)
	require.Equal(t, 50, cfg.Offline.MaxBatchSize)
	require.Equal(t, 3, cfg.Notification.MaxAttempts)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: sekrit
lighting:
  brightness_threshold: 70
  enhancement_enabled: false
session:
  ttl: 90s
recognition:
  confidence_threshold: 75
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "sekrit", cfg.Server.APIKey)
	require.Equal(t, 70.0, cfg.Lighting.BrightnessThreshold)
	require.False(t, cfg.Lighting.Enhance())
	require.Equal(t, 90*time.Second, cfg.Session.TTL)
	require.Equal(t, 75.0, cfg.Recognition.ConfidenceThreshold)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRESENCE_SERVER_PORT", "7000")
	t.Setenv("PRESENCE_DB_PASSWORD", "from-env")
	t.Setenv("PRESENCE_BRIGHTNESS_THRESHOLD", "42.5")
	t.Setenv("PRESENCE_ENHANCEMENT_ENABLED", "false")
	t.Setenv("PRESENCE_SESSION_TTL", "2m")

	path := writeConfig(t, `
server:
  port: 9090
database:
  password: from-file
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Database.Password)
	require.Equal(t, 42.5, cfg.Lighting.BrightnessThreshold)
	require.False(t, cfg.Lighting.Enhance())
	require.Equal(t, 2*time.Minute, cfg.Session.TTL)
}

func TestValidation(t *testing.T) {
	_, err := Load(writeConfig(t, "lighting:\n  brightness_threshold: 300\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "recognition:\n  confidence_threshold: 150\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, Name: "presence", User: "u", Password: "p"}
	require.Equal(t, "postgres://u:p@db:5433/presence?sslmode=disable", cfg.DSN())
}
