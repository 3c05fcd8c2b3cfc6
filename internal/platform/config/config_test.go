package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  mode: debug
  shutdown_timeout: 3s
database:
  dsn: host=db user=agri dbname=agri
  max_idle_conns: 2
  max_open_conns: 4
  auto_migrate: true
interest:
  default_rate: "7.25"
  timezone: UTC
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "host=db user=agri dbname=agri", cfg.Database.DSN)
	assert.Equal(t, 2, cfg.Database.MaxIdleConns)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.True(t, cfg.Interest.DefaultRate.Equal(decimal.RequireFromString("7.25")))
	assert.Equal(t, time.UTC, cfg.Interest.Location)
}

func TestLoad_EnvOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: from-file\n")
	t.Setenv("AGRI_DATABASE_DSN", "from-env")
	t.Setenv("AGRI_SERVER_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.DSN)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Interest.DefaultRate.Equal(decimal.RequireFromString("6.5")))
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Interest.Location.String())
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("AGRI_DATABASE_DSN", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.DSN)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no dsn", "server:\n  port: \"80\"\n"},
		{"bad rate", "database:\n  dsn: x\ninterest:\n  default_rate: abc\n"},
		{"zero rate", "database:\n  dsn: x\ninterest:\n  default_rate: \"0\"\n"},
		{"bad timezone", "database:\n  dsn: x\ninterest:\n  timezone: Mars/Olympus\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
