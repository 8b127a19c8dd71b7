package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "fishbid.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 24, cfg.Auction.DefaultDurationHours)
	assert.Equal(t, 100, cfg.Auction.EventHistorySize)
	assert.Contains(t, cfg.Sync.PrimaryURL, "api.data.gov.in")
	assert.InDelta(t, 100.0, cfg.Sync.QuintalDivisor, 0.001)
	assert.InDelta(t, 5.0, cfg.Sync.RatePerSecond, 0.001)
	assert.Equal(t, "0 2 * * *", cfg.Sched.SyncSpec)
	assert.Equal(t, "0 * * * *", cfg.Sched.RefreshSpec)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Anthropic.Key)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/fishbid
server:
  port: 9090
sync:
  quintal_divisor: 50
redis:
  addr: localhost:6379
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/fishbid", cfg.Store.DatabaseURL)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 50.0, cfg.Sync.QuintalDivisor, 0.001)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply to unset keys.
	assert.Equal(t, 24, cfg.Auction.DefaultDurationHours)
}

func TestLoadFromEnvironment(t *testing.T) {
	chTempDir(t)
	t.Setenv("FISHBID_STORE_DRIVER", "memory")
	t.Setenv("FISHBID_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	require.Error(t, InitLogger(LogConfig{Level: "not-a-level", Format: "json"}))
}
