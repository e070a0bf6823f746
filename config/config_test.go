package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Database.MaxAttempts)
	assert.Equal(t, 24, cfg.Game.BoardSize)
	assert.Equal(t, 15*time.Second, cfg.Game.HeartbeatInterval)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  http_address: ":7000"
database:
  driver: postgres
  postgres:
    host: db
    port: 5433
game:
  board_size: 30
  heartbeat_interval: 2s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("BOARDROOM_SERVER_RPC_ADDRESS", ":7001")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.HTTPAddress)
	assert.Equal(t, ":7001", cfg.Server.RPCAddress)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Postgres.Host)
	assert.Equal(t, 5433, cfg.Database.Postgres.Port)
	assert.Equal(t, 30, cfg.Game.BoardSize)
	assert.Equal(t, 2*time.Second, cfg.Game.HeartbeatInterval)
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database:\n  driver: redis\n"), 0o600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Driver: DriverMemory, MaxAttempts: 1},
		Game:     GameConfig{BoardSize: 0, HeartbeatInterval: time.Second},
	}
	assert.Error(t, cfg.Validate())

	cfg.Game.BoardSize = 24
	assert.NoError(t, cfg.Validate())
}
