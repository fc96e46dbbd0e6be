package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, uint(3), cfg.Bidding.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Bidding.RetryDelay)
	assert.Equal(t, int32(2), cfg.Bidding.Precision)
	assert.Equal(t, "@every 30s", cfg.Sweep.Schedule)
	assert.Equal(t, 30*time.Second, cfg.Leader.TTL)
	assert.Equal(t, AuthModeHeader, cfg.Auth.Mode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("BIDDING_MAX_ATTEMPTS", "7")
	t.Setenv("BIDDING_RETRY_DELAY", "25ms")
	t.Setenv("SWEEP_SCHEDULE", "@every 1s")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, uint(7), cfg.Bidding.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.Bidding.RetryDelay)
	assert.Equal(t, "@every 1s", cfg.Sweep.Schedule)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: mysql
mysql:
  dsn: "u:p@tcp(db:3306)/auctions?parseTime=true"
  migrate: false
bidding:
  precision: 0
instance:
  id: node-7
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Storage.Driver)
	assert.Equal(t, "u:p@tcp(db:3306)/auctions?parseTime=true", cfg.MySQL.DSN)
	assert.False(t, cfg.MySQL.Migrate)
	assert.Equal(t, int32(0), cfg.Bidding.Precision)
	assert.Equal(t, "node-7", cfg.Instance.ID)
	assert.Equal(t, 25, cfg.MySQL.MaxOpenConns)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage: StorageConfig{Driver: DriverMemory},
			Auth:    AuthConfig{Mode: AuthModeHeader},
			Bidding: BiddingConfig{MaxAttempts: 1, Precision: 2},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "etcd" }},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "oauth" }},
		{"jwt without secret", func(c *Config) { c.Auth.Mode = AuthModeJWT }},
		{"zero attempts", func(c *Config) { c.Bidding.MaxAttempts = 0 }},
		{"negative precision", func(c *Config) { c.Bidding.Precision = -1 }},
		{"precision beyond mysql scale", func(c *Config) {
			c.Storage.Driver = DriverMySQL
			c.Bidding.Precision = MySQLMaxPrecision + 1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidate_PrecisionPerDriver(t *testing.T) {
	c := &Config{
		Storage: StorageConfig{Driver: DriverMySQL},
		Auth:    AuthConfig{Mode: AuthModeHeader},
		Bidding: BiddingConfig{MaxAttempts: 1, Precision: MySQLMaxPrecision},
	}
	require.NoError(t, c.Validate())

	c.Storage.Driver = DriverRedis
	c.Bidding.Precision = 8
	assert.NoError(t, c.Validate())
}
