package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("DATABASE_PATH", "/tmp/bsma-test.db")
	t.Setenv("ALLOCATION_MAX_ATTEMPTS", "9")
	t.Setenv("ALLOCATION_LOCK_TIMEOUT", "750ms")
	t.Setenv("REDIS_ADDR", " localhost:6379 ")
	t.Setenv("MIGRATE_ON_START", "off")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 9, cfg.Allocation.MaxAttempts)
	assert.Equal(t, 750*time.Millisecond, cfg.Allocation.LockTimeout)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.MigrateOnStart)

	dbCfg := cfg.Database()
	assert.Equal(t, "sqlite", dbCfg.Type)
	assert.Equal(t, "/tmp/bsma-test.db", dbCfg.Path)
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("ALLOCATION_MAX_ATTEMPTS", "many")
	cfg := Load()
	assert.Equal(t, 5, cfg.Allocation.MaxAttempts)
}

func writeActivationFile(t *testing.T, body string) *viper.Viper {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activation.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	v := viper.New()
	v.SetConfigFile(path)
	return v
}

func TestActivationConfigFromFile(t *testing.T) {
	v := writeActivationFile(t, `
activation:
  enabled: true
  url: https://registry.example.com/getDeviceActivationStatus/1.0/
  username: warehouse
  password: secret
  apiKey: k-123
  productIds: [1, 7]
  interval: 30m
  requestDelay: 250ms
  batchSize: 20
`)

	holder, err := newActivationConfigHolder(v, false)
	require.NoError(t, err)

	cfg := holder.Get()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "https://registry.example.com/getDeviceActivationStatus/1.0", cfg.URL)
	assert.Equal(t, []int64{1, 7}, cfg.ProductIDs)
	assert.Equal(t, 30*time.Minute, cfg.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, "k-123", cfg.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestActivationConfigEnvOverridesSecret(t *testing.T) {
	t.Setenv("BSMA_ACTIVATION_PASSWORD", "from-env")
	v := writeActivationFile(t, `
activation:
  enabled: true
  url: https://registry.example.com/status
  password: from-file
  productIds: [1]
`)

	holder, err := newActivationConfigHolder(v, false)
	require.NoError(t, err)
	assert.Equal(t, "from-env", holder.Get().Password)
}

func TestActivationConfigRejectsEnabledWithoutURL(t *testing.T) {
	v := writeActivationFile(t, `
activation:
  enabled: true
  productIds: [1]
`)

	_, err := newActivationConfigHolder(v, false)
	assert.Error(t, err)
}

func TestActivationConfigDisabledByDefault(t *testing.T) {
	v := writeActivationFile(t, "activation: {}\n")

	holder, err := newActivationConfigHolder(v, false)
	require.NoError(t, err)
	cfg := holder.Get()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.Equal(t, time.Second, cfg.RequestDelay)
}
