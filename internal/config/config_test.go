package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDotEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadServerConfigDefaults(t *testing.T) {
	noDotEnv(t)
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "x-auth-token", cfg.AuthHeader)
	assert.Equal(t, 5*time.Second, cfg.StoreConnectTimeout)
	assert.Equal(t, "ambulance-locations", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.RunMigrations)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	noDotEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")
	t.Setenv("DISPATCH_TOP_N", "3")
	t.Setenv("MIGRATE", "TRUE")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3, cfg.DispatchTopN)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestHTTPAddrWinsOverPort(t *testing.T) {
	noDotEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
}

func TestLoadServerConfigCollectsAllErrors(t *testing.T) {
	noDotEnv(t)
	t.Setenv("HTTP_WRITE_TIMEOUT", "soon")
	t.Setenv("DISPATCH_TOP_N", "0")
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := LoadServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_WRITE_TIMEOUT")
	assert.Contains(t, err.Error(), "DISPATCH_TOP_N")
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nREDIS_GEO_KEY=file_geo\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("REDIS_GEO_KEY", "env_geo")
	// registers cleanup so the value loaded from the file does not leak
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "env_geo", cfg.RedisGeoKey)
}

func TestLoadConsumerConfig(t *testing.T) {
	noDotEnv(t)
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("REDIS_RETRY_DELAY", "50ms")
	cfg, err := LoadConsumerConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, "hospital-availability-consumer", cfg.KafkaGroup)

	t.Setenv("REDIS_RETRY_ATTEMPTS", "0")
	_, err = LoadConsumerConfig()
	assert.Error(t, err)
}
