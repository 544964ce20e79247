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
	t.Setenv("JWT_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, uint(3), cfg.Compensation.MaxTries)
	assert.Equal(t, 200*time.Millisecond, cfg.Compensation.InitialInterval)
	assert.Equal(t, time.Minute, cfg.Recover.MinAge)
	assert.False(t, cfg.Cancel.Delete)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_KEY", "secret")
	t.Setenv("PORT", "9999")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_DSN", "/tmp/orders.db")
	t.Setenv("REMOTE_TIMEOUT", "750ms")
	t.Setenv("COMPENSATION_MAX_TRIES", "5")
	t.Setenv("CANCEL_DELETE", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/orders.db", cfg.Store.DSN)
	assert.Equal(t, 750*time.Millisecond, cfg.RemoteTimeout)
	assert.Equal(t, uint(5), cfg.Compensation.MaxTries)
	assert.True(t, cfg.Cancel.Delete)
	assert.Equal(t, "collector:4317", cfg.OTel.Endpoint)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jwt_key: from-file
wallet_url: http://wallet:8082
store:
  driver: pgx
  dsn: postgres://orders@db/orders
compensation:
  max_interval: 5s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTKey)
	assert.Equal(t, "http://wallet:8082", cfg.WalletURL)
	assert.Equal(t, "pgx", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Compensation.MaxInterval)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_KEY", "")
	t.Setenv("STORE_DRIVER", "mysql")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_key")
	assert.Contains(t, err.Error(), "mysql")
}

func TestLoadStub(t *testing.T) {
	t.Setenv("WALLET_PORT", "7001")
	t.Setenv("JWT_KEY", "k")

	cfg, err := LoadStub("WALLET", "wallet-service", "8082")
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Port)
	assert.Equal(t, "k", cfg.JWTKey)
	assert.Equal(t, "wallet-service", cfg.OTel.ServiceName)
}
