package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Server.Port, cfg.Server.Port)
	assert.Equal(t, def.MySQL.DSN, cfg.MySQL.DSN)
	assert.Equal(t, def.Order.MaxAttempts, cfg.Order.MaxAttempts)
	assert.Equal(t, def.Order.RequestTimeout, cfg.Order.RequestTimeout)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  port: 9090\norder:\n  max_attempts: 5\n  request_timeout: 2s\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("BOOKSTORE_JWT_SECRET", "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Order.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Order.RequestTimeout)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	// 未覆盖的字段保持默认
	assert.Equal(t, 8081, cfg.AdminServer.Port)
}

func TestLoadClampsAttempts(t *testing.T) {
	t.Setenv("BOOKSTORE_ORDER_MAX_ATTEMPTS", "0")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Order.MaxAttempts)
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:80", ServerConfig{Port: 80}.Addr())
	assert.Equal(t, "127.0.0.1:8080", ServerConfig{Host: "127.0.0.1", Port: 8080}.Addr())
}
