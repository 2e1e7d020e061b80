package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDecode_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "deny", cfg.Engine.EmptyMandates)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.AuditFlushInterval)
	assert.Equal(t, []string{"purchase.write"}, cfg.Auth.RequiredScopes)
	assert.True(t, cfg.Agent.LocalValidation)
	assert.Equal(t, 2*time.Minute, cfg.Agent.ApprovalTimeout)
}

func TestDecode_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte("PEM"), 0o600))

	yaml := []byte(`
server:
  host: 127.0.0.1
  port: 9000
engine:
  empty_mandates: allow
  cb_timeout: 1m
auth:
  public_key_path: ` + keyPath + `
  required_scopes: [purchase.write, purchase.admin]
agent:
  gateway_grpc: localhost:50052
`)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, yaml, 0o600))

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(cfgPath)
	require.NoError(t, v.ReadInConfig())

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "allow", cfg.Engine.EmptyMandates)
	assert.Equal(t, time.Minute, cfg.Engine.CBTimeout)
	assert.Equal(t, 3, int(cfg.Engine.CBMaxRequests))
	assert.Equal(t, []string{"purchase.write", "purchase.admin"}, cfg.Auth.RequiredScopes)
	assert.Equal(t, []byte("PEM"), cfg.Auth.PublicKey)
	assert.Equal(t, "localhost:50052", cfg.Agent.GatewayGRPC)
}

func TestLoadKeyResource_EnvWins(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte("from-file"), 0o600))

	t.Setenv("TEST_KEY_DATA", "from-env")
	assert.Equal(t, []byte("from-env"), loadKeyResource(keyPath, "TEST_KEY_DATA"))
	assert.Equal(t, []byte("from-file"), loadKeyResource(keyPath, "TEST_KEY_MISSING"))
	assert.Nil(t, loadKeyResource(filepath.Join(dir, "nope.pem"), "TEST_KEY_MISSING"))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(LoggerConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}
