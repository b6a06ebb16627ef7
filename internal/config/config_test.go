package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7233", cfg.Temporal.Endpoint)
	assert.Equal(t, DefaultMaxMessageLength, cfg.Temporal.MaxMessageLength)
	assert.True(t, cfg.Temporal.PermitWriteAPI)
	assert.Equal(t, ":8088", cfg.HTTP.Addr)
	assert.Equal(t, 90*time.Second, cfg.HTTP.RequestTimeout)
	assert.Zero(t, cfg.HTTP.RateLimitRPS)
	assert.Equal(t, 2112, cfg.Observability.Metrics.Port)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.False(t, cfg.Observability.Tracing.Enabled)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TEMPORAL_GRPC_ENDPOINT", "temporal:7233")
	t.Setenv("TEMPORAL_GRPC_MAX_MESSAGE_LENGTH", "1048576")
	t.Setenv("TEMPORAL_PERMIT_WRITE_API", "false")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("HTTP_REQUEST_TIMEOUT", "15s")
	t.Setenv("METRICS_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "temporal:7233", cfg.Temporal.Endpoint)
	assert.Equal(t, 1048576, cfg.Temporal.MaxMessageLength)
	assert.False(t, cfg.Temporal.PermitWriteAPI)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimitRPS)
	assert.Equal(t, 15*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 9090, cfg.Observability.Metrics.Port)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
temporal:
  endpoint: file-host:7233
  permit_write_api: false
  identity: ops-gateway
http:
  addr: ":9000"
observability:
  logging:
    format: console
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file-host:7233", cfg.Temporal.Endpoint)
	assert.False(t, cfg.Temporal.PermitWriteAPI)
	assert.Equal(t, "ops-gateway", cfg.Temporal.Identity)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, "console", cfg.Observability.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	base, err := Load("")
	require.NoError(t, err)

	for name, mutate := range map[string]func(c *Config){
		"empty endpoint":     func(c *Config) { c.Temporal.Endpoint = " " },
		"zero message size":  func(c *Config) { c.Temporal.MaxMessageLength = 0 },
		"half key pair":      func(c *Config) { c.Temporal.TLS.CertPath = "/tls/client.pem" },
		"rate without burst": func(c *Config) { c.HTTP.RateLimitRPS = 5; c.HTTP.RateLimitBurst = 0 },
		"bad level":          func(c *Config) { c.Observability.Logging.Level = "loud" },
		"bad format":         func(c *Config) { c.Observability.Logging.Format = "xml" },
	} {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(1))
}
