package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/tracing"
)

// DefaultMaxMessageLength is the largest engine response the gateway accepts.
const DefaultMaxMessageLength = 4 * 1024 * 1024

type TLSConfig struct {
	CAPath     string `mapstructure:"ca_path"`
	CertPath   string `mapstructure:"cert_path"`
	KeyPath    string `mapstructure:"key_path"`
	ServerName string `mapstructure:"server_name"`
}

type TemporalConfig struct {
	Endpoint         string    `mapstructure:"endpoint"`
	MaxMessageLength int       `mapstructure:"max_message_length"`
	PermitWriteAPI   bool      `mapstructure:"permit_write_api"`
	Identity         string    `mapstructure:"identity"`
	DialAttempts     int       `mapstructure:"dial_attempts"`
	TLS              TLSConfig `mapstructure:"tls"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// Config is the gateway process configuration. It is read once at startup;
// only the log level follows later edits of the file (see WatchLogLevel).
type Config struct {
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// Path is the file the config was read from, empty when none.
	Path string `mapstructure:"-"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"temporal.endpoint":                   "TEMPORAL_GRPC_ENDPOINT",
	"temporal.max_message_length":         "TEMPORAL_GRPC_MAX_MESSAGE_LENGTH",
	"temporal.permit_write_api":           "TEMPORAL_PERMIT_WRITE_API",
	"temporal.identity":                   "TEMPORAL_IDENTITY",
	"temporal.dial_attempts":              "TEMPORAL_DIAL_ATTEMPTS",
	"temporal.tls.ca_path":                "TEMPORAL_TLS_CA_PATH",
	"temporal.tls.cert_path":              "TEMPORAL_TLS_CERT_PATH",
	"temporal.tls.key_path":               "TEMPORAL_TLS_KEY_PATH",
	"temporal.tls.server_name":            "TEMPORAL_TLS_SERVER_NAME",
	"http.addr":                           "HTTP_ADDR",
	"http.rate_limit_rps":                 "RATE_LIMIT_RPS",
	"http.rate_limit_burst":               "RATE_LIMIT_BURST",
	"http.request_timeout":                "HTTP_REQUEST_TIMEOUT",
	"observability.logging.level":         "LOG_LEVEL",
	"observability.logging.format":        "LOG_FORMAT",
	"observability.metrics.enabled":       "METRICS_ENABLED",
	"observability.metrics.port":          "METRICS_PORT",
	"observability.tracing.enabled":       "TRACING_ENABLED",
	"observability.tracing.service_name":  "OTEL_SERVICE_NAME",
	"observability.tracing.otlp_endpoint": "OTLP_ENDPOINT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("temporal.endpoint", "127.0.0.1:7233")
	v.SetDefault("temporal.max_message_length", DefaultMaxMessageLength)
	v.SetDefault("temporal.permit_write_api", true)
	v.SetDefault("temporal.identity", "")
	v.SetDefault("temporal.dial_attempts", 0)
	v.SetDefault("temporal.tls.ca_path", "")
	v.SetDefault("temporal.tls.cert_path", "")
	v.SetDefault("temporal.tls.key_path", "")
	v.SetDefault("temporal.tls.server_name", "")
	v.SetDefault("http.addr", ":8088")
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 20)
	// must exceed the engine's long-poll timeout
	v.SetDefault("http.request_timeout", 90*time.Second)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 2112)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.service_name", "temporalgw")
	v.SetDefault("observability.tracing.otlp_endpoint", "localhost:4317")
}

// Load reads an optional YAML file at path, falling back to CONFIG_PATH, and
// applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Path = path
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Temporal.Endpoint) == "" {
		errs = append(errs, errors.New("temporal.endpoint is required"))
	}
	if c.Temporal.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("temporal.max_message_length must be positive, got %d", c.Temporal.MaxMessageLength))
	}
	if (c.Temporal.TLS.CertPath == "") != (c.Temporal.TLS.KeyPath == "") {
		errs = append(errs, errors.New("temporal.tls.cert_path and temporal.tls.key_path must be set together"))
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("http.rate_limit_burst must be positive when rate limiting is enabled"))
	}
	if _, err := zap.ParseAtomicLevel(c.Observability.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("observability.logging.level: %w", err))
	}
	switch c.Observability.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("observability.logging.format must be json or console, got %q", c.Observability.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the process logger from the logging section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	logger, _, err := c.NewLeveledLogger()
	return logger, err
}

// NewLeveledLogger is NewLogger that also returns the level handle, so the
// level can be changed while the process runs.
func (c *Config) NewLeveledLogger() (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(c.Observability.Logging.Level)
	if err != nil {
		return nil, level, err
	}
	zc := zap.NewProductionConfig()
	if c.Observability.Logging.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	logger, err := zc.Build()
	return logger, level, err
}
