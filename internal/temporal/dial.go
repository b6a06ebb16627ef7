package temporal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/interceptors"
)

// DialConfig describes the single long-lived engine connection.
type DialConfig struct {
	HostPort string
	Identity string
	// MaxMessageLength caps the size of a received gRPC message, which bounds
	// the largest history page the gateway accepts.
	MaxMessageLength int
	TLS              *tls.Config
	// MaxAttempts bounds dial retries; zero retries until ctx is done.
	MaxAttempts int
	Logger      *zap.Logger
}

// DialOptions returns the gRPC options applied to the engine connection.
func DialOptions(maxMessageLength int) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(interceptors.RequestIDUnaryClientInterceptor()),
	}
	if maxMessageLength > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMessageLength)))
	}
	return opts
}

// Dial connects to the engine, retrying with a linear backoff capped at 15s.
// Callers reach the raw service through Client.WorkflowService().
func Dial(ctx context.Context, cfg DialConfig) (client.Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := client.Options{
		HostPort: cfg.HostPort,
		Identity: cfg.Identity,
		Logger:   NewZapAdapter(logger),
		ConnectionOptions: client.ConnectionOptions{
			TLS:         cfg.TLS,
			DialOptions: DialOptions(cfg.MaxMessageLength),
		},
	}

	for attempt := 1; ; attempt++ {
		c, err := client.DialContext(ctx, opts)
		if err == nil {
			logger.Info("Connected to Temporal", zap.String("host", cfg.HostPort), zap.Int("attempt", attempt))
			return c, nil
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return nil, fmt.Errorf("dial temporal %s after %d attempts: %w", cfg.HostPort, attempt, err)
		}
		delay := time.Duration(attempt) * time.Second
		if delay > 15*time.Second {
			delay = 15 * time.Second
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt),
			zap.String("host", cfg.HostPort),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, ctx.Err())
		case <-time.After(delay):
		}
	}
}

// LoadTLS builds a client TLS config from PEM files. With no paths set it
// returns nil and the connection stays plaintext.
func LoadTLS(caPath, certPath, keyPath, serverName string) (*tls.Config, error) {
	if caPath == "" && certPath == "" && keyPath == "" && serverName == "" {
		return nil, nil
	}
	cfg := &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read CA %s: %w", caPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caPath)
		}
		cfg.RootCAs = pool
	}
	if certPath != "" || keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
