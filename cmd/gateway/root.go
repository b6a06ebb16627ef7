package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/config"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/gateway"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/temporal"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "HTTP gateway over Temporal's WorkflowService",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file (defaults to $CONFIG_PATH)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

// runtime is the process-wide state shared by the commands.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	level    zap.AtomicLevel
	temporal client.Client
	gw       *gateway.Client
}

// connect loads configuration and opens the single engine connection.
// dialAttempts overrides the configured retry bound when positive.
func connect(ctx context.Context, opts *rootOptions, dialAttempts int) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger, level, err := cfg.NewLeveledLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	tc := cfg.Temporal
	tlsCfg, err := temporal.LoadTLS(tc.TLS.CAPath, tc.TLS.CertPath, tc.TLS.KeyPath, tc.TLS.ServerName)
	if err != nil {
		return nil, err
	}
	attempts := tc.DialAttempts
	if dialAttempts > 0 {
		attempts = dialAttempts
	}
	c, err := temporal.Dial(ctx, temporal.DialConfig{
		HostPort:         tc.Endpoint,
		Identity:         tc.Identity,
		MaxMessageLength: tc.MaxMessageLength,
		TLS:              tlsCfg,
		MaxAttempts:      attempts,
		Logger:           logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	gw := gateway.New(c.WorkflowService(), gateway.Config{
		WriteAPIPermitted: tc.PermitWriteAPI,
		Identity:          tc.Identity,
	}, logger.Named("gateway"))

	return &runtime{cfg: cfg, logger: logger, level: level, temporal: c, gw: gw}, nil
}

func (rt *runtime) Close() {
	rt.temporal.Close()
	_ = rt.logger.Sync()
}
