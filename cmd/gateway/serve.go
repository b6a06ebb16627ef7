package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/config"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/health"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/httpapi"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/tracing"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, root)
		},
	}
}

func serve(ctx context.Context, root *rootOptions) error {
	rt, err := connect(ctx, root, 0)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if err := config.WatchLogLevel(ctx, rt.cfg.Path, rt.level, logger); err != nil {
		logger.Warn("Log level reload disabled", zap.Error(err))
	}

	shutdownTracing, err := tracing.Initialize(ctx, rt.cfg.Observability.Tracing, logger)
	if err != nil {
		// tracing is optional; keep serving without it
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	var metricsServer *http.Server
	if m := rt.cfg.Observability.Metrics; m.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", m.Port),
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics server listening", zap.Int("port", m.Port))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	httpCfg := rt.cfg.HTTP
	mux := http.NewServeMux()
	httpapi.NewGatewayHandler(rt.gw, httpCfg.RequestTimeout, logger.Named("http")).RegisterRoutes(mux)

	probes := health.NewManager(logger.Named("health"))
	probes.Register(health.NewPingChecker("temporal", true, 5*time.Second, func(ctx context.Context) error {
		_, err := rt.temporal.CheckHealth(ctx, &client.CheckHealthRequest{})
		return err
	}))
	health.NewHTTPHandler(probes, logger).RegisterRoutes(mux)
	handler := httpapi.Instrument(logger, httpapi.RateLimit(httpCfg.RateLimitRPS, httpCfg.RateLimitBurst, mux))

	server := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// history long-polls hold the response open
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gateway starting",
			zap.String("addr", httpCfg.Addr),
			zap.Bool("write_api_permitted", rt.gw.WriteAPIPermitted()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Gateway shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway forced to shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Info("Gateway stopped")
	return nil
}
