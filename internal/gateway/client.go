// Package gateway exposes Temporal's WorkflowService as typed operations with
// validated inputs, payload transformation and a write gate on destructive calls.
package gateway

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	historypb "go.temporal.io/api/history/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/history"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/payload"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/tracing"
)

const defaultIdentity = "temporalgw"

// Page size defaults applied when a caller leaves the size unset.
const (
	DefaultOpenPageSize     int32 = 10
	DefaultClosedPageSize   int32 = 10
	DefaultListPageSize     int32 = 20
	DefaultArchivedPageSize int32 = 100
	DefaultHistoryPageSize  int32 = 100
)

// DefaultMaxHistoryEvents bounds what GetFullHistory accumulates in memory.
const DefaultMaxHistoryEvents = 100_000

// Config is fixed for the lifetime of a Client.
type Config struct {
	// WriteAPIPermitted opens the gate on TerminateWorkflow and RestartWorkflow.
	WriteAPIPermitted bool
	// Identity is stamped on signal, terminate and reset requests.
	Identity string
	// MaxHistoryEvents caps GetFullHistory; zero means DefaultMaxHistoryEvents.
	MaxHistoryEvents int
}

// Client is a stateless view over the engine connection. It is safe for
// concurrent use.
type Client struct {
	svc    workflowservice.WorkflowServiceClient
	cfg    Config
	logger *zap.Logger
}

// New binds the gateway to svc. The connection is owned by the caller.
func New(svc workflowservice.WorkflowServiceClient, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Identity == "" {
		cfg.Identity = defaultIdentity
	}
	if cfg.MaxHistoryEvents <= 0 {
		cfg.MaxHistoryEvents = DefaultMaxHistoryEvents
	}
	return &Client{svc: svc, cfg: cfg, logger: logger}
}

// WriteAPIPermitted reports whether destructive operations are enabled.
func (c *Client) WriteAPIPermitted() bool { return c.cfg.WriteAPIPermitted }

// observe runs fn inside a span and records the outcome.
func (c *Client) observe(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "gateway."+op, attrs...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = apierr.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		c.logger.Debug("Gateway operation failed",
			zap.String("operation", op),
			zap.String("kind", outcome),
			zap.Error(err),
		)
	}
	metrics.RequestsTotal.WithLabelValues(op, outcome).Inc()
	return err
}

func (c *Client) checkWrite(op string) error {
	if !c.cfg.WriteAPIPermitted {
		return apierr.PermissionDenied(op, "write API is disabled")
	}
	return nil
}

func requireNamespace(op, namespace string) (string, error) {
	if strings.TrimSpace(namespace) == "" {
		return "", apierr.Validation(op, "namespace is required")
	}
	return namespace, nil
}

func pageSize(requested, fallback int32) int32 {
	if requested <= 0 {
		return fallback
	}
	return requested
}

func ui(msg proto.Message) map[string]any {
	return payload.Transform(msg, payload.Options{Mode: payload.ModeUI})
}

// reconstruct builds a timeline and records its size and anomalies.
func (c *Client) reconstruct(opts payload.Options, events []*historypb.HistoryEvent) *history.Timeline {
	tl := history.New(opts, c.logger).Build(events)
	metrics.HistoryEventsProcessed.Add(float64(len(events)))
	if n := len(tl.Anomalies); n > 0 {
		metrics.HistoryAnomalies.Add(float64(n))
	}
	return tl
}

func nsAttr(ns string) attribute.KeyValue { return attribute.String("temporal.namespace", ns) }

func workflowAttr(id string) attribute.KeyValue { return attribute.String("temporal.workflow_id", id) }
