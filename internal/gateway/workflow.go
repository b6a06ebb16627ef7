package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	enumspb "go.temporal.io/api/enums/v1"
	querypb "go.temporal.io/api/query/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/execution"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/payload"
)

// QueryOptions names a query handler and its optional argument.
type QueryOptions struct {
	Namespace string
	Execution execution.Ref
	QueryType string
	// Args is JSON-encoded as a single payload when non-nil.
	Args any
}

// SignalOptions delivers Payload to SignalName as a single json/plain payload.
type SignalOptions struct {
	Namespace  string
	Execution  execution.Ref
	SignalName string
	Payload    any
}

// TerminateOptions forcibly ends a run.
type TerminateOptions struct {
	Namespace string
	Execution execution.Ref
	Reason    string
}

// ResetOptions rewinds a run to a completed workflow task.
type ResetOptions struct {
	Namespace string
	Execution execution.Ref
	// EventID is the WORKFLOW_TASK_COMPLETED event to reset to.
	EventID int64
	Reason  string
	// ReapplySignals replays signals received after EventID onto the new run.
	ReapplySignals bool
}

func executionAttrs(ns string, ref execution.Ref) []attribute.KeyValue {
	return []attribute.KeyValue{nsAttr(ns), workflowAttr(ref.WorkflowID)}
}

func (c *Client) DescribeWorkflow(ctx context.Context, namespace string, ref execution.Ref) (map[string]any, error) {
	const op = "DescribeWorkflow"
	var out map[string]any
	err := c.observe(ctx, op, executionAttrs(namespace, ref), func(ctx context.Context) error {
		ns, we, err := executionOf(op, namespace, ref)
		if err != nil {
			return err
		}
		res, err := c.svc.DescribeWorkflowExecution(ctx, &workflowservice.DescribeWorkflowExecutionRequest{
			Namespace: ns,
			Execution: we,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

// QueryWorkflow runs a query handler synchronously. A query the engine rejects
// because of the run's status fails as an upstream FailedPrecondition.
func (c *Client) QueryWorkflow(ctx context.Context, opts QueryOptions) (map[string]any, error) {
	const op = "QueryWorkflow"
	var out map[string]any
	err := c.observe(ctx, op, executionAttrs(opts.Namespace, opts.Execution), func(ctx context.Context) error {
		ns, we, err := executionOf(op, opts.Namespace, opts.Execution)
		if err != nil {
			return err
		}
		queryType := opts.QueryType
		if strings.TrimSpace(queryType) == "" {
			return apierr.Validation(op, "queryType is required")
		}
		query := &querypb.WorkflowQuery{QueryType: queryType}
		if opts.Args != nil {
			if query.QueryArgs, err = payload.EncodeJSONPayloads(opts.Args); err != nil {
				return apierr.Validation(op, "encode query args: %v", err)
			}
		}
		res, err := c.svc.QueryWorkflow(ctx, &workflowservice.QueryWorkflowRequest{
			Namespace: ns,
			Execution: we,
			Query:     query,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		if rejected := res.GetQueryRejected(); rejected != nil {
			return apierr.Upstream(op, status.Errorf(codes.FailedPrecondition,
				"query rejected, workflow status %s", rejected.GetStatus()))
		}
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) SignalWorkflow(ctx context.Context, opts SignalOptions) (map[string]any, error) {
	const op = "SignalWorkflow"
	var out map[string]any
	err := c.observe(ctx, op, executionAttrs(opts.Namespace, opts.Execution), func(ctx context.Context) error {
		ns, we, err := executionOf(op, opts.Namespace, opts.Execution)
		if err != nil {
			return err
		}
		name := opts.SignalName
		if strings.TrimSpace(name) == "" {
			return apierr.Validation(op, "signalName is required")
		}
		input, err := payload.EncodeJSONPayloads(opts.Payload)
		if err != nil {
			return apierr.Validation(op, "encode signal payload: %v", err)
		}
		res, err := c.svc.SignalWorkflowExecution(ctx, &workflowservice.SignalWorkflowExecutionRequest{
			Namespace:         ns,
			WorkflowExecution: we,
			SignalName:        name,
			Input:             input,
			Identity:          c.cfg.Identity,
			RequestId:         uuid.NewString(),
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) TerminateWorkflow(ctx context.Context, opts TerminateOptions) (map[string]any, error) {
	const op = "TerminateWorkflow"
	var out map[string]any
	err := c.observe(ctx, op, executionAttrs(opts.Namespace, opts.Execution), func(ctx context.Context) error {
		if err := c.checkWrite(op); err != nil {
			return err
		}
		ns, we, err := executionOf(op, opts.Namespace, opts.Execution)
		if err != nil {
			return err
		}
		res, err := c.svc.TerminateWorkflowExecution(ctx, &workflowservice.TerminateWorkflowExecutionRequest{
			Namespace:         ns,
			WorkflowExecution: we,
			Reason:            opts.Reason,
			Identity:          c.cfg.Identity,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		c.logger.Info("Workflow terminated",
			zap.String("namespace", ns),
			zap.String("workflow_id", we.GetWorkflowId()),
			zap.String("run_id", we.GetRunId()),
		)
		out = ui(res)
		return nil
	})
	return out, err
}

// ResetWorkflow always sends a fresh request id, so a retried call resets again.
func (c *Client) ResetWorkflow(ctx context.Context, opts ResetOptions) (map[string]any, error) {
	const op = "ResetWorkflow"
	var out map[string]any
	err := c.observe(ctx, op, executionAttrs(opts.Namespace, opts.Execution), func(ctx context.Context) error {
		ns, we, err := executionOf(op, opts.Namespace, opts.Execution)
		if err != nil {
			return err
		}
		if opts.EventID <= 0 {
			return apierr.Validation(op, "eventId must be positive")
		}
		reapply := enumspb.RESET_REAPPLY_TYPE_NONE
		if opts.ReapplySignals {
			reapply = enumspb.RESET_REAPPLY_TYPE_SIGNAL
		}
		res, err := c.svc.ResetWorkflowExecution(ctx, &workflowservice.ResetWorkflowExecutionRequest{
			Namespace:                 ns,
			WorkflowExecution:         we,
			Reason:                    opts.Reason,
			WorkflowTaskFinishEventId: opts.EventID,
			RequestId:                 uuid.NewString(),
			ResetReapplyType:          reapply,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		c.logger.Info("Workflow reset",
			zap.String("namespace", ns),
			zap.String("workflow_id", we.GetWorkflowId()),
			zap.String("new_run_id", res.GetRunId()),
		)
		out = ui(res)
		return nil
	})
	return out, err
}
