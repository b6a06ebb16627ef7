package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"go.temporal.io/api/serviceerror"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/execution"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/metrics"
)

// RestartReason is recorded on the run a restart terminates.
const RestartReason = "Workflow restart requested"

// RestartOptions identifies the execution to restart. FirstEvent is the run's
// WORKFLOW_EXECUTION_STARTED event; when nil it is read from history.
type RestartOptions struct {
	Namespace  string
	Execution  execution.Ref
	FirstEvent *historypb.HistoryEvent
}

// ExecutionConfig is everything a start request copies from the original run.
type ExecutionConfig struct {
	WorkflowType             *commonpb.WorkflowType
	TaskQueue                *taskqueuepb.TaskQueue
	Input                    *commonpb.Payloads
	WorkflowExecutionTimeout *durationpb.Duration
	WorkflowRunTimeout       *durationpb.Duration
	WorkflowTaskTimeout      *durationpb.Duration
	RetryPolicy              *commonpb.RetryPolicy
	CronSchedule             string
	Memo                     *commonpb.Memo
	SearchAttributes         *commonpb.SearchAttributes
	Header                   *commonpb.Header
	Identity                 string
}

// ConfigFromEvent extracts the start configuration. The returned messages are
// copies and share nothing with e.
func ConfigFromEvent(e *historypb.HistoryEvent) (*ExecutionConfig, error) {
	const op = "RestartWorkflow"
	if e.GetEventType() != enumspb.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED {
		return nil, apierr.Validation(op, "first event must be %s, got %s",
			enumspb.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED, e.GetEventType())
	}
	a := e.GetWorkflowExecutionStartedEventAttributes()
	if a == nil {
		return nil, apierr.Validation(op, "first event has no start attributes")
	}
	if a.GetWorkflowType().GetName() == "" || a.GetTaskQueue().GetName() == "" {
		return nil, apierr.Validation(op, "first event is missing workflow type or task queue")
	}
	return &ExecutionConfig{
		WorkflowType:             clone(a.GetWorkflowType()),
		TaskQueue:                clone(a.GetTaskQueue()),
		Input:                    clone(a.GetInput()),
		WorkflowExecutionTimeout: clone(a.GetWorkflowExecutionTimeout()),
		WorkflowRunTimeout:       clone(a.GetWorkflowRunTimeout()),
		WorkflowTaskTimeout:      clone(a.GetWorkflowTaskTimeout()),
		RetryPolicy:              clone(a.GetRetryPolicy()),
		CronSchedule:             a.GetCronSchedule(),
		Memo:                     clone(a.GetMemo()),
		SearchAttributes:         clone(a.GetSearchAttributes()),
		Header:                   clone(a.GetHeader()),
		Identity:                 a.GetIdentity(),
	}, nil
}

// StartRequest builds a start for workflowID carrying requestID and nothing
// else beyond the copied configuration.
func (ec *ExecutionConfig) StartRequest(namespace, workflowID, requestID string) *workflowservice.StartWorkflowExecutionRequest {
	return &workflowservice.StartWorkflowExecutionRequest{
		Namespace:                namespace,
		WorkflowId:               workflowID,
		WorkflowType:             ec.WorkflowType,
		TaskQueue:                ec.TaskQueue,
		Input:                    ec.Input,
		WorkflowExecutionTimeout: ec.WorkflowExecutionTimeout,
		WorkflowRunTimeout:       ec.WorkflowRunTimeout,
		WorkflowTaskTimeout:      ec.WorkflowTaskTimeout,
		Identity:                 ec.Identity,
		RequestId:                requestID,
		RetryPolicy:              ec.RetryPolicy,
		CronSchedule:             ec.CronSchedule,
		Memo:                     ec.Memo,
		SearchAttributes:         ec.SearchAttributes,
		Header:                   ec.Header,
	}
}

// RestartWorkflow terminates the current run and starts a new one from the
// original configuration. The two RPCs are independent: a concurrent start
// between them is not prevented, and a failed start leaves the old run
// terminated. A run that is already gone counts as terminated.
func (c *Client) RestartWorkflow(ctx context.Context, opts RestartOptions) (map[string]any, error) {
	const op = "RestartWorkflow"
	var out map[string]any
	err := c.observe(ctx, op, executionAttrs(opts.Namespace, opts.Execution), func(ctx context.Context) error {
		if err := c.checkWrite(op); err != nil {
			return err
		}
		ns, we, err := executionOf(op, opts.Namespace, opts.Execution)
		if err != nil {
			return err
		}

		first := opts.FirstEvent
		if first == nil {
			if first, err = c.firstEvent(ctx, ns, we); err != nil {
				return err
			}
		}
		ec, err := ConfigFromEvent(first)
		if err != nil {
			return err
		}

		_, err = c.svc.TerminateWorkflowExecution(ctx, &workflowservice.TerminateWorkflowExecutionRequest{
			Namespace:         ns,
			WorkflowExecution: we,
			Reason:            RestartReason,
			Identity:          c.cfg.Identity,
		})
		if err != nil {
			if !runAlreadyClosed(err) {
				return apierr.UpstreamMsg(op, "terminate", err)
			}
			metrics.RestartTerminationsTolerated.Inc()
			c.logger.Info("Restart found run already closed",
				zap.String("namespace", ns),
				zap.String("workflow_id", we.GetWorkflowId()),
				zap.Error(err),
			)
		}

		res, err := c.svc.StartWorkflowExecution(ctx, ec.StartRequest(ns, we.GetWorkflowId(), uuid.NewString()))
		if err != nil {
			c.logger.Error("Restart start failed after terminate",
				zap.String("namespace", ns),
				zap.String("workflow_id", we.GetWorkflowId()),
				zap.Error(err),
			)
			return apierr.UpstreamMsg(op, "start", err)
		}
		c.logger.Info("Workflow restarted",
			zap.String("namespace", ns),
			zap.String("workflow_id", we.GetWorkflowId()),
			zap.String("new_run_id", res.GetRunId()),
		)
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) firstEvent(ctx context.Context, ns string, we *commonpb.WorkflowExecution) (*historypb.HistoryEvent, error) {
	const op = "RestartWorkflow"
	res, err := c.svc.GetWorkflowExecutionHistory(ctx, &workflowservice.GetWorkflowExecutionHistoryRequest{
		Namespace:       ns,
		Execution:       we,
		MaximumPageSize: 1,
	})
	if err != nil {
		return nil, apierr.UpstreamMsg(op, "read first event", err)
	}
	events := res.GetHistory().GetEvents()
	if len(events) == 0 {
		return nil, apierr.Validation(op, "execution has no history")
	}
	return events[0], nil
}

// runAlreadyClosed reports whether a terminate failed only because the run is
// no longer running. A missing namespace also carries NotFound and is not
// tolerated.
func runAlreadyClosed(err error) bool {
	var nsNotFound *serviceerror.NamespaceNotFound
	if errors.As(err, &nsNotFound) {
		return false
	}
	return apierr.Code(err) == codes.NotFound
}

func clone[T proto.Message](m T) T {
	var zero T
	if !m.ProtoReflect().IsValid() {
		return zero
	}
	return proto.Clone(m).(T)
}
