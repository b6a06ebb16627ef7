package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	filterpb "go.temporal.io/api/filter/v1"
	"go.temporal.io/api/workflowservice/v1"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/execution"
)

// ListFilter narrows an open or closed listing. At most one of Execution,
// WorkflowType and (for closed listings) Status may be set.
type ListFilter struct {
	Namespace string
	// EarliestStart and LatestStart bound the start time; nil leaves that side open.
	EarliestStart *time.Time
	LatestStart   *time.Time
	Execution     *execution.Ref
	WorkflowType  string
	NextPageToken []byte
	PageSize      int32
}

// ClosedListFilter adds a close-status filter.
type ClosedListFilter struct {
	ListFilter
	Status string
}

// QueryListOptions drives the visibility-query listings.
type QueryListOptions struct {
	Namespace     string
	Query         string
	NextPageToken []byte
	PageSize      int32
}

type commonFilter struct {
	ns        string
	startTime *filterpb.StartTimeFilter
	execution *filterpb.WorkflowExecutionFilter
	wfType    *filterpb.WorkflowTypeFilter
}

func resolveListFilter(op string, f ListFilter, extra int) (*commonFilter, error) {
	ns, err := requireNamespace(op, f.Namespace)
	if err != nil {
		return nil, err
	}
	if f.PageSize < 0 {
		return nil, apierr.Validation(op, "pageSize must not be negative")
	}
	startTime, err := execution.StartTimeFilter(f.EarliestStart, f.LatestStart)
	if err != nil {
		return nil, err
	}
	out := &commonFilter{ns: ns, startTime: startTime}
	set := extra
	if f.Execution != nil {
		we, err := execution.Resolve(op, *f.Execution)
		if err != nil {
			return nil, err
		}
		out.execution = &filterpb.WorkflowExecutionFilter{WorkflowId: we.GetWorkflowId(), RunId: we.GetRunId()}
		set++
	}
	if strings.TrimSpace(f.WorkflowType) != "" {
		out.wfType = &filterpb.WorkflowTypeFilter{Name: f.WorkflowType}
		set++
	}
	if set > 1 {
		return nil, apierr.Validation(op, "only one of execution, workflowType or status filters may be set")
	}
	return out, nil
}

func (c *Client) OpenWorkflows(ctx context.Context, f ListFilter) (map[string]any, error) {
	const op = "OpenWorkflows"
	var out map[string]any
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		cf, err := resolveListFilter(op, f, 0)
		if err != nil {
			return err
		}
		req := &workflowservice.ListOpenWorkflowExecutionsRequest{
			Namespace:       cf.ns,
			MaximumPageSize: pageSize(f.PageSize, DefaultOpenPageSize),
			NextPageToken:   f.NextPageToken,
			StartTimeFilter: cf.startTime,
		}
		switch {
		case cf.execution != nil:
			req.Filters = &workflowservice.ListOpenWorkflowExecutionsRequest_ExecutionFilter{ExecutionFilter: cf.execution}
		case cf.wfType != nil:
			req.Filters = &workflowservice.ListOpenWorkflowExecutionsRequest_TypeFilter{TypeFilter: cf.wfType}
		}
		res, err := c.svc.ListOpenWorkflowExecutions(ctx, req)
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) ClosedWorkflows(ctx context.Context, f ClosedListFilter) (map[string]any, error) {
	const op = "ClosedWorkflows"
	var out map[string]any
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		var status enumspb.WorkflowExecutionStatus
		extra := 0
		if strings.TrimSpace(f.Status) != "" {
			var err error
			if status, err = ParseStatus(f.Status); err != nil {
				return apierr.Validation(op, "%v", err)
			}
			extra = 1
		}
		cf, err := resolveListFilter(op, f.ListFilter, extra)
		if err != nil {
			return err
		}
		req := &workflowservice.ListClosedWorkflowExecutionsRequest{
			Namespace:       cf.ns,
			MaximumPageSize: pageSize(f.PageSize, DefaultClosedPageSize),
			NextPageToken:   f.NextPageToken,
			StartTimeFilter: cf.startTime,
		}
		switch {
		case cf.execution != nil:
			req.Filters = &workflowservice.ListClosedWorkflowExecutionsRequest_ExecutionFilter{ExecutionFilter: cf.execution}
		case cf.wfType != nil:
			req.Filters = &workflowservice.ListClosedWorkflowExecutionsRequest_TypeFilter{TypeFilter: cf.wfType}
		case extra == 1:
			req.Filters = &workflowservice.ListClosedWorkflowExecutionsRequest_StatusFilter{
				StatusFilter: &filterpb.StatusFilter{Status: status},
			}
		}
		res, err := c.svc.ListClosedWorkflowExecutions(ctx, req)
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) ListWorkflows(ctx context.Context, opts QueryListOptions) (map[string]any, error) {
	const op = "ListWorkflows"
	var out map[string]any
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		ns, err := requireNamespace(op, opts.Namespace)
		if err != nil {
			return err
		}
		if opts.PageSize < 0 {
			return apierr.Validation(op, "pageSize must not be negative")
		}
		res, err := c.svc.ListWorkflowExecutions(ctx, &workflowservice.ListWorkflowExecutionsRequest{
			Namespace:     ns,
			PageSize:      pageSize(opts.PageSize, DefaultListPageSize),
			NextPageToken: opts.NextPageToken,
			Query:         opts.Query,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) ArchivedWorkflows(ctx context.Context, opts QueryListOptions) (map[string]any, error) {
	const op = "ArchivedWorkflows"
	var out map[string]any
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		ns, err := requireNamespace(op, opts.Namespace)
		if err != nil {
			return err
		}
		if opts.PageSize < 0 {
			return apierr.Validation(op, "pageSize must not be negative")
		}
		res, err := c.svc.ListArchivedWorkflowExecutions(ctx, &workflowservice.ListArchivedWorkflowExecutionsRequest{
			Namespace:     ns,
			PageSize:      pageSize(opts.PageSize, DefaultArchivedPageSize),
			NextPageToken: opts.NextPageToken,
			Query:         opts.Query,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

// ParseStatus accepts a close status by enum name, with or without the
// WORKFLOW_EXECUTION_STATUS_ prefix, in any case.
func ParseStatus(s string) (enumspb.WorkflowExecutionStatus, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(name, "WORKFLOW_EXECUTION_STATUS_") {
		name = "WORKFLOW_EXECUTION_STATUS_" + name
	}
	v, ok := enumspb.WorkflowExecutionStatus_value[name]
	status := enumspb.WorkflowExecutionStatus(v)
	if !ok || status == enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED || status == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING {
		return enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED, fmt.Errorf("unknown close status %q", s)
	}
	return status, nil
}

// executionOf resolves ref under op for the per-execution operations.
func executionOf(op, namespace string, ref execution.Ref) (string, *commonpb.WorkflowExecution, error) {
	ns, err := requireNamespace(op, namespace)
	if err != nil {
		return "", nil, err
	}
	we, err := execution.Resolve(op, ref)
	if err != nil {
		return "", nil, err
	}
	return ns, we, nil
}
