package gateway

import (
	"context"
	"strings"

	enumspb "go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	"go.temporal.io/api/workflowservice/v1"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
)

// ListNamespacesOptions pages through registered namespaces.
type ListNamespacesOptions struct {
	PageSize      int32
	NextPageToken []byte
}

// DescribeTaskQueueOptions selects a task queue and the pollers to report.
type DescribeTaskQueueOptions struct {
	Namespace string
	TaskQueue string
	// Type is "workflow" (default) or "activity".
	Type string
}

func (c *Client) DescribeNamespace(ctx context.Context, namespace string) (map[string]any, error) {
	const op = "DescribeNamespace"
	var out map[string]any
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		ns, err := requireNamespace(op, namespace)
		if err != nil {
			return err
		}
		res, err := c.svc.DescribeNamespace(ctx, &workflowservice.DescribeNamespaceRequest{Namespace: ns})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) ListNamespaces(ctx context.Context, opts ListNamespacesOptions) (map[string]any, error) {
	const op = "ListNamespaces"
	var out map[string]any
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		if opts.PageSize < 0 {
			return apierr.Validation(op, "pageSize must not be negative")
		}
		res, err := c.svc.ListNamespaces(ctx, &workflowservice.ListNamespacesRequest{
			PageSize:      opts.PageSize,
			NextPageToken: opts.NextPageToken,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

func (c *Client) DescribeTaskQueue(ctx context.Context, opts DescribeTaskQueueOptions) (map[string]any, error) {
	const op = "DescribeTaskQueue"
	var out map[string]any
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		ns, err := requireNamespace(op, opts.Namespace)
		if err != nil {
			return err
		}
		name := opts.TaskQueue
		if strings.TrimSpace(name) == "" {
			return apierr.Validation(op, "taskQueue is required")
		}
		tqType, err := parseTaskQueueType(op, opts.Type)
		if err != nil {
			return err
		}
		res, err := c.svc.DescribeTaskQueue(ctx, &workflowservice.DescribeTaskQueueRequest{
			Namespace:     ns,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: name, Kind: enumspb.TASK_QUEUE_KIND_NORMAL},
			TaskQueueType: tqType,
		})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = ui(res)
		return nil
	})
	return out, err
}

// GetVersionInfo reports the engine's server version and any upgrade notices.
func (c *Client) GetVersionInfo(ctx context.Context) (map[string]any, error) {
	const op = "GetVersionInfo"
	out := map[string]any{}
	err := c.observe(ctx, op, nil, func(ctx context.Context) error {
		res, err := c.svc.GetClusterInfo(ctx, &workflowservice.GetClusterInfoRequest{})
		if err != nil {
			return apierr.Upstream(op, err)
		}
		if v := res.GetVersionInfo(); v != nil {
			out = ui(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseTaskQueueType(op, s string) (enumspb.TaskQueueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "workflow", "task_queue_type_workflow":
		return enumspb.TASK_QUEUE_TYPE_WORKFLOW, nil
	case "activity", "task_queue_type_activity":
		return enumspb.TASK_QUEUE_TYPE_ACTIVITY, nil
	default:
		return enumspb.TASK_QUEUE_TYPE_UNSPECIFIED, apierr.Validation(op, "unknown task queue type %q", s)
	}
}
