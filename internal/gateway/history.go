package gateway

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	historypb "go.temporal.io/api/history/v1"
	"go.temporal.io/api/workflowservice/v1"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/execution"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/history"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/payload"
)

// HistoryOptions selects one page of an execution's history.
type HistoryOptions struct {
	Namespace     string
	Execution     execution.Ref
	NextPageToken []byte
	// WaitForNewEvent long-polls until an event newer than the token exists or
	// the engine's poll timeout elapses. Cancelling ctx ends the wait.
	WaitForNewEvent bool
	// RawPayloads keeps payloads as metadata and base64 data.
	RawPayloads bool
	PageSize    int32
}

// FullHistory is an execution's complete history, correlated in one pass.
type FullHistory struct {
	History  *history.Timeline `json:"history"`
	Events   int               `json:"eventCount"`
	Pages    int               `json:"pageCount"`
	Archived bool              `json:"archived,omitempty"`
}

func (c *Client) historyRequest(op string, opts HistoryOptions) (*workflowservice.GetWorkflowExecutionHistoryRequest, error) {
	ns, we, err := executionOf(op, opts.Namespace, opts.Execution)
	if err != nil {
		return nil, err
	}
	if opts.PageSize < 0 {
		return nil, apierr.Validation(op, "pageSize must not be negative")
	}
	return &workflowservice.GetWorkflowExecutionHistoryRequest{
		Namespace:       ns,
		Execution:       we,
		MaximumPageSize: pageSize(opts.PageSize, DefaultHistoryPageSize),
		NextPageToken:   opts.NextPageToken,
		WaitNewEvent:    opts.WaitForNewEvent,
	}, nil
}

// GetHistory fetches one page. A page requested without a token is replaced
// by its reconstructed timeline under "history"; continuation pages keep the
// flat event list, since their counterparts live on earlier pages.
func (c *Client) GetHistory(ctx context.Context, opts HistoryOptions) (map[string]any, error) {
	const op = "GetHistory"
	var out map[string]any
	err := c.observe(ctx, op, []attribute.KeyValue{nsAttr(opts.Namespace), workflowAttr(opts.Execution.WorkflowID)}, func(ctx context.Context) error {
		req, err := c.historyRequest(op, opts)
		if err != nil {
			return err
		}
		res, err := c.svc.GetWorkflowExecutionHistory(ctx, req)
		if err != nil {
			return apierr.Upstream(op, err)
		}
		popts := payload.Options{Mode: payload.ModeUI, RawPayloads: opts.RawPayloads}
		out = payload.Transform(res, popts)
		if events := res.GetHistory().GetEvents(); len(events) > 0 && len(opts.NextPageToken) == 0 {
			out["history"] = c.reconstruct(popts, events)
		}
		return nil
	})
	return out, err
}

// GetFullHistory follows page tokens until the engine reports the end, then
// reconstructs the accumulated events in server order.
func (c *Client) GetFullHistory(ctx context.Context, opts HistoryOptions) (*FullHistory, error) {
	const op = "GetFullHistory"
	var out *FullHistory
	err := c.observe(ctx, op, []attribute.KeyValue{nsAttr(opts.Namespace), workflowAttr(opts.Execution.WorkflowID)}, func(ctx context.Context) error {
		opts.WaitForNewEvent = false
		req, err := c.historyRequest(op, opts)
		if err != nil {
			return err
		}
		var events []*historypb.HistoryEvent
		full := &FullHistory{}
		for {
			// the caller went away or timed out; that is not an engine failure
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			res, err := c.svc.GetWorkflowExecutionHistory(ctx, req)
			if err != nil {
				return apierr.Upstream(op, err)
			}
			full.Pages++
			full.Archived = res.GetArchived()
			events = append(events, res.GetHistory().GetEvents()...)
			if len(events) > c.cfg.MaxHistoryEvents {
				return apierr.Validation(op, "history exceeds %d events, page through it with nextPageToken instead", c.cfg.MaxHistoryEvents)
			}
			if len(res.GetNextPageToken()) == 0 {
				break
			}
			req.NextPageToken = res.GetNextPageToken()
		}
		full.Events = len(events)
		full.History = c.reconstruct(payload.Options{Mode: payload.ModeUI, RawPayloads: opts.RawPayloads}, events)
		out = full
		return nil
	})
	return out, err
}

// ExportHistory fetches one page in cli mode and returns the token for the
// next page, empty once the history is exhausted.
func (c *Client) ExportHistory(ctx context.Context, opts HistoryOptions) (map[string]any, []byte, error) {
	const op = "ExportHistory"
	var (
		out  map[string]any
		next []byte
	)
	err := c.observe(ctx, op, []attribute.KeyValue{nsAttr(opts.Namespace), workflowAttr(opts.Execution.WorkflowID)}, func(ctx context.Context) error {
		opts.WaitForNewEvent = false
		req, err := c.historyRequest(op, opts)
		if err != nil {
			return err
		}
		res, err := c.svc.GetWorkflowExecutionHistory(ctx, req)
		if err != nil {
			return apierr.Upstream(op, err)
		}
		out = payload.Transform(res, payload.Options{Mode: payload.ModeCLI})
		next = res.GetNextPageToken()
		return nil
	})
	return out, next, err
}
