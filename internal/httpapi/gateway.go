package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	historypb "go.temporal.io/api/history/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/execution"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/gateway"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/history"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/payload"
)

// GatewayHandler serves the gateway operations over HTTP.
type GatewayHandler struct {
	gw      *gateway.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewGatewayHandler binds gw. A positive timeout bounds every request,
// including history long-polls.
func NewGatewayHandler(gw *gateway.Client, timeout time.Duration, logger *zap.Logger) *GatewayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayHandler{gw: gw, logger: logger, timeout: timeout}
}

func (h *GatewayHandler) RegisterRoutes(mux *http.ServeMux) {
	const wf = "/api/namespaces/{namespace}/workflows/{workflowId}"
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/version", h.handleVersion)
	mux.HandleFunc("GET /api/namespaces", h.handleListNamespaces)
	mux.HandleFunc("GET /api/namespaces/{namespace}", h.handleDescribeNamespace)
	mux.HandleFunc("GET /api/namespaces/{namespace}/task-queues/{taskQueue}", h.handleTaskQueue)
	mux.HandleFunc("GET /api/namespaces/{namespace}/workflows/open", h.handleOpen)
	mux.HandleFunc("GET /api/namespaces/{namespace}/workflows/closed", h.handleClosed)
	mux.HandleFunc("GET /api/namespaces/{namespace}/workflows/list", h.handleList)
	mux.HandleFunc("GET /api/namespaces/{namespace}/workflows/archived", h.handleArchived)
	mux.HandleFunc("GET "+wf, h.handleDescribeWorkflow)
	mux.HandleFunc("GET "+wf+"/history", h.handleHistory)
	mux.HandleFunc("GET "+wf+"/history/export", h.handleExport)
	mux.HandleFunc("POST "+wf+"/query", h.handleQuery)
	mux.HandleFunc("POST "+wf+"/signal/{signalName}", h.handleSignal)
	mux.HandleFunc("POST "+wf+"/terminate", h.handleTerminate)
	mux.HandleFunc("POST "+wf+"/reset", h.handleReset)
	mux.HandleFunc("POST "+wf+"/restart", h.handleRestart)
}

func (h *GatewayHandler) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(r.Context(), h.timeout)
	}
	return context.WithCancel(r.Context())
}

func (h *GatewayHandler) respond(w http.ResponseWriter, r *http.Request, out any, err error) {
	if err != nil {
		h.logger.Debug("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /health
func (h *GatewayHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"writeApiPermitted": h.gw.WriteAPIPermitted(),
	})
}

// GET /api/version
func (h *GatewayHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.GetVersionInfo(ctx)
	h.respond(w, r, out, err)
}

// GET /api/namespaces?pageSize=&nextPageToken=
func (h *GatewayHandler) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, err := queryInt32(q, "pageSize")
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := pageToken(q)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.ListNamespaces(ctx, gateway.ListNamespacesOptions{PageSize: size, NextPageToken: token})
	h.respond(w, r, out, err)
}

// GET /api/namespaces/{namespace}
func (h *GatewayHandler) handleDescribeNamespace(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.DescribeNamespace(ctx, r.PathValue("namespace"))
	h.respond(w, r, out, err)
}

// GET /api/namespaces/{namespace}/task-queues/{taskQueue}?type=workflow|activity
func (h *GatewayHandler) handleTaskQueue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.DescribeTaskQueue(ctx, gateway.DescribeTaskQueueOptions{
		Namespace: r.PathValue("namespace"),
		TaskQueue: r.PathValue("taskQueue"),
		Type:      r.URL.Query().Get("type"),
	})
	h.respond(w, r, out, err)
}

// listFilter reads ?startTime=&endTime=&workflowId=&runId=&workflowType=&pageSize=&nextPageToken=
func listFilter(r *http.Request) (gateway.ListFilter, error) {
	q := r.URL.Query()
	f := gateway.ListFilter{Namespace: r.PathValue("namespace"), WorkflowType: q.Get("workflowType")}
	var err error
	if f.EarliestStart, err = execution.ParseTime(q.Get("startTime")); err != nil {
		return f, err
	}
	if f.LatestStart, err = execution.ParseTime(q.Get("endTime")); err != nil {
		return f, err
	}
	if id := q.Get("workflowId"); id != "" {
		f.Execution = &execution.Ref{WorkflowID: id, RunID: q.Get("runId")}
	}
	if f.PageSize, err = queryInt32(q, "pageSize"); err != nil {
		return f, err
	}
	if f.NextPageToken, err = pageToken(q); err != nil {
		return f, err
	}
	return f, nil
}

func queryList(r *http.Request) (gateway.QueryListOptions, error) {
	q := r.URL.Query()
	opts := gateway.QueryListOptions{Namespace: r.PathValue("namespace"), Query: q.Get("query")}
	var err error
	if opts.PageSize, err = queryInt32(q, "pageSize"); err != nil {
		return opts, err
	}
	if opts.NextPageToken, err = pageToken(q); err != nil {
		return opts, err
	}
	return opts, nil
}

func (h *GatewayHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.OpenWorkflows(ctx, f)
	h.respond(w, r, out, err)
}

// GET .../workflows/closed adds ?status=
func (h *GatewayHandler) handleClosed(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.ClosedWorkflows(ctx, gateway.ClosedListFilter{ListFilter: f, Status: r.URL.Query().Get("status")})
	h.respond(w, r, out, err)
}

func (h *GatewayHandler) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := queryList(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.ListWorkflows(ctx, opts)
	h.respond(w, r, out, err)
}

func (h *GatewayHandler) handleArchived(w http.ResponseWriter, r *http.Request) {
	opts, err := queryList(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.ArchivedWorkflows(ctx, opts)
	h.respond(w, r, out, err)
}

func (h *GatewayHandler) handleDescribeWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.DescribeWorkflow(ctx, r.PathValue("namespace"), executionRef(r))
	h.respond(w, r, out, err)
}

func historyOptions(r *http.Request) (gateway.HistoryOptions, error) {
	q := r.URL.Query()
	opts := gateway.HistoryOptions{Namespace: r.PathValue("namespace"), Execution: executionRef(r)}
	var err error
	if opts.NextPageToken, err = pageToken(q); err != nil {
		return opts, err
	}
	if opts.WaitForNewEvent, err = queryBool(q, "waitForNewEvent"); err != nil {
		return opts, err
	}
	if opts.RawPayloads, err = queryBool(q, "rawPayloads"); err != nil {
		return opts, err
	}
	if opts.PageSize, err = queryInt32(q, "pageSize"); err != nil {
		return opts, err
	}
	return opts, nil
}

// GET .../history?runId=&nextPageToken=&waitForNewEvent=&rawPayloads=&full=
func (h *GatewayHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	opts, err := historyOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	full, err := queryBool(r.URL.Query(), "full")
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if full {
		out, err := h.gw.GetFullHistory(ctx, opts)
		h.respond(w, r, out, err)
		return
	}
	out, err := h.gw.GetHistory(ctx, opts)
	h.respond(w, r, out, err)
}

func (h *GatewayHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	opts, err := historyOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, _, err := h.gw.ExportHistory(ctx, opts)
	h.respond(w, r, out, err)
}

type queryRequest struct {
	QueryType string `json:"queryType"`
	Args      any    `json:"args"`
}

func (h *GatewayHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.QueryWorkflow(ctx, gateway.QueryOptions{
		Namespace: r.PathValue("namespace"),
		Execution: executionRef(r),
		QueryType: body.QueryType,
		Args:      body.Args,
	})
	h.respond(w, r, out, err)
}

// POST .../signal/{signalName}; the whole body is the signal payload.
func (h *GatewayHandler) handleSignal(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.SignalWorkflow(ctx, gateway.SignalOptions{
		Namespace:  r.PathValue("namespace"),
		Execution:  executionRef(r),
		SignalName: r.PathValue("signalName"),
		Payload:    body,
	})
	h.respond(w, r, out, err)
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (h *GatewayHandler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	var body terminateRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.TerminateWorkflow(ctx, gateway.TerminateOptions{
		Namespace: r.PathValue("namespace"),
		Execution: executionRef(r),
		Reason:    body.Reason,
	})
	h.respond(w, r, out, err)
}

type resetRequest struct {
	EventID json.Number `json:"eventId"`
	Reason  string      `json:"reason"`
	// Omitted means no signals are reapplied.
	ReapplySignals bool `json:"reapplySignals"`
}

func (h *GatewayHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	var body resetRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	eventID, err := body.EventID.Int64()
	if err != nil {
		writeError(w, badRequest("eventId must be an integer"))
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.ResetWorkflow(ctx, gateway.ResetOptions{
		Namespace:      r.PathValue("namespace"),
		Execution:      executionRef(r),
		EventID:        eventID,
		Reason:         body.Reason,
		ReapplySignals: body.ReapplySignals,
	})
	h.respond(w, r, out, err)
}

type restartRequest struct {
	// FirstEvent is the run's first history event in any shape the gateway
	// serves (a timeline event, a ui or cli transformed event) or protojson.
	FirstEvent json.RawMessage `json:"firstEvent"`
}

// decodeFirstEvent accepts every rendering of a history event the gateway
// emits. Unknown fields and enum names are rejected rather than dropped.
func decodeFirstEvent(raw json.RawMessage) (*historypb.HistoryEvent, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, err
	}
	if _, ok := shape["details"]; ok {
		var ev history.Event
		if err := decodeNumbers(raw, &ev); err != nil {
			return nil, err
		}
		return ev.HistoryEvent()
	}

	// protojson renders eventId as a string; a number means the ui transform,
	// whose raw payload metadata would misparse as base64 under protojson
	if id := bytes.TrimSpace(shape["eventId"]); len(id) == 0 || id[0] == '"' {
		ev := &historypb.HistoryEvent{}
		if err := protojson.Unmarshal(raw, ev); err == nil {
			return ev, nil
		}
	}
	var values map[string]any
	if err := decodeNumbers(raw, &values); err != nil {
		return nil, err
	}
	ev := &historypb.HistoryEvent{}
	if err := payload.Restore(values, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func (h *GatewayHandler) handleRestart(w http.ResponseWriter, r *http.Request) {
	var body restartRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	opts := gateway.RestartOptions{Namespace: r.PathValue("namespace"), Execution: executionRef(r)}
	if len(body.FirstEvent) > 0 && string(body.FirstEvent) != "null" {
		ev, err := decodeFirstEvent(body.FirstEvent)
		if err != nil {
			writeError(w, badRequest("invalid firstEvent: %v", err))
			return
		}
		opts.FirstEvent = ev
	}
	ctx, cancel := h.context(r)
	defer cancel()
	out, err := h.gw.RestartWorkflow(ctx, opts)
	h.respond(w, r, out, err)
}
