package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/execution"
)

const maxBodyBytes = 1 << 20

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Kind: apierr.KindOf(err).String()}
	if apierr.IsUpstream(err) {
		body.Code = apierr.Code(err).String()
	}
	writeJSON(w, statusFor(err), body)
}

// statusFor maps a gateway error to an HTTP status. Engine failures keep
// their gRPC classification.
func statusFor(err error) int {
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindPermissionDenied:
		return http.StatusForbidden
	case apierr.KindUpstream:
		switch apierr.Code(err) {
		case codes.NotFound:
			return http.StatusNotFound
		case codes.AlreadyExists:
			return http.StatusConflict
		case codes.FailedPrecondition:
			return http.StatusConflict
		case codes.InvalidArgument:
			return http.StatusBadRequest
		case codes.PermissionDenied:
			return http.StatusForbidden
		case codes.ResourceExhausted:
			return http.StatusTooManyRequests
		case codes.DeadlineExceeded:
			return http.StatusGatewayTimeout
		case codes.Canceled:
			return statusClientClosedRequest
		case codes.Unavailable:
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	}
	return http.StatusInternalServerError
}

func badRequest(format string, args ...any) error {
	return apierr.Validation("HTTP", format, args...)
}

// decodeBody reads an optional JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// pageToken decodes a base64 page token. Query strings turn '+' into spaces,
// which are restored before decoding.
func pageToken(q url.Values) ([]byte, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(q.Get("nextPageToken"), " ", "+"))
	if raw == "" {
		return nil, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return b, nil
	}
	b, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return nil, badRequest("nextPageToken must be base64")
	}
	return b, nil
}

func queryInt32(q url.Values, key string) (int32, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return int32(n), nil
}

func queryBool(q url.Values, key string) (bool, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, badRequest("%s must be a boolean", key)
	}
	return b, nil
}

func executionRef(r *http.Request) execution.Ref {
	return execution.Ref{WorkflowID: r.PathValue("workflowId"), RunID: r.URL.Query().Get("runId")}
}
