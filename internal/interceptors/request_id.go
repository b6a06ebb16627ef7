// Package interceptors carries the gateway's per-request id from HTTP into
// the gRPC calls it makes to the engine.
package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	// HTTPHeader is read from inbound requests and echoed on responses.
	HTTPHeader = "X-Request-ID"
	// MetadataKey is attached to outgoing engine calls.
	MetadataKey = "x-request-id"

	maxRequestIDLength = 128
)

type requestIDKey struct{}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// EnsureRequestID keeps a caller-supplied id when it is short printable ASCII
// and otherwise mints a fresh one.
func EnsureRequestID(inbound string) string {
	if inbound != "" && len(inbound) <= maxRequestIDLength && printable(inbound) {
		return inbound
	}
	return uuid.NewString()
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// RequestIDUnaryClientInterceptor adds the request id to outgoing metadata
func RequestIDUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := RequestIDFrom(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, MetadataKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
