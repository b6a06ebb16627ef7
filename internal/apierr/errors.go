// Package apierr defines the error kinds surfaced by the gateway so callers can
// branch on policy, validation and engine failures without string matching.
package apierr

import (
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a gateway error.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not produced by this package.
	KindUnknown Kind = iota
	// KindValidation marks malformed identity or arguments, rejected before any RPC.
	KindValidation
	// KindPermissionDenied marks an operation disabled by the write gate.
	KindPermissionDenied
	// KindUpstream marks a failure returned by the engine.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by gateway operations.
type Error struct {
	Kind Kind
	// Op is the gateway operation that failed, e.g. "TerminateWorkflow".
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

// Unwrap exposes the engine error so errors.As reaches serviceerror types.
func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets status.Code and status.FromError classify gateway errors.
// Upstream errors keep the engine's original code.
func (e *Error) GRPCStatus() *status.Status {
	switch e.Kind {
	case KindValidation:
		return status.New(codes.InvalidArgument, e.Error())
	case KindPermissionDenied:
		return status.New(codes.PermissionDenied, e.Error())
	case KindUpstream:
		if e.Err != nil {
			return status.New(Code(e.Err), e.Error())
		}
	}
	return status.New(codes.Unknown, e.Error())
}

// Code extracts the gRPC code carried by an engine error, whether it arrives
// as a serviceerror type (SDK connection) or a raw status error.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var svcErr serviceerror.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Status().Code()
	}
	return status.Code(err)
}

// Validation builds a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// PermissionDenied builds a KindPermissionDenied error.
func PermissionDenied(op, msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Op: op, Msg: msg}
}

// Upstream wraps an engine failure. A nil err yields nil.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// UpstreamMsg wraps an engine failure with extra context.
func UpstreamMsg(op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUpstream, Op: op, Msg: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool       { return KindOf(err) == KindValidation }
func IsPermissionDenied(err error) bool { return KindOf(err) == KindPermissionDenied }
func IsUpstream(err error) bool         { return KindOf(err) == KindUpstream }
