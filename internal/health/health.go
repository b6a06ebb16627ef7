// Package health runs readiness probes against the gateway's dependencies.
package health

import (
	"context"
	"time"
)

// Status is the outcome of a single check.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON bodies.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult describes one component's probe.
type CheckResult struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Critical  bool          `json:"critical"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"durationNs"`
	Timestamp time.Time     `json:"timestamp"`
}

// Checker probes a single dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
	IsCritical() bool
	Timeout() time.Duration
}

// PingChecker adapts a ping function into a Checker.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	critical bool
	timeout  time.Duration
}

// NewPingChecker wraps ping. A non-positive timeout defaults to 5s.
func NewPingChecker(name string, critical bool, timeout time.Duration, ping func(ctx context.Context) error) *PingChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PingChecker{name: name, ping: ping, critical: critical, timeout: timeout}
}

func (c *PingChecker) Name() string                    { return c.name }
func (c *PingChecker) Check(ctx context.Context) error { return c.ping(ctx) }
func (c *PingChecker) IsCritical() bool                { return c.critical }
func (c *PingChecker) Timeout() time.Duration          { return c.timeout }
