// Package execution converts caller-supplied execution identity and time
// bounds into their Temporal wire forms.
package execution

import (
	"strings"
	"time"

	commonpb "go.temporal.io/api/common/v1"
	filterpb "go.temporal.io/api/filter/v1"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
)

// Ref identifies one execution. An empty RunID addresses the latest run.
type Ref struct {
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId,omitempty"`
}

// Resolve validates ref for op and builds the wire execution. Ids are sent
// exactly as given, since the engine allows surrounding whitespace in them.
// A blank RunID is left unset so the engine resolves the current run.
func Resolve(op string, ref Ref) (*commonpb.WorkflowExecution, error) {
	if strings.TrimSpace(ref.WorkflowID) == "" {
		return nil, apierr.Validation(op, "workflowId is required")
	}
	we := &commonpb.WorkflowExecution{WorkflowId: ref.WorkflowID}
	if strings.TrimSpace(ref.RunID) != "" {
		we.RunId = ref.RunID
	}
	return we, nil
}

// EncodeTime converts an instant to the wire timestamp. A nil or zero instant
// encodes to nil, meaning the bound is omitted rather than pinned to the epoch.
func EncodeTime(t *time.Time) *timestamppb.Timestamp {
	if t == nil || t.IsZero() {
		return nil
	}
	return timestamppb.New(*t)
}

// StartTimeFilter builds the visibility start-time range. Absent bounds stay
// open on that side.
func StartTimeFilter(earliest, latest *time.Time) (*filterpb.StartTimeFilter, error) {
	lo, hi := EncodeTime(earliest), EncodeTime(latest)
	if lo != nil && hi != nil && earliest.After(*latest) {
		return nil, apierr.Validation("StartTimeFilter", "startTime %s is after endTime %s",
			earliest.Format(time.RFC3339), latest.Format(time.RFC3339))
	}
	return &filterpb.StartTimeFilter{EarliestTime: lo, LatestTime: hi}, nil
}

// ParseTime parses an RFC3339 instant; the empty string yields nil.
func ParseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, apierr.Validation("ParseTime", "invalid time %q: expected RFC3339", s)
	}
	return &t, nil
}
