// Package history rebuilds a correlated timeline from a flat Temporal event log.
package history

import (
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
)

// Kind names the asynchronous unit of work an initiating event opens.
type Kind string

const (
	KindActivity      Kind = "activity"
	KindWorkflowTask  Kind = "workflow_task"
	KindTimer         Kind = "timer"
	KindChildWorkflow Kind = "child_workflow"
	KindSignal        Kind = "signal_external"
	KindCancel        Kind = "request_cancel_external"
)

// Status is the last known state of a unit.
type Status string

const (
	StatusScheduled       Status = "scheduled"
	StatusStarted         Status = "started"
	StatusCancelRequested Status = "cancel_requested"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusTimedOut        Status = "timed_out"
	StatusCanceled        Status = "canceled"
	StatusTerminated      Status = "terminated"
)

// Event is one history event with its attributes already transformed.
// Type carries the proto enum name, e.g. EVENT_TYPE_WORKFLOW_EXECUTION_STARTED.
type Event struct {
	ID      int64          `json:"eventId"`
	Type    string         `json:"eventType"`
	Time    *time.Time     `json:"eventTime,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Unit groups an initiating event with the events that resolve it.
type Unit struct {
	Kind            Kind   `json:"kind"`
	Status          Status `json:"status"`
	Open            bool   `json:"open"`
	Initiated       *Event `json:"initiated"`
	Started         *Event `json:"started,omitempty"`
	CancelRequested *Event `json:"cancelRequested,omitempty"`
	Resolved        *Event `json:"resolved,omitempty"`
	// DurationMs runs from start (or initiation when never started) to resolution.
	DurationMs int64 `json:"durationMs,omitempty"`
}

// Entry is either a grouped unit or an ungrouped event, never both.
type Entry struct {
	EventID int64  `json:"eventId"`
	Unit    *Unit  `json:"unit,omitempty"`
	Event   *Event `json:"event,omitempty"`
}

// Anomaly records an event that broke a history invariant. The event is kept
// here rather than overwriting earlier state.
type Anomaly struct {
	EventID     int64  `json:"eventId"`
	EventType   string `json:"eventType"`
	InitiatorID int64  `json:"initiatorId,omitempty"`
	Reason      string `json:"reason"`
	Event       *Event `json:"event,omitempty"`
}

// Timeline is the reconstructed history. Entries are ordered by event id,
// including when the input was not.
type Timeline struct {
	Entries   []Entry   `json:"entries"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
	OpenUnits int       `json:"openUnits"`
}

// Units returns the grouped units in initiator order.
func (t *Timeline) Units() []*Unit {
	var out []*Unit
	for _, e := range t.Entries {
		if e.Unit != nil {
			out = append(out, e.Unit)
		}
	}
	return out
}

type role int

const (
	roleInitiate role = iota + 1
	roleStart
	roleCancelRequest
	roleResolve
)

type rule struct {
	kind   Kind
	role   role
	status Status
	ref    func(*historypb.HistoryEvent) int64
}

func initiate(k Kind) rule { return rule{kind: k, role: roleInitiate} }

func start(k Kind, ref func(*historypb.HistoryEvent) int64) rule {
	return rule{kind: k, role: roleStart, ref: ref}
}

func resolve(k Kind, st Status, ref func(*historypb.HistoryEvent) int64) rule {
	return rule{kind: k, role: roleResolve, status: st, ref: ref}
}

// rules maps every correlated event type to its unit and back-reference.
var rules = map[enumspb.EventType]rule{
	enumspb.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED: initiate(KindActivity),
	enumspb.EVENT_TYPE_ACTIVITY_TASK_STARTED: start(KindActivity, func(e *historypb.HistoryEvent) int64 {
		return e.GetActivityTaskStartedEventAttributes().GetScheduledEventId()
	}),
	enumspb.EVENT_TYPE_ACTIVITY_TASK_CANCEL_REQUESTED: {kind: KindActivity, role: roleCancelRequest, ref: func(e *historypb.HistoryEvent) int64 {
		return e.GetActivityTaskCancelRequestedEventAttributes().GetScheduledEventId()
	}},
	enumspb.EVENT_TYPE_ACTIVITY_TASK_COMPLETED: resolve(KindActivity, StatusCompleted, func(e *historypb.HistoryEvent) int64 {
		return e.GetActivityTaskCompletedEventAttributes().GetScheduledEventId()
	}),
	enumspb.EVENT_TYPE_ACTIVITY_TASK_FAILED: resolve(KindActivity, StatusFailed, func(e *historypb.HistoryEvent) int64 {
		return e.GetActivityTaskFailedEventAttributes().GetScheduledEventId()
	}),
	enumspb.EVENT_TYPE_ACTIVITY_TASK_TIMED_OUT: resolve(KindActivity, StatusTimedOut, func(e *historypb.HistoryEvent) int64 {
		return e.GetActivityTaskTimedOutEventAttributes().GetScheduledEventId()
	}),
	enumspb.EVENT_TYPE_ACTIVITY_TASK_CANCELED: resolve(KindActivity, StatusCanceled, func(e *historypb.HistoryEvent) int64 {
		return e.GetActivityTaskCanceledEventAttributes().GetScheduledEventId()
	}),

	enumspb.EVENT_TYPE_WORKFLOW_TASK_SCHEDULED: initiate(KindWorkflowTask),
	enumspb.EVENT_TYPE_WORKFLOW_TASK_STARTED: start(KindWorkflowTask, func(e *historypb.HistoryEvent) int64 {
		return e.GetWorkflowTaskStartedEventAttributes().GetScheduledEventId()
	}),
	enumspb.EVENT_TYPE_WORKFLOW_TASK_COMPLETED: resolve(KindWorkflowTask, StatusCompleted, func(e *historypb.HistoryEvent) int64 {
		return e.GetWorkflowTaskCompletedEventAttributes().GetScheduledEventId()
	}),
	enumspb.EVENT_TYPE_WORKFLOW_TASK_FAILED: resolve(KindWorkflowTask, StatusFailed, func(e *historypb.HistoryEvent) int64 {
		return e.GetWorkflowTaskFailedEventAttributes().GetScheduledEventId()
	}),
	enumspb.EVENT_TYPE_WORKFLOW_TASK_TIMED_OUT: resolve(KindWorkflowTask, StatusTimedOut, func(e *historypb.HistoryEvent) int64 {
		return e.GetWorkflowTaskTimedOutEventAttributes().GetScheduledEventId()
	}),

	enumspb.EVENT_TYPE_TIMER_STARTED: initiate(KindTimer),
	enumspb.EVENT_TYPE_TIMER_FIRED: resolve(KindTimer, StatusCompleted, func(e *historypb.HistoryEvent) int64 {
		return e.GetTimerFiredEventAttributes().GetStartedEventId()
	}),
	enumspb.EVENT_TYPE_TIMER_CANCELED: resolve(KindTimer, StatusCanceled, func(e *historypb.HistoryEvent) int64 {
		return e.GetTimerCanceledEventAttributes().GetStartedEventId()
	}),

	enumspb.EVENT_TYPE_START_CHILD_WORKFLOW_EXECUTION_INITIATED: initiate(KindChildWorkflow),
	enumspb.EVENT_TYPE_START_CHILD_WORKFLOW_EXECUTION_FAILED: resolve(KindChildWorkflow, StatusFailed, func(e *historypb.HistoryEvent) int64 {
		return e.GetStartChildWorkflowExecutionFailedEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_CHILD_WORKFLOW_EXECUTION_STARTED: start(KindChildWorkflow, func(e *historypb.HistoryEvent) int64 {
		return e.GetChildWorkflowExecutionStartedEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_CHILD_WORKFLOW_EXECUTION_COMPLETED: resolve(KindChildWorkflow, StatusCompleted, func(e *historypb.HistoryEvent) int64 {
		return e.GetChildWorkflowExecutionCompletedEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_CHILD_WORKFLOW_EXECUTION_FAILED: resolve(KindChildWorkflow, StatusFailed, func(e *historypb.HistoryEvent) int64 {
		return e.GetChildWorkflowExecutionFailedEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_CHILD_WORKFLOW_EXECUTION_CANCELED: resolve(KindChildWorkflow, StatusCanceled, func(e *historypb.HistoryEvent) int64 {
		return e.GetChildWorkflowExecutionCanceledEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_CHILD_WORKFLOW_EXECUTION_TIMED_OUT: resolve(KindChildWorkflow, StatusTimedOut, func(e *historypb.HistoryEvent) int64 {
		return e.GetChildWorkflowExecutionTimedOutEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_CHILD_WORKFLOW_EXECUTION_TERMINATED: resolve(KindChildWorkflow, StatusTerminated, func(e *historypb.HistoryEvent) int64 {
		return e.GetChildWorkflowExecutionTerminatedEventAttributes().GetInitiatedEventId()
	}),

	enumspb.EVENT_TYPE_SIGNAL_EXTERNAL_WORKFLOW_EXECUTION_INITIATED: initiate(KindSignal),
	enumspb.EVENT_TYPE_EXTERNAL_WORKFLOW_EXECUTION_SIGNALED: resolve(KindSignal, StatusCompleted, func(e *historypb.HistoryEvent) int64 {
		return e.GetExternalWorkflowExecutionSignaledEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_SIGNAL_EXTERNAL_WORKFLOW_EXECUTION_FAILED: resolve(KindSignal, StatusFailed, func(e *historypb.HistoryEvent) int64 {
		return e.GetSignalExternalWorkflowExecutionFailedEventAttributes().GetInitiatedEventId()
	}),

	enumspb.EVENT_TYPE_REQUEST_CANCEL_EXTERNAL_WORKFLOW_EXECUTION_INITIATED: initiate(KindCancel),
	enumspb.EVENT_TYPE_EXTERNAL_WORKFLOW_EXECUTION_CANCEL_REQUESTED: resolve(KindCancel, StatusCompleted, func(e *historypb.HistoryEvent) int64 {
		return e.GetExternalWorkflowExecutionCancelRequestedEventAttributes().GetInitiatedEventId()
	}),
	enumspb.EVENT_TYPE_REQUEST_CANCEL_EXTERNAL_WORKFLOW_EXECUTION_FAILED: resolve(KindCancel, StatusFailed, func(e *historypb.HistoryEvent) int64 {
		return e.GetRequestCancelExternalWorkflowExecutionFailedEventAttributes().GetInitiatedEventId()
	}),
}
