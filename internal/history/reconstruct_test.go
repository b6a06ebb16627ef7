package history

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/payload"
)

var base = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func ev(id int64, at time.Duration) *historypb.HistoryEvent {
	return &historypb.HistoryEvent{EventId: id, EventTime: timestamppb.New(base.Add(at))}
}

func wfStarted(id int64) *historypb.HistoryEvent {
	e := ev(id, 0)
	e.EventType = enumspb.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED
	e.Attributes = &historypb.HistoryEvent_WorkflowExecutionStartedEventAttributes{
		WorkflowExecutionStartedEventAttributes: &historypb.WorkflowExecutionStartedEventAttributes{
			WorkflowType: &commonpb.WorkflowType{Name: "OrderWorkflow"},
		},
	}
	return e
}

func actScheduled(id int64, at time.Duration, name string) *historypb.HistoryEvent {
	e := ev(id, at)
	e.EventType = enumspb.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED
	e.Attributes = &historypb.HistoryEvent_ActivityTaskScheduledEventAttributes{
		ActivityTaskScheduledEventAttributes: &historypb.ActivityTaskScheduledEventAttributes{
			ActivityId:   name,
			ActivityType: &commonpb.ActivityType{Name: name},
		},
	}
	return e
}

func actStarted(id, scheduled int64, at time.Duration) *historypb.HistoryEvent {
	e := ev(id, at)
	e.EventType = enumspb.EVENT_TYPE_ACTIVITY_TASK_STARTED
	e.Attributes = &historypb.HistoryEvent_ActivityTaskStartedEventAttributes{
		ActivityTaskStartedEventAttributes: &historypb.ActivityTaskStartedEventAttributes{ScheduledEventId: scheduled},
	}
	return e
}

func actCompleted(id, scheduled int64, at time.Duration) *historypb.HistoryEvent {
	e := ev(id, at)
	e.EventType = enumspb.EVENT_TYPE_ACTIVITY_TASK_COMPLETED
	e.Attributes = &historypb.HistoryEvent_ActivityTaskCompletedEventAttributes{
		ActivityTaskCompletedEventAttributes: &historypb.ActivityTaskCompletedEventAttributes{ScheduledEventId: scheduled},
	}
	return e
}

func actFailed(id, scheduled int64, at time.Duration) *historypb.HistoryEvent {
	e := ev(id, at)
	e.EventType = enumspb.EVENT_TYPE_ACTIVITY_TASK_FAILED
	e.Attributes = &historypb.HistoryEvent_ActivityTaskFailedEventAttributes{
		ActivityTaskFailedEventAttributes: &historypb.ActivityTaskFailedEventAttributes{ScheduledEventId: scheduled},
	}
	return e
}

func timerStarted(id int64, at time.Duration) *historypb.HistoryEvent {
	e := ev(id, at)
	e.EventType = enumspb.EVENT_TYPE_TIMER_STARTED
	e.Attributes = &historypb.HistoryEvent_TimerStartedEventAttributes{
		TimerStartedEventAttributes: &historypb.TimerStartedEventAttributes{TimerId: "t1"},
	}
	return e
}

func timerFired(id, started int64, at time.Duration) *historypb.HistoryEvent {
	e := ev(id, at)
	e.EventType = enumspb.EVENT_TYPE_TIMER_FIRED
	e.Attributes = &historypb.HistoryEvent_TimerFiredEventAttributes{
		TimerFiredEventAttributes: &historypb.TimerFiredEventAttributes{TimerId: "t1", StartedEventId: started},
	}
	return e
}

func newReconstructor() *Reconstructor {
	return New(payload.Options{Mode: payload.ModeUI}, zap.NewNop())
}

func TestBuildPairsEveryScheduledEvent(t *testing.T) {
	events := []*historypb.HistoryEvent{
		wfStarted(1),
		actScheduled(5, time.Second, "charge"),
		actScheduled(6, time.Second, "ship"),
		actStarted(7, 6, 2*time.Second),
		actStarted(8, 5, 2*time.Second),
		actCompleted(9, 6, 4*time.Second),
		actFailed(10, 5, 5*time.Second),
	}
	tl := newReconstructor().Build(events)

	units := tl.Units()
	require.Len(t, units, 2)
	assert.Equal(t, int64(5), units[0].Initiated.ID)
	assert.Equal(t, int64(6), units[1].Initiated.ID)

	assert.Equal(t, StatusFailed, units[0].Status)
	assert.Equal(t, int64(10), units[0].Resolved.ID)
	assert.Equal(t, int64(3000), units[0].DurationMs)
	assert.Equal(t, StatusCompleted, units[1].Status)
	assert.Equal(t, int64(7), units[1].Started.ID)
	assert.False(t, units[0].Open)
	assert.Zero(t, tl.OpenUnits)
	assert.Empty(t, tl.Anomalies)

	// workflow start and the two units, in event id order
	require.Len(t, tl.Entries, 3)
	assert.Equal(t, []int64{1, 5, 6}, []int64{tl.Entries[0].EventID, tl.Entries[1].EventID, tl.Entries[2].EventID})
	require.NotNil(t, tl.Entries[0].Event)
	assert.Equal(t, "EVENT_TYPE_WORKFLOW_EXECUTION_STARTED", tl.Entries[0].Event.Type)
	assert.Equal(t, map[string]any{"name": "OrderWorkflow"}, tl.Entries[0].Event.Details["workflowType"])
}

func TestBuildNUnits(t *testing.T) {
	const n = 25
	var events []*historypb.HistoryEvent
	for i := int64(0); i < n; i++ {
		events = append(events, actScheduled(i+1, 0, "a"))
	}
	// resolve in reverse order
	for i := int64(n); i >= 1; i-- {
		events = append(events, actCompleted(100+n-i, i, time.Second))
	}
	tl := newReconstructor().Build(events)

	units := tl.Units()
	require.Len(t, units, n)
	for i, u := range units {
		assert.Equal(t, int64(i+1), u.Initiated.ID)
		assert.Equal(t, StatusCompleted, u.Status)
	}
	assert.Len(t, tl.Entries, n)
	assert.Empty(t, tl.Anomalies)
}

func TestBuildKeepsUnresolvedUnitsOpen(t *testing.T) {
	tl := newReconstructor().Build([]*historypb.HistoryEvent{
		actScheduled(5, 0, "charge"),
		actStarted(6, 5, time.Second),
		timerStarted(7, time.Second),
	})
	units := tl.Units()
	require.Len(t, units, 2)
	assert.True(t, units[0].Open)
	assert.Equal(t, StatusStarted, units[0].Status)
	assert.True(t, units[1].Open)
	assert.Equal(t, StatusScheduled, units[1].Status)
	assert.Equal(t, KindTimer, units[1].Kind)
	assert.Equal(t, 2, tl.OpenUnits)
}

func TestBuildDuplicateResolutionFirstWins(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := New(payload.Options{}, zap.New(core))

	tl := r.Build([]*historypb.HistoryEvent{
		timerStarted(3, 0),
		timerFired(4, 3, time.Second),
		timerFired(5, 3, 2*time.Second),
	})
	units := tl.Units()
	require.Len(t, units, 1)
	assert.Equal(t, int64(4), units[0].Resolved.ID)
	require.Len(t, tl.Anomalies, 1)
	assert.Equal(t, int64(5), tl.Anomalies[0].EventID)
	assert.Equal(t, int64(3), tl.Anomalies[0].InitiatorID)
	assert.Equal(t, 1, logs.FilterMessage("History anomaly").Len())
}

func TestBuildOrphanCounterpartPassesThrough(t *testing.T) {
	tl := newReconstructor().Build([]*historypb.HistoryEvent{
		wfStarted(1),
		actCompleted(12, 9, time.Second),
	})
	assert.Empty(t, tl.Units())
	require.Len(t, tl.Entries, 2)
	require.NotNil(t, tl.Entries[1].Event)
	assert.Equal(t, int64(12), tl.Entries[1].EventID)
	require.Len(t, tl.Anomalies, 1)
	assert.Equal(t, reasonUnknownInit, tl.Anomalies[0].Reason)
}

func TestBuildMismatchedKindIsOrphan(t *testing.T) {
	// a timer firing that points at an activity is not a valid pairing
	tl := newReconstructor().Build([]*historypb.HistoryEvent{
		actScheduled(2, 0, "a"),
		timerFired(3, 2, time.Second),
	})
	require.Len(t, tl.Units(), 1)
	assert.True(t, tl.Units()[0].Open)
	require.Len(t, tl.Anomalies, 1)
}

func TestBuildFlagsOutOfOrderEvents(t *testing.T) {
	tl := newReconstructor().Build([]*historypb.HistoryEvent{
		wfStarted(1),
		actScheduled(5, 0, "a"),
		actScheduled(3, 0, "b"),
		nil,
	})
	require.Len(t, tl.Anomalies, 1)
	assert.Equal(t, reasonNotIncreasing, tl.Anomalies[0].Reason)
	assert.Len(t, tl.Units(), 2)

	var ids []int64
	for _, e := range tl.Entries {
		ids = append(ids, e.EventID)
	}
	assert.Equal(t, []int64{1, 3, 5}, ids)
}

func TestEventAbsentTimeOmitted(t *testing.T) {
	e := wfStarted(1)
	e.EventTime = nil
	tl := newReconstructor().Build([]*historypb.HistoryEvent{e})
	assert.Nil(t, tl.Entries[0].Event.Time)

	data, err := json.Marshal(tl.Entries[0].Event)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "eventTime")
	assert.NotContains(t, string(data), "0001-01-01")
}

func TestEventTypeName(t *testing.T) {
	assert.Equal(t, "EVENT_TYPE_ACTIVITY_TASK_SCHEDULED", EventTypeName(enumspb.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED))
	assert.Equal(t, "9999", EventTypeName(enumspb.EventType(9999)))
}

func TestBuildEmpty(t *testing.T) {
	tl := newReconstructor().Build(nil)
	assert.NotNil(t, tl.Entries)
	assert.Empty(t, tl.Entries)
	assert.Zero(t, tl.OpenUnits)
}

func TestServedEventRebuildsWireEvent(t *testing.T) {
	want := wfStarted(1)
	attrs := want.GetWorkflowExecutionStartedEventAttributes()
	attrs.Input = &commonpb.Payloads{Payloads: []*commonpb.Payload{{
		Metadata: map[string][]byte{"encoding": []byte("json/plain")},
		Data:     []byte(`{"sku":"A-1"}`),
	}}}
	tl := newReconstructor().Build([]*historypb.HistoryEvent{want})

	data, err := json.Marshal(tl.Entries[0].Event)
	require.NoError(t, err)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var served Event
	require.NoError(t, dec.Decode(&served))

	got, err := served.HistoryEvent()
	require.NoError(t, err)
	assert.True(t, proto.Equal(want, got), "rebuilt %v", got)
}

func TestHistoryEventRejectsShorthandType(t *testing.T) {
	_, err := (&Event{ID: 1, Type: "WorkflowExecutionStarted"}).HistoryEvent()
	assert.ErrorContains(t, err, "unknown event type")

	_, err = (&Event{ID: 1, Type: "EVENT_TYPE_UNSPECIFIED"}).HistoryEvent()
	assert.Error(t, err)

	got, err := (&Event{ID: 4, Type: "EVENT_TYPE_TIMER_FIRED"}).HistoryEvent()
	require.NoError(t, err)
	assert.Equal(t, enumspb.EVENT_TYPE_TIMER_FIRED, got.GetEventType())
	assert.Nil(t, got.GetEventTime())
}
