package history

import (
	"sort"
	"strconv"

	enumspb "go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/payload"
)

const (
	reasonNotIncreasing  = "event id not strictly increasing"
	reasonDuplicateInit  = "duplicate initiating event id"
	reasonUnknownInit    = "no initiating event for back-reference"
	reasonDuplicateStage = "initiating event already has this counterpart"
)

// Reconstructor builds timelines. It holds no per-call state and is safe for
// concurrent use.
type Reconstructor struct {
	opts   payload.Options
	logger *zap.Logger
}

// New returns a Reconstructor that renders event details with opts.
func New(opts payload.Options, logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{opts: opts, logger: logger}
}

// Build correlates events in a single pass. events must be one execution's
// history in server order; pages fetched out of order break correlation and
// surface as anomalies.
func (r *Reconstructor) Build(events []*historypb.HistoryEvent) *Timeline {
	tl := &Timeline{Entries: make([]Entry, 0, len(events))}
	units := make(map[int64]*Unit)
	var lastID int64
	unordered := false

	for _, e := range events {
		if e == nil {
			continue
		}
		id := e.GetEventId()
		ev := r.event(e)
		if lastID != 0 && id <= lastID {
			r.flag(tl, ev, 0, reasonNotIncreasing)
			unordered = true
		}
		if id > lastID {
			lastID = id
		}

		rl, ok := rules[e.GetEventType()]
		if !ok {
			tl.Entries = append(tl.Entries, Entry{EventID: id, Event: ev})
			continue
		}

		if rl.role == roleInitiate {
			if _, dup := units[id]; dup {
				r.flag(tl, ev, id, reasonDuplicateInit)
				continue
			}
			u := &Unit{Kind: rl.kind, Status: StatusScheduled, Open: true, Initiated: ev}
			units[id] = u
			tl.Entries = append(tl.Entries, Entry{EventID: id, Unit: u})
			continue
		}

		ref := rl.ref(e)
		u := units[ref]
		if u == nil || u.Kind != rl.kind {
			r.flag(tl, ev, ref, reasonUnknownInit)
			tl.Entries = append(tl.Entries, Entry{EventID: id, Event: ev})
			continue
		}
		if !attach(u, rl, ev) {
			r.flag(tl, ev, ref, reasonDuplicateStage)
		}
	}

	if unordered {
		sort.SliceStable(tl.Entries, func(i, j int) bool { return tl.Entries[i].EventID < tl.Entries[j].EventID })
	}
	for _, u := range units {
		if u.Open {
			tl.OpenUnits++
		}
	}
	return tl
}

// attach fills the unit slot for rl's role. The first event for a slot wins.
func attach(u *Unit, rl rule, ev *Event) bool {
	switch rl.role {
	case roleStart:
		if u.Started != nil {
			return false
		}
		u.Started = ev
		if u.Resolved == nil {
			u.Status = StatusStarted
		}
	case roleCancelRequest:
		if u.CancelRequested != nil {
			return false
		}
		u.CancelRequested = ev
		if u.Resolved == nil {
			u.Status = StatusCancelRequested
		}
	case roleResolve:
		if u.Resolved != nil {
			return false
		}
		u.Resolved = ev
		u.Status = rl.status
		u.Open = false
		from := u.Initiated.Time
		if u.Started != nil {
			from = u.Started.Time
		}
		if from != nil && ev.Time != nil {
			u.DurationMs = ev.Time.Sub(*from).Milliseconds()
		}
	}
	return true
}

func (r *Reconstructor) event(e *historypb.HistoryEvent) *Event {
	ev := &Event{ID: e.GetEventId(), Type: EventTypeName(e.GetEventType())}
	if ts := e.GetEventTime(); ts != nil {
		t := ts.AsTime().UTC()
		ev.Time = &t
	}
	m := e.ProtoReflect()
	if od := m.Descriptor().Oneofs().ByName("attributes"); od != nil {
		if fd := m.WhichOneof(od); fd != nil {
			ev.Details = payload.Transform(m.Get(fd).Message().Interface(), r.opts)
		}
	}
	return ev
}

func (r *Reconstructor) flag(tl *Timeline, ev *Event, initiator int64, reason string) {
	tl.Anomalies = append(tl.Anomalies, Anomaly{
		EventID:     ev.ID,
		EventType:   ev.Type,
		InitiatorID: initiator,
		Reason:      reason,
		Event:       ev,
	})
	r.logger.Warn("History anomaly",
		zap.Int64("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.Int64("initiator_id", initiator),
		zap.String("reason", reason),
	)
}

// EventTypeName renders t with its proto enum name, the same vocabulary the
// payload transform uses for every other enum.
func EventTypeName(t enumspb.EventType) string {
	if name, ok := enumspb.EventType_name[int32(t)]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}
