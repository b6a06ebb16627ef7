package history

import (
	"fmt"
	"strings"

	enumspb "go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/payload"
)

var attributesOneof = (&historypb.HistoryEvent{}).ProtoReflect().Descriptor().Oneofs().ByName("attributes")

// HistoryEvent rebuilds the wire event e was rendered from. Details land in
// the attributes field that matches the event type.
func (e *Event) HistoryEvent() (*historypb.HistoryEvent, error) {
	t, ok := enumspb.EventType_value[e.Type]
	if !ok || enumspb.EventType(t) == enumspb.EVENT_TYPE_UNSPECIFIED {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	out := &historypb.HistoryEvent{EventId: e.ID, EventType: enumspb.EventType(t)}
	if e.Time != nil {
		out.EventTime = timestamppb.New(*e.Time)
	}
	if e.Details == nil {
		return out, nil
	}

	// EVENT_TYPE_TIMER_FIRED carries timer_fired_event_attributes
	name := protoreflect.Name(strings.ToLower(strings.TrimPrefix(e.Type, "EVENT_TYPE_")) + "_event_attributes")
	fd := attributesOneof.Fields().ByName(name)
	if fd == nil {
		return nil, fmt.Errorf("event type %s carries no attributes", e.Type)
	}
	m := out.ProtoReflect()
	attrs := m.NewField(fd).Message()
	if err := payload.Restore(e.Details, attrs.Interface()); err != nil {
		return nil, fmt.Errorf("event %d details: %w", e.ID, err)
	}
	m.Set(fd, protoreflect.ValueOfMessage(attrs))
	return out, nil
}
