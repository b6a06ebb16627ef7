// Package payload converts Temporal wire messages into plain Go values ready
// for JSON rendering, decoding encoded payloads along the way.
//
// Two projections exist. ModeUI favors readable values: 64-bit integers become
// numbers, absent messages are dropped. ModeCLI keeps wire fidelity: 64-bit
// integers stay decimal strings, JSON payload numbers keep their literal text,
// and absent messages are kept as explicit nulls.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Mode selects the output projection.
type Mode int

const (
	ModeUI Mode = iota
	ModeCLI
)

func (m Mode) String() string {
	if m == ModeCLI {
		return "cli"
	}
	return "ui"
}

// ParseMode accepts "ui" or "cli" (case-insensitive); empty means ui.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ui":
		return ModeUI, nil
	case "cli":
		return ModeCLI, nil
	default:
		return ModeUI, fmt.Errorf("unknown transform mode %q", s)
	}
}

// Options controls a transform.
type Options struct {
	Mode Mode
	// RawPayloads leaves every payload as metadata plus base64 data without
	// attempting to decode it.
	RawPayloads bool
}

var (
	payloadName   = (&commonpb.Payload{}).ProtoReflect().Descriptor().FullName()
	timestampName = (&timestamppb.Timestamp{}).ProtoReflect().Descriptor().FullName()
	durationName  = (&durationpb.Duration{}).ProtoReflect().Descriptor().FullName()
)

// Transform walks msg and returns its normalized form. A nil or invalid
// message yields nil.
func Transform(msg proto.Message, opts Options) map[string]any {
	if msg == nil {
		return nil
	}
	m := msg.ProtoReflect()
	if !m.IsValid() {
		return nil
	}
	return opts.fields(m)
}

// DecodePayload normalizes a single payload.
func DecodePayload(p *commonpb.Payload, opts Options) any {
	if p == nil {
		return nil
	}
	return opts.payload(p)
}

func (o Options) fields(m protoreflect.Message) map[string]any {
	fields := m.Descriptor().Fields()
	out := make(map[string]any, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() && !m.Has(fd) {
			continue
		}
		if fd.HasPresence() && !m.Has(fd) {
			if o.Mode == ModeCLI {
				out[fd.JSONName()] = nil
			}
			continue
		}
		out[fd.JSONName()] = o.value(fd, m.Get(fd))
	}
	return out
}

func (o Options) value(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch {
	case fd.IsList():
		l := v.List()
		out := make([]any, l.Len())
		for i := range out {
			out[i] = o.singular(fd, l.Get(i))
		}
		return out
	case fd.IsMap():
		mv := v.Map()
		out := make(map[string]any, mv.Len())
		valueFd := fd.MapValue()
		mv.Range(func(k protoreflect.MapKey, val protoreflect.Value) bool {
			out[k.String()] = o.singular(valueFd, val)
			return true
		})
		return out
	default:
		return o.singular(fd, v)
	}
}

func (o Options) singular(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return o.message(v.Message())
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if o.Mode == ModeCLI {
			return strconv.FormatInt(v.Int(), 10)
		}
		return v.Int()
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if o.Mode == ModeCLI {
			return strconv.FormatUint(v.Uint(), 10)
		}
		return v.Uint()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return floatValue(v.Float())
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return base64.StdEncoding.EncodeToString(v.Bytes())
	}
	return v.Interface()
}

func (o Options) message(m protoreflect.Message) any {
	if !m.IsValid() {
		return nil
	}
	switch m.Descriptor().FullName() {
	case payloadName:
		if p, ok := m.Interface().(*commonpb.Payload); ok {
			return o.payload(p)
		}
	case timestampName:
		if ts, ok := m.Interface().(*timestamppb.Timestamp); ok {
			return ts.AsTime().UTC().Format(time.RFC3339Nano)
		}
	case durationName:
		if d, ok := m.Interface().(*durationpb.Duration); ok {
			if o.Mode == ModeCLI {
				return protoDuration(d)
			}
			return d.AsDuration().String()
		}
	}
	return o.fields(m)
}

func (o Options) payload(p *commonpb.Payload) any {
	if o.RawPayloads {
		return rawPayload(p)
	}
	enc := string(p.GetMetadata()[converter.MetadataEncoding])
	if enc == converter.MetadataEncodingJSON {
		return o.decodeJSON(p.GetData())
	}
	return map[string]any{
		"encoding": enc,
		"data":     base64.StdEncoding.EncodeToString(p.GetData()),
		"size":     len(p.GetData()),
	}
}

// decodeJSON falls back to the raw text when data is not a single JSON value.
func (o Options) decodeJSON(data []byte) any {
	dec := json.NewDecoder(bytes.NewReader(data))
	if o.Mode == ModeCLI {
		dec.UseNumber()
	}
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(data)
	}
	if _, err := dec.Token(); err != io.EOF {
		return string(data)
	}
	return v
}

func rawPayload(p *commonpb.Payload) map[string]any {
	meta := make(map[string]any, len(p.GetMetadata()))
	for k, v := range p.GetMetadata() {
		if utf8.Valid(v) {
			meta[k] = string(v)
		} else {
			meta[k] = base64.StdEncoding.EncodeToString(v)
		}
	}
	return map[string]any{
		"metadata": meta,
		"data":     base64.StdEncoding.EncodeToString(p.GetData()),
	}
}

func floatValue(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

// protoDuration renders d the way protojson does: seconds with up to nine
// fractional digits and an "s" suffix.
func protoDuration(d *durationpb.Duration) string {
	secs, nanos := d.GetSeconds(), d.GetNanos()
	sign := ""
	if secs < 0 || nanos < 0 {
		sign = "-"
		secs, nanos = -secs, -nanos
	}
	if nanos == 0 {
		return fmt.Sprintf("%s%ds", sign, secs)
	}
	frac := strings.TrimRight(fmt.Sprintf("%09d", nanos), "0")
	return fmt.Sprintf("%s%d.%ss", sign, secs, frac)
}
