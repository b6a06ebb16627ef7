package payload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Restore fills msg from values rendered by Transform in either mode, so a
// caller can hand back what the gateway served. Payloads shown as decoded JSON
// are re-encoded as json/plain; raw and binary renderings are rebuilt from
// their base64 data. Unknown fields and enum names are errors.
func Restore(values map[string]any, msg proto.Message) error {
	wire, err := restoreMessage(msg.ProtoReflect().Descriptor(), values)
	if err != nil {
		return err
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("restore %s: %w", msg.ProtoReflect().Descriptor().Name(), err)
	}
	if err := protojson.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("restore %s: %w", msg.ProtoReflect().Descriptor().Name(), err)
	}
	return nil
}

// restoreMessage rewrites v into the protojson form of md.
func restoreMessage(md protoreflect.MessageDescriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch md.FullName() {
	case payloadName:
		return restorePayload(v)
	case durationName:
		return restoreDuration(v)
	case timestampName:
		return v, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected an object, got %T", md.Name(), v)
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		fd := md.Fields().ByJSONName(k)
		if fd == nil {
			fd = md.Fields().ByName(protoreflect.Name(k))
		}
		if fd == nil {
			return nil, fmt.Errorf("%s: unknown field %q", md.Name(), k)
		}
		rv, err := restoreField(fd, val)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func restoreField(fd protoreflect.FieldDescriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case fd.IsList():
		l, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected a list, got %T", fd.JSONName(), v)
		}
		out := make([]any, len(l))
		for i, e := range l {
			rv, err := restoreSingular(fd, e)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case fd.IsMap():
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected an object, got %T", fd.JSONName(), v)
		}
		out := make(map[string]any, len(m))
		for k, e := range m {
			rv, err := restoreSingular(fd.MapValue(), e)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	}
	return restoreSingular(fd, v)
}

// restoreSingular converts message values; scalars, enum names and base64
// bytes already match protojson.
func restoreSingular(fd protoreflect.FieldDescriptor, v any) (any, error) {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return restoreMessage(fd.Message(), v)
	}
	return v, nil
}

func restorePayload(v any) (any, error) {
	if m, ok := v.(map[string]any); ok {
		if meta, data, ok := rawForm(m); ok {
			wire := make(map[string]any, len(meta))
			for k, mv := range meta {
				s, ok := mv.(string)
				if !ok {
					return nil, fmt.Errorf("payload metadata %q: expected a string, got %T", k, mv)
				}
				wire[k] = base64.StdEncoding.EncodeToString([]byte(s))
			}
			return map[string]any{"metadata": wire, "data": data}, nil
		}
		if enc, data, ok := binaryForm(m); ok {
			return map[string]any{
				"metadata": map[string]any{"encoding": base64.StdEncoding.EncodeToString([]byte(enc))},
				"data":     data,
			}, nil
		}
	}
	p, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	data, err := protojson.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.RawMessage(data), nil
}

// rawForm matches the RawPayloads rendering: {metadata, data}.
func rawForm(m map[string]any) (map[string]any, string, bool) {
	if len(m) != 2 {
		return nil, "", false
	}
	meta, ok := m["metadata"].(map[string]any)
	data, okData := m["data"].(string)
	return meta, data, ok && okData
}

// binaryForm matches the rendering of a payload that is not json/plain:
// {encoding, data, size}.
func binaryForm(m map[string]any) (string, string, bool) {
	if len(m) != 3 {
		return "", "", false
	}
	if _, ok := m["size"]; !ok {
		return "", "", false
	}
	enc, ok := m["encoding"].(string)
	data, okData := m["data"].(string)
	return enc, data, ok && okData
}

// restoreDuration accepts both renderings: Go's "1h30m0s" (ui) and the
// protojson "5400s" (cli).
func restoreDuration(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("duration: expected a string, got %T", v)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("duration %q: %w", s, err)
	}
	return protoDuration(durationpb.New(d)), nil
}
