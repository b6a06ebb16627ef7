package payload

import (
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
)

var jsonConverter = converter.NewJSONPayloadConverter()

// EncodeJSON encodes v as a single json/plain payload. Every value, including
// nil and byte slices, goes through JSON so receivers can rely on the encoding.
func EncodeJSON(v any) (*commonpb.Payload, error) {
	p, err := jsonConverter.ToPayload(v)
	if err != nil {
		return nil, fmt.Errorf("encode json payload: %w", err)
	}
	return p, nil
}

// EncodeJSONPayloads wraps EncodeJSON in a one-element payload list.
func EncodeJSONPayloads(v any) (*commonpb.Payloads, error) {
	p, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	return &commonpb.Payloads{Payloads: []*commonpb.Payload{p}}, nil
}
