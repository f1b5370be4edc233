package otlp

import (
	"fmt"
	"mime"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// OTLP/HTTP content types.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

var jsonUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}

// DecodeRequest parses an OTLP/HTTP body. Anything but protobuf is read as
// JSON.
func DecodeRequest(contentType string, body []byte) (*collogspb.ExportLogsServiceRequest, error) {
	req := &collogspb.ExportLogsServiceRequest{}
	if mediaType(contentType) == ContentTypeProtobuf {
		if err := proto.Unmarshal(body, req); err != nil {
			return nil, fmt.Errorf("otlp: decode protobuf: %w", err)
		}
		return req, nil
	}
	if err := jsonUnmarshal.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("otlp: decode json: %w", err)
	}
	return req, nil
}

// EncodeResponse serialises resp in the encoding the request used.
func EncodeResponse(contentType string, resp *collogspb.ExportLogsServiceResponse) ([]byte, string, error) {
	if mediaType(contentType) == ContentTypeProtobuf {
		b, err := proto.Marshal(resp)
		return b, ContentTypeProtobuf, err
	}
	b, err := protojson.Marshal(resp)
	return b, ContentTypeJSON, err
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}
