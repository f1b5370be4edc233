package otlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/proto"
)

func TestDecodeRequest_JSON(t *testing.T) {
	body := []byte(`{"resourceLogs":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"api"}}]},
		"scopeLogs":[{"logRecords":[{"timeUnixNano":"1700000000000000000","severityText":"ERROR","body":{"stringValue":"boom"},"unknownField":1}]}]}]}`)

	req, err := DecodeRequest("application/json; charset=utf-8", body)
	require.NoError(t, err)

	out := Convert(req, fixedNow)
	require.Len(t, out, 1)
	rec := out[0].(map[string]any)
	assert.Equal(t, "api", rec["service"])
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, int64(1_700_000_000_000), rec["timestamp"])
}

func TestDecodeRequest_Protobuf(t *testing.T) {
	b, err := proto.Marshal(mixedRequest())
	require.NoError(t, err)

	req, err := DecodeRequest(ContentTypeProtobuf, b)
	require.NoError(t, err)
	assert.Len(t, Convert(req, fixedNow), 2)
}

func TestDecodeRequest_Malformed(t *testing.T) {
	_, err := DecodeRequest(ContentTypeJSON, []byte(`{"resourceLogs":`))
	assert.Error(t, err)
}

func TestEncodeResponse(t *testing.T) {
	resp := &collogspb.ExportLogsServiceResponse{PartialSuccess: &collogspb.ExportLogsPartialSuccess{RejectedLogRecords: 2}}

	b, ct, err := EncodeResponse(ContentTypeJSON, resp)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJSON, ct)
	assert.Contains(t, string(b), "rejectedLogRecords")

	b, ct, err = EncodeResponse(ContentTypeProtobuf, resp)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeProtobuf, ct)
	var back collogspb.ExportLogsServiceResponse
	require.NoError(t, proto.Unmarshal(b, &back))
	assert.EqualValues(t, 2, back.GetPartialSuccess().GetRejectedLogRecords())
}
