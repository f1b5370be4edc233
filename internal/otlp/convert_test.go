package otlp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/validate"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func str(k, v string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}}
}

func num(k string, v float64) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v}}}
}

func body(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func request(service string, records ...*logspb.LogRecord) *collogspb.ExportLogsServiceRequest {
	var attrs []*commonpb.KeyValue
	if service != "" {
		attrs = append(attrs, str("service.name", service), str("host.name", "node-1"))
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: &resourcepb.Resource{Attributes: attrs},
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      &commonpb.InstrumentationScope{Name: "scope-lib"},
				LogRecords: records,
			}},
		}},
	}
}

func TestConvert_FullRecord(t *testing.T) {
	trace := []byte{0xab, 0xcd, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	req := request("checkout", &logspb.LogRecord{
		TimeUnixNano:   uint64(fixedNow.Add(-time.Second).UnixNano()),
		SeverityNumber: logspb.SeverityNumber_SEVERITY_NUMBER_ERROR,
		Body:           body("payment declined"),
		TraceId:        trace,
		Attributes:     []*commonpb.KeyValue{num("latency_ms", 12.5), str("request.id", "req-9"), str("user", "u1")},
	})

	out := Convert(req, fixedNow)
	require.Len(t, out, 1)
	rec, ok := validate.Record(out[0])
	require.True(t, ok, "converted record must validate: %v", validate.Check(out[0]))

	assert.Equal(t, fixedNow.UnixMilli()-1000, rec.Timestamp)
	assert.Equal(t, "checkout", rec.Service)
	assert.Equal(t, model.LevelError, rec.Level)
	assert.Equal(t, "payment declined", rec.Message)
	assert.Equal(t, 12.5, rec.LatencyMs)
	assert.Equal(t, "req-9", rec.RequestID)
	assert.Equal(t, "u1", rec.Metadata["user"])
	assert.Equal(t, "node-1", rec.Metadata["host.name"])
	assert.Equal(t, "abcd0102030405060708090a0b0c0d0e", rec.Metadata["trace_id"])
	assert.NotContains(t, rec.Metadata, "service.name")
	assert.NotContains(t, rec.Metadata, "latency_ms")
}

func TestConvert_Fallbacks(t *testing.T) {
	trace := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	req := request("",
		&logspb.LogRecord{ObservedTimeUnixNano: uint64(fixedNow.UnixNano()), SeverityText: "WARNING", Body: body("slow"), TraceId: trace},
		&logspb.LogRecord{Body: body("ERROR: disk full")},
	)

	out := Convert(req, fixedNow)
	require.Len(t, out, 2)

	first, ok := validate.Record(out[0])
	require.True(t, ok)
	assert.Equal(t, "scope-lib", first.Service)
	assert.Equal(t, model.LevelWarn, first.Level)
	assert.Equal(t, fixedNow.UnixMilli(), first.Timestamp)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", first.RequestID)

	second, ok := validate.Record(out[1])
	require.True(t, ok)
	assert.Equal(t, model.LevelError, second.Level)
	assert.Equal(t, fixedNow.UnixMilli(), second.Timestamp)
	assert.Len(t, second.RequestID, 36)
}

func TestConvert_StructuredAndEmptyBodies(t *testing.T) {
	kv := &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{KvlistValue: &commonpb.KeyValueList{
		Values: []*commonpb.KeyValue{str("event", "login")},
	}}}
	req := request("auth",
		&logspb.LogRecord{TimeUnixNano: uint64(fixedNow.UnixNano()), Body: kv},
		&logspb.LogRecord{TimeUnixNano: uint64(fixedNow.UnixNano())},
	)

	out := Convert(req, fixedNow)
	require.Len(t, out, 2)

	rec, ok := validate.Record(out[0])
	require.True(t, ok)
	assert.JSONEq(t, `{"event":"login"}`, rec.Message)

	empty, ok := validate.Record(out[1])
	require.True(t, ok)
	assert.Equal(t, "", empty.Message)
}

func TestConvert_EmptyRequest(t *testing.T) {
	assert.Empty(t, Convert(&collogspb.ExportLogsServiceRequest{}, fixedNow))
	assert.Empty(t, Convert(nil, fixedNow))
}
