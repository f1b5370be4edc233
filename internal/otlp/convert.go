// Package otlp receives OpenTelemetry log exports over gRPC and HTTP and
// feeds them through the regular ingestion path.
package otlp

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/tinytelemetry/logwatch/internal/logparse"
)

const unknownService = "unknown"

var (
	latencyKeys   = []string{"latency_ms", "latencyMs", "duration_ms"}
	requestIDKeys = []string{"request.id", "request_id", "requestId"}
)

// Convert flattens every log record of req into an unvalidated candidate
// map shaped like a submitted LogRecord. Records without a time use now.
func Convert(req *collogspb.ExportLogsServiceRequest, now time.Time) []any {
	var out []any
	for _, rl := range req.GetResourceLogs() {
		resAttrs := attributes(rl.GetResource().GetAttributes())
		service, _ := resAttrs["service.name"].(string)
		delete(resAttrs, "service.name")

		for _, sl := range rl.GetScopeLogs() {
			svc := service
			if svc == "" {
				svc = sl.GetScope().GetName()
			}
			if svc == "" {
				svc = unknownService
			}
			for _, lr := range sl.GetLogRecords() {
				out = append(out, convertRecord(lr, svc, resAttrs, now))
			}
		}
	}
	return out
}

func convertRecord(lr *logspb.LogRecord, service string, resAttrs map[string]any, now time.Time) map[string]any {
	attrs := attributes(lr.GetAttributes())

	ts := int64(lr.GetTimeUnixNano() / uint64(time.Millisecond))
	if ts == 0 {
		ts = int64(lr.GetObservedTimeUnixNano() / uint64(time.Millisecond))
	}
	if ts == 0 {
		ts = now.UnixMilli()
	}

	message := bodyString(lr.GetBody())

	latency := 0.0
	for _, k := range latencyKeys {
		if v, ok := attrs[k]; ok {
			if f, ok := toFloat(v); ok {
				latency = f
				delete(attrs, k)
				break
			}
		}
	}

	requestID := ""
	for _, k := range requestIDKeys {
		if v, ok := attrs[k].(string); ok && v != "" {
			requestID = v
			delete(attrs, k)
			break
		}
	}
	traceID := idString(lr.GetTraceId())
	if requestID == "" {
		requestID = traceID
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	metadata := make(map[string]any, len(attrs)+len(resAttrs)+2)
	for k, v := range resAttrs {
		metadata[k] = v
	}
	for k, v := range attrs {
		metadata[k] = v
	}
	if traceID != "" {
		metadata["trace_id"] = traceID
	}
	if spanID := idString(lr.GetSpanId()); spanID != "" {
		metadata["span_id"] = spanID
	}

	rec := map[string]any{
		"timestamp": ts,
		"service":   service,
		"level":     string(logparse.LevelFor(lr.GetSeverityText(), int32(lr.GetSeverityNumber()), message)),
		"message":   message,
		"latencyMs": latency,
		"requestId": requestID,
	}
	if len(metadata) > 0 {
		rec["metadata"] = metadata
	}
	return rec
}

func attributes(kvs []*commonpb.KeyValue) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		if kv.GetKey() == "" {
			continue
		}
		out[kv.GetKey()] = anyValue(kv.GetValue())
	}
	return out
}

func anyValue(v *commonpb.AnyValue) any {
	switch x := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_BoolValue:
		return x.BoolValue
	case *commonpb.AnyValue_IntValue:
		return x.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return x.DoubleValue
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(x.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		values := x.ArrayValue.GetValues()
		arr := make([]any, len(values))
		for i, e := range values {
			arr[i] = anyValue(e)
		}
		return arr
	case *commonpb.AnyValue_KvlistValue:
		return attributes(x.KvlistValue.GetValues())
	}
	return nil
}

// bodyString renders a log body as the record message. Structured bodies
// are kept as JSON text.
func bodyString(v *commonpb.AnyValue) string {
	switch val := anyValue(v).(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func idString(b []byte) string {
	for _, c := range b {
		if c != 0 {
			return hex.EncodeToString(b)
		}
	}
	return ""
}
