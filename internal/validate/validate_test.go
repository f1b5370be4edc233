package validate

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tinytelemetry/logwatch/internal/model"
)

func validCandidate() map[string]any {
	return map[string]any{
		"timestamp": float64(1700000000000),
		"service":   "checkout",
		"level":     "info",
		"message":   "order placed",
		"latencyMs": float64(12.5),
		"requestId": "req-1",
	}
}

func TestValid_AcceptsWellFormed(t *testing.T) {
	if !Valid(validCandidate()) {
		t.Fatalf("Valid(well-formed) = false, want true")
	}
}

func TestCheck_SingleFieldMutations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
		want   error
	}{
		{"missing timestamp", func(m map[string]any) { delete(m, "timestamp") }, ErrTimestamp},
		{"zero timestamp", func(m map[string]any) { m["timestamp"] = float64(0) }, ErrTimestamp},
		{"negative timestamp", func(m map[string]any) { m["timestamp"] = float64(-5) }, ErrTimestamp},
		{"string timestamp", func(m map[string]any) { m["timestamp"] = "1700000000000" }, ErrTimestamp},
		{"empty service", func(m map[string]any) { m["service"] = "" }, ErrService},
		{"numeric service", func(m map[string]any) { m["service"] = 7 }, ErrService},
		{"unknown level", func(m map[string]any) { m["level"] = "debug" }, ErrLevel},
		{"uppercase level", func(m map[string]any) { m["level"] = "ERROR" }, ErrLevel},
		{"missing message", func(m map[string]any) { delete(m, "message") }, ErrMessage},
		{"long message", func(m map[string]any) { m["message"] = strings.Repeat("x", 5001) }, ErrMessage},
		{"string latency", func(m map[string]any) { m["latencyMs"] = "12" }, ErrLatency},
		{"negative latency", func(m map[string]any) { m["latencyMs"] = float64(-1) }, ErrLatency},
		{"empty request id", func(m map[string]any) { m["requestId"] = "" }, ErrRequestID},
		{"missing request id", func(m map[string]any) { delete(m, "requestId") }, ErrRequestID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(c)
			err := Check(c)
			if !errors.Is(err, tt.want) {
				t.Errorf("Check() = %v, want %v", err, tt.want)
			}
			if Valid(c) {
				t.Errorf("Valid() = true after mutation")
			}
		})
	}
}

func TestValid_MessageLengthBoundary(t *testing.T) {
	c := validCandidate()
	c["message"] = strings.Repeat("a", 5000)
	if !Valid(c) {
		t.Errorf("message of 5000 chars rejected")
	}
	c["message"] = strings.Repeat("a", 5001)
	if Valid(c) {
		t.Errorf("message of 5001 chars accepted")
	}
	// Length counts characters, not bytes.
	c["message"] = strings.Repeat("é", 5000)
	if !Valid(c) {
		t.Errorf("message of 5000 multi-byte chars rejected")
	}
}

func TestValid_TimestampBoundary(t *testing.T) {
	c := validCandidate()
	c["timestamp"] = float64(0)
	if Valid(c) {
		t.Errorf("timestamp 0 accepted")
	}
	c["timestamp"] = float64(1)
	if !Valid(c) {
		t.Errorf("timestamp 1 rejected")
	}
}

func TestValid_NonObjects(t *testing.T) {
	for _, c := range []any{nil, "record", 42, []any{validCandidate()}, (*model.LogRecord)(nil)} {
		if Valid(c) {
			t.Errorf("Valid(%#v) = true, want false", c)
		}
	}
}

func TestRecord_DecodedJSON(t *testing.T) {
	payload := `{"timestamp":1700000000123,"service":"api","level":"warn","message":"slow","latencyMs":250,"requestId":"r-9","metadata":{"region":"eu"}}`
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec, ok := Record(m)
	if !ok {
		t.Fatalf("Record() rejected %s", payload)
	}
	want := model.LogRecord{
		Timestamp: 1700000000123,
		Service:   "api",
		Level:     model.LevelWarn,
		Message:   "slow",
		LatencyMs: 250,
		RequestID: "r-9",
		Metadata:  map[string]any{"region": "eu"},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Record() = %+v, want %+v", rec, want)
	}
}

func TestValid_TypedRecord(t *testing.T) {
	rec := model.LogRecord{Timestamp: 1, Service: "s", Level: model.LevelError, Message: "", RequestID: "r"}
	if !Valid(rec) {
		t.Errorf("Valid(typed record) = false, want true")
	}
	rec.Level = "fatal"
	if Valid(&rec) {
		t.Errorf("Valid(typed record with bad level) = true, want false")
	}
}
