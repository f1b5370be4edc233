// Package validate checks candidate log records before they enter the
// ingestion pipeline. It never panics: a missing or mistyped field is
// reported as an error, not raised.
package validate

import (
	"encoding/json"
	"errors"
	"math"
	"unicode/utf8"

	"github.com/tinytelemetry/logwatch/internal/model"
)

var (
	ErrNotObject = errors.New("record must be an object")
	ErrTimestamp = errors.New("timestamp must be a number greater than zero")
	ErrService   = errors.New("service must be a non-empty string")
	ErrLevel     = errors.New("level must be one of info, warn, error")
	ErrMessage   = errors.New("message must be a string of at most 5000 characters")
	ErrLatency   = errors.New("latencyMs must be a non-negative number")
	ErrRequestID = errors.New("requestId must be a non-empty string")
)

// Valid reports whether candidate is an acceptable log record.
func Valid(candidate any) bool {
	return Check(candidate) == nil
}

// Check returns the first validation error for candidate, or nil.
func Check(candidate any) error {
	_, err := parse(candidate)
	return err
}

// Record validates candidate and returns it as a typed LogRecord.
func Record(candidate any) (model.LogRecord, bool) {
	rec, err := parse(candidate)
	return rec, err == nil
}

func parse(candidate any) (model.LogRecord, error) {
	var fields map[string]any
	switch c := candidate.(type) {
	case map[string]any:
		fields = c
	case model.LogRecord:
		return checkRecord(c)
	case *model.LogRecord:
		if c == nil {
			return model.LogRecord{}, ErrNotObject
		}
		return checkRecord(*c)
	default:
		return model.LogRecord{}, ErrNotObject
	}

	var rec model.LogRecord

	ts, ok := number(fields["timestamp"])
	if !ok || ts <= 0 || ts > math.MaxInt64 {
		return rec, ErrTimestamp
	}
	rec.Timestamp = int64(ts)

	svc, ok := fields["service"].(string)
	if !ok {
		return rec, ErrService
	}
	rec.Service = svc

	lvl, ok := fields["level"].(string)
	if !ok {
		return rec, ErrLevel
	}
	rec.Level = model.Level(lvl)

	msg, ok := fields["message"].(string)
	if !ok {
		return rec, ErrMessage
	}
	rec.Message = msg

	lat, ok := number(fields["latencyMs"])
	if !ok {
		return rec, ErrLatency
	}
	rec.LatencyMs = lat

	rid, ok := fields["requestId"].(string)
	if !ok {
		return rec, ErrRequestID
	}
	rec.RequestID = rid

	if meta, ok := fields["metadata"].(map[string]any); ok && len(meta) > 0 {
		rec.Metadata = meta
	}

	return checkRecord(rec)
}

func checkRecord(rec model.LogRecord) (model.LogRecord, error) {
	if rec.Timestamp <= 0 {
		return rec, ErrTimestamp
	}
	if rec.Service == "" {
		return rec, ErrService
	}
	if !rec.Level.Valid() {
		return rec, ErrLevel
	}
	if utf8.RuneCountInString(rec.Message) > model.MaxMessageLength {
		return rec, ErrMessage
	}
	if math.IsNaN(rec.LatencyMs) || math.IsInf(rec.LatencyMs, 0) || rec.LatencyMs < 0 {
		return rec, ErrLatency
	}
	if rec.RequestID == "" {
		return rec, ErrRequestID
	}
	return rec, nil
}

// number converts the numeric shapes produced by JSON decoding and Go callers.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
