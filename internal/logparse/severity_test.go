package logparse

import (
	"testing"

	"github.com/tinytelemetry/logwatch/internal/model"
)

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Standard forms
		{"TRACE", "TRACE"}, {"DEBUG", "DEBUG"}, {"INFO", "INFO"},
		{"WARN", "WARN"}, {"ERROR", "ERROR"}, {"FATAL", "FATAL"},
		// Variants
		{"TRC", "TRACE"}, {"DBG", "DEBUG"}, {"INFORMATION", "INFO"},
		{"NOTICE", "INFO"}, {"WARNING", "WARN"}, {"WRN", "WARN"},
		{"ERR", "ERROR"}, {"CRITICAL", "FATAL"}, {"PANIC", "FATAL"},
		{"EMERG", "FATAL"},
		// Case insensitive
		{"info", "INFO"}, {"warn", "WARN"}, {"error", "ERROR"},
		// Prefix matching
		{"WARNING_LEVEL", "WARN"}, {"ERROR_CODE_42", "ERROR"}, {"CRITICAL_ALERT", "FATAL"},
		// Unknown defaults to INFO
		{"", "INFO"}, {"UNKNOWN", "INFO"},
		// Whitespace
		{"  INFO  ", "INFO"}, {"\tWARN\t", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeSeverity(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractSeverityFromText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2024-01-01 INFO Starting server", "INFO"},
		{"ERROR: connection refused", "ERROR"},
		{"[WARN] disk usage high", "WARN"},
		{"WARNING deprecated API", "WARN"},
		{"CRITICAL system failure", "FATAL"},
		{"no severity here", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ExtractSeverityFromText(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractSeverityFromText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSeverityNumberToString(t *testing.T) {
	tests := map[int32]string{
		0: "", 1: "TRACE", 5: "DEBUG", 9: "INFO", 12: "INFO",
		13: "WARN", 17: "ERROR", 20: "ERROR", 21: "FATAL", 24: "FATAL",
	}
	for n, want := range tests {
		if got := SeverityNumberToString(n); got != want {
			t.Errorf("SeverityNumberToString(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		number int32
		msg    string
		want   model.Level
	}{
		{"text wins", "warning", 17, "ERROR boom", model.LevelWarn},
		{"number when no text", "", 17, "all good", model.LevelError},
		{"fatal folds to error", "", 21, "", model.LevelError},
		{"debug folds to info", "DEBUG", 0, "", model.LevelInfo},
		{"message fallback", "", 0, "[WARN] disk usage high", model.LevelWarn},
		{"nothing at all", "", 0, "hello", model.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelFor(tt.text, tt.number, tt.msg); got != tt.want {
				t.Errorf("LevelFor(%q, %d, %q) = %q, want %q", tt.text, tt.number, tt.msg, got, tt.want)
			}
		})
	}
}
