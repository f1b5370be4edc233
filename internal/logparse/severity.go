package logparse

import (
	"regexp"
	"strings"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// SeverityRegex matches common severity words in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL|PANIC)\b`)

// NormalizeSeverity converts the many spellings of a severity to one of
// TRACE, DEBUG, INFO, WARN, ERROR or FATAL. Unknown input is INFO.
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC":
		return "TRACE"
	case "DEBUG", "DEBU", "DBG", "DEB":
		return "DEBUG"
	case "INFO", "INFORMATION", "INF", "NOTICE":
		return "INFO"
	case "WARN", "WARNING", "WRNG", "WRN":
		return "WARN"
	case "ERROR", "ERR", "ERRO":
		return "ERROR"
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC", "EMERG", "ALERT":
		return "FATAL"
	}
	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "INFO":
			return "INFO"
		case "WARN":
			return "WARN"
		case "ERRO":
			return "ERROR"
		case "DEBU":
			return "DEBUG"
		case "TRAC":
			return "TRACE"
		case "FATA", "CRIT":
			return "FATAL"
		}
	}
	return "INFO"
}

// ToLevel folds a normalized severity into a record level. Everything below
// WARN is info and everything above it is error.
func ToLevel(normalized string) model.Level {
	switch normalized {
	case "WARN":
		return model.LevelWarn
	case "ERROR", "FATAL":
		return model.LevelError
	default:
		return model.LevelInfo
	}
}

// ExtractSeverityFromText finds a severity word in a message.
func ExtractSeverityFromText(message string) string {
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		return NormalizeSeverity(matches[1])
	}
	return "INFO"
}

// SeverityNumberToString maps an OpenTelemetry SeverityNumber (1-24) to a
// normalized severity. Zero means unspecified and returns "".
func SeverityNumberToString(n int32) string {
	switch {
	case n <= 0:
		return ""
	case n <= 4:
		return "TRACE"
	case n <= 8:
		return "DEBUG"
	case n <= 12:
		return "INFO"
	case n <= 16:
		return "WARN"
	case n <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// LevelFor picks a level from an explicit severity text, then a numeric
// severity, then whatever the message itself says.
func LevelFor(severityText string, severityNumber int32, message string) model.Level {
	if strings.TrimSpace(severityText) != "" {
		return ToLevel(NormalizeSeverity(severityText))
	}
	if s := SeverityNumberToString(severityNumber); s != "" {
		return ToLevel(s)
	}
	return ToLevel(ExtractSeverityFromText(message))
}
