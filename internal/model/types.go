package model

// Level is the severity of a LogRecord.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Levels lists the accepted record levels in display order.
var Levels = []Level{LevelInfo, LevelWarn, LevelError}

// Valid reports whether l is one of the accepted levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// LogRecord represents a single observed event.
// It is the canonical type for storage, broadcast, and the read APIs.
type LogRecord struct {
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
	Service   string  `json:"service"`
	Level     Level   `json:"level"`
	Message   string  `json:"message"`
	LatencyMs float64 `json:"latencyMs"`
	RequestID string  `json:"requestId"`

	// Metadata is the optional free-form object submitted with the record.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AlertType identifies the rule that raised an Alert.
type AlertType string

const (
	AlertSpike      AlertType = "spike"
	AlertErrorBurst AlertType = "error_burst"
	AlertRepetition AlertType = "repetition"
	AlertLatency    AlertType = "latency"
)

// Severity of an Alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// AlertMetadata carries the observations behind an alert.
type AlertMetadata struct {
	ObservedRate        float64 `json:"observedRate,omitempty"`
	BaselineRate        float64 `json:"baselineRate,omitempty"`
	Threshold           string  `json:"threshold,omitempty"`
	Rationale           string  `json:"rationale,omitempty"`
	ContributingService string  `json:"contributingService,omitempty"`
	RepeatCount         int     `json:"repeatCount,omitempty"`
	RawMessage          string  `json:"rawMessage,omitempty"`
}

// Alert is a detected anomaly. Alerts are append-only facts.
type Alert struct {
	ID         string        `json:"id"`
	Type       AlertType     `json:"type"`
	Severity   Severity      `json:"severity"`
	Service    string        `json:"service"`
	Message    string        `json:"message"`
	Timestamp  int64         `json:"timestamp"` // epoch milliseconds
	Confidence int           `json:"confidence"`
	Metadata   AlertMetadata `json:"metadata"`
}

// TimelineBucket holds per-level counts for one histogram slice.
type TimelineBucket struct {
	Label string `json:"label"`
	Info  int    `json:"info"`
	Warn  int    `json:"warn"`
	Error int    `json:"error"`
	Start int64  `json:"start"` // epoch milliseconds
}

// Metrics are the headline numbers of a StatsSnapshot.
type Metrics struct {
	LogsPerSecond float64 `json:"logsPerSecond"`
	ErrorRate     float64 `json:"errorRate"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	HealthScore   int     `json:"healthScore"`
}

// SystemStatus is the overall status reported in a snapshot.
type SystemStatus string

const (
	StatusOperational SystemStatus = "operational"
	StatusDegraded    SystemStatus = "degraded"
	StatusCritical    SystemStatus = "critical"
)

// SystemInfo describes the pipeline itself rather than the tenant's logs.
type SystemInfo struct {
	BufferOccupancy    float64      `json:"bufferOccupancy"` // percent of flush threshold
	DetectionLatencyMs float64      `json:"detectionLatencyMs"`
	ActiveStreams      int          `json:"activeStreams"`
	DroppedEvents      int64        `json:"droppedEvents"`
	Status             SystemStatus `json:"status"`
}

// StatsSnapshot is a computed, never-cached view over one tenant's logs.
type StatsSnapshot struct {
	Distribution map[Level]int    `json:"distribution"`
	Timeline     []TimelineBucket `json:"timeline"`
	Total        int              `json:"total"`
	RecentLogs   []LogRecord      `json:"recentLogs"`
	Metrics      Metrics          `json:"metrics"`
	System       SystemInfo       `json:"system"`
	Alerts       []Alert          `json:"alerts"`
}
