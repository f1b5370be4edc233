package model

import "time"

// Shared defaults used by the server binary and its components.
const (
	DefaultTenant         = "default"
	DefaultFlushThreshold = 100
	DefaultFlushInterval  = 2 * time.Second
	MaxMessageLength      = 5000

	// AlertMergeLimit caps the alert list returned in a snapshot.
	AlertMergeLimit = 15
	// RecentLogsLimit is the number of records returned in recentLogs.
	RecentLogsLimit = 15
)
