package model

// ScanFilter narrows a newest-first scan of a tenant's log file.
// Zero values disable the corresponding filter.
type ScanFilter struct {
	Search    string
	Service   string
	Level     Level
	StartTime int64 // inclusive, epoch ms
	EndTime   int64 // inclusive, epoch ms
	Limit     int   // <= 0 means no limit
}

// LogWriter provides append-oriented write operations for accepted logs.
type LogWriter interface {
	AppendBatch(tenant string, records []LogRecord) error
}

// LogScanner provides the full-scan read contract over persisted logs.
type LogScanner interface {
	Scan(tenant string, filter ScanFilter) ([]LogRecord, error)
}

// AlertStore persists raised alerts and returns the most recent ones.
type AlertStore interface {
	AppendAlerts(tenant string, alerts []Alert) error
	RecentAlerts(tenant string, n int) ([]Alert, error)
}
