package anomaly

import (
	"encoding/json"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/logstore"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/ndjson"
)

// AlertsFile is the per-tenant file holding raised alerts.
const AlertsFile = "alerts.ndjson"

// AlertLog is the append-only alert store, one file per tenant.
type AlertLog struct {
	dir *ndjson.Dir
}

// NewAlertLog stores alerts beside the tenants' log files in dir.
func NewAlertLog(dir *ndjson.Dir) *AlertLog {
	return &AlertLog{dir: dir}
}

// AlertFile returns the relative path of a tenant's alert file.
func AlertFile(tenant string) string {
	return path.Join(tenant, AlertsFile)
}

// FilePath returns the on-disk location of a tenant's alert file.
func (l *AlertLog) FilePath(tenant string) (string, error) {
	if err := logstore.ValidateTenant(tenant); err != nil {
		return "", err
	}
	return l.dir.Path(AlertFile(tenant)), nil
}

// AppendAlerts persists alerts in a single write.
func (l *AlertLog) AppendAlerts(tenant string, alerts []model.Alert) error {
	if err := logstore.ValidateTenant(tenant); err != nil {
		return err
	}
	return ndjson.Append(l.dir, AlertFile(tenant), alerts)
}

// RecentAlerts returns up to n of the most recently persisted alerts,
// newest first.
func (l *AlertLog) RecentAlerts(tenant string, n int) ([]model.Alert, error) {
	if err := logstore.ValidateTenant(tenant); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []model.Alert{}, nil
	}
	lines, err := l.dir.ReadLines(AlertFile(tenant))
	if err != nil {
		return nil, err
	}

	out := make([]model.Alert, 0, min(n, len(lines)))
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		var a model.Alert
		if err := json.Unmarshal(lines[i], &a); err != nil {
			log.Warn().Err(err).Str("tenant", tenant).Msg("anomaly: skipping malformed alert line")
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
