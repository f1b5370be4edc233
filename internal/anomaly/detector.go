package anomaly

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/model"
)

const (
	// ShortWindowMs is the recent slice the rules evaluate.
	ShortWindowMs int64 = 5000
	// DefaultWindowMs is the baseline slice used for the spike rule.
	DefaultWindowMs int64 = 30000
)

var alertSeq atomic.Uint64

// Config holds optional detector settings.
type Config struct {
	Now     func() time.Time
	Metrics *metrics.Counters
}

// Detector evaluates the spike, error-burst and repetition rules over a
// window of records and persists every alert it raises.
type Detector struct {
	store    model.AlertStore
	now      func() time.Time
	counters *metrics.Counters
}

// NewDetector creates a detector persisting alerts to store.
func NewDetector(store model.AlertStore, conf ...Config) *Detector {
	d := &Detector{store: store, now: time.Now}
	if len(conf) > 0 {
		if conf[0].Now != nil {
			d.now = conf[0].Now
		}
		d.counters = conf[0].Metrics
	}
	if d.counters == nil {
		d.counters = metrics.NewTestCounters()
	}
	return d
}

// windows holds the sub-windows carved out of the input relative to now.
type windows struct {
	all      []model.LogRecord
	short    []model.LogRecord
	long     []model.LogRecord
	windowMs int64
}

// Detect runs every rule over records and returns the alerts raised.
// Sub-windows are measured from the current time, not from the range of
// the input. No alert fires without traffic in the short window.
func (d *Detector) Detect(tenant string, records []model.LogRecord, windowMs int64) []model.Alert {
	if windowMs <= 0 {
		windowMs = DefaultWindowMs
	}
	nowMs := d.now().UnixMilli()

	w := windows{all: records, windowMs: windowMs}
	for _, r := range records {
		if r.Timestamp >= nowMs-windowMs {
			w.long = append(w.long, r)
		}
		if r.Timestamp >= nowMs-ShortWindowMs {
			w.short = append(w.short, r)
		}
	}
	if len(w.short) == 0 {
		return nil
	}

	var alerts []model.Alert
	for _, rule := range []func(windows) (model.Alert, bool){spikeRule, errorBurstRule, repetitionRule} {
		a, ok := rule(w)
		if !ok {
			continue
		}
		a.ID = newAlertID(a.Type, nowMs)
		a.Timestamp = nowMs
		alerts = append(alerts, a)
	}
	if len(alerts) == 0 {
		return nil
	}

	if err := d.store.AppendAlerts(tenant, alerts); err != nil {
		log.Warn().Err(err).Str("tenant", tenant).Int("alerts", len(alerts)).Msg("anomaly: persisting alerts failed")
	}
	for _, a := range alerts {
		d.counters.AlertsRaised.Inc(string(a.Type))
	}
	return alerts
}

// newAlertID derives an ID from the type and evaluation time. The sequence
// and random suffix keep IDs unique within one millisecond.
func newAlertID(t model.AlertType, nowMs int64) string {
	return fmt.Sprintf("%s-%d-%x-%s", t, nowMs, alertSeq.Add(1), uuid.NewString()[:8])
}
