package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/anomaly"
	"github.com/tinytelemetry/logwatch/internal/model"
)

const (
	// MetricsWindowMs is the slice used for the live metrics block.
	MetricsWindowMs int64 = 30000
	// CriticalWindowMs bounds which critical alerts count against health.
	CriticalWindowMs int64 = 60000
)

// LogSource returns a tenant's records newer than a point in time,
// oldest first.
type LogSource interface {
	Since(tenant string, from int64) ([]model.LogRecord, error)
}

// AlertDetector raises alerts over a window of records.
type AlertDetector interface {
	Detect(tenant string, records []model.LogRecord, windowMs int64) []model.Alert
}

// BufferStatus reports ingestion buffer state.
type BufferStatus interface {
	Occupancy(tenant string) float64
	DroppedEvents() int64
}

// StreamCounter reports live stream subscribers per tenant.
type StreamCounter interface {
	ActiveStreams(tenant string) int
}

// Config holds optional aggregator settings.
type Config struct {
	Now      func() time.Time
	Location *time.Location // timeline label zone, defaults to time.Local
}

// Aggregator computes dashboard snapshots on demand. Nothing is cached.
type Aggregator struct {
	logs     LogSource
	detector AlertDetector
	alerts   model.AlertStore
	buffer   BufferStatus
	streams  StreamCounter
	now      func() time.Time
	loc      *time.Location
}

// New creates an aggregator. buffer and streams may be nil.
func New(logs LogSource, detector AlertDetector, alerts model.AlertStore, buffer BufferStatus, streams StreamCounter, conf ...Config) *Aggregator {
	a := &Aggregator{
		logs:     logs,
		detector: detector,
		alerts:   alerts,
		buffer:   buffer,
		streams:  streams,
		now:      time.Now,
		loc:      time.Local,
	}
	if len(conf) > 0 {
		if conf[0].Now != nil {
			a.now = conf[0].Now
		}
		if conf[0].Location != nil {
			a.loc = conf[0].Location
		}
	}
	return a
}

// GetStats builds a snapshot of tenant's logs over the named range. It never
// fails: any error or panic yields the default snapshot.
func (a *Aggregator) GetStats(rangeKey, tenant string) (snap model.StatsSnapshot) {
	r, _ := LookupRange(rangeKey)
	now := a.now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tenant", tenant).Str("range", r.Key).
				Str("panic", fmt.Sprint(rec)).Msg("stats aggregation panicked")
			snap = a.defaultSnapshot(r, now, tenant)
		}
	}()

	s, err := a.compute(r, now, tenant)
	if err != nil {
		log.Warn().Err(err).Str("tenant", tenant).Str("range", r.Key).Msg("stats aggregation failed")
		return a.defaultSnapshot(r, now, tenant)
	}
	return s
}

func (a *Aggregator) compute(r Range, now time.Time, tenant string) (model.StatsSnapshot, error) {
	nowMs := now.UnixMilli()

	ranged, err := a.logs.Since(tenant, nowMs-r.Lookback.Milliseconds())
	if err != nil {
		return model.StatsSnapshot{}, fmt.Errorf("read logs: %w", err)
	}
	sort.SliceStable(ranged, func(i, j int) bool { return ranged[i].Timestamp < ranged[j].Timestamp })

	m := windowMetrics(ranged, nowMs-MetricsWindowMs)

	started := time.Now()
	fresh := a.detector.Detect(tenant, ranged, anomaly.DefaultWindowMs)
	detectionMs := float64(time.Since(started).Microseconds()) / 1000

	alerts := a.mergeAlerts(tenant, fresh)

	critical := 0
	for _, al := range alerts {
		if al.Severity == model.SeverityCritical && al.Timestamp >= nowMs-CriticalWindowMs {
			critical++
		}
	}
	m.HealthScore = HealthScore(m.ErrorRate, critical)

	dist := emptyDistribution()
	for _, rec := range ranged {
		dist[rec.Level]++
	}

	n := min(model.RecentLogsLimit, len(ranged))
	recent := make([]model.LogRecord, 0, n)
	for i := len(ranged) - 1; i >= len(ranged)-n; i-- {
		recent = append(recent, ranged[i])
	}

	sys := a.systemInfo(tenant)
	sys.DetectionLatencyMs = detectionMs
	sys.Status = StatusFor(m.HealthScore)

	return model.StatsSnapshot{
		Distribution: dist,
		Timeline:     buildTimeline(r, now, a.loc, ranged),
		Total:        len(ranged),
		RecentLogs:   recent,
		Metrics:      m,
		System:       sys,
		Alerts:       alerts,
	}, nil
}

// mergeAlerts puts fresh alerts ahead of the most recent persisted ones,
// dropping persisted copies of fresh IDs.
func (a *Aggregator) mergeAlerts(tenant string, fresh []model.Alert) []model.Alert {
	var persisted []model.Alert
	if a.alerts != nil {
		var err error
		persisted, err = a.alerts.RecentAlerts(tenant, model.AlertMergeLimit)
		if err != nil {
			log.Warn().Err(err).Str("tenant", tenant).Msg("reading persisted alerts")
		}
	}

	out := make([]model.Alert, 0, model.AlertMergeLimit)
	seen := make(map[string]struct{}, len(fresh)+len(persisted))
	for _, list := range [][]model.Alert{fresh, persisted} {
		for _, al := range list {
			if len(out) == model.AlertMergeLimit {
				return out
			}
			if _, dup := seen[al.ID]; dup {
				continue
			}
			seen[al.ID] = struct{}{}
			out = append(out, al)
		}
	}
	return out
}

func (a *Aggregator) systemInfo(tenant string) model.SystemInfo {
	var sys model.SystemInfo
	if a.buffer != nil {
		sys.BufferOccupancy = a.buffer.Occupancy(tenant)
		sys.DroppedEvents = a.buffer.DroppedEvents()
	}
	if a.streams != nil {
		sys.ActiveStreams = a.streams.ActiveStreams(tenant)
	}
	return sys
}

func (a *Aggregator) defaultSnapshot(r Range, now time.Time, tenant string) model.StatsSnapshot {
	sys := a.systemInfo(tenant)
	sys.Status = model.StatusDegraded
	return model.StatsSnapshot{
		Distribution: emptyDistribution(),
		Timeline:     buildTimeline(r, now, a.loc, nil),
		RecentLogs:   []model.LogRecord{},
		System:       sys,
		Alerts:       []model.Alert{},
	}
}

func windowMetrics(records []model.LogRecord, from int64) model.Metrics {
	var n, errs int
	var latency float64
	for _, rec := range records {
		if rec.Timestamp < from {
			continue
		}
		n++
		latency += rec.LatencyMs
		if rec.Level == model.LevelError {
			errs++
		}
	}
	m := model.Metrics{LogsPerSecond: float64(n) / float64(MetricsWindowMs/1000)}
	if n > 0 {
		m.ErrorRate = float64(errs) / float64(n)
		m.AvgLatencyMs = latency / float64(n)
	}
	return m
}

func emptyDistribution() map[model.Level]int {
	dist := make(map[model.Level]int, len(model.Levels))
	for _, l := range model.Levels {
		dist[l] = 0
	}
	return dist
}

// HealthScore combines the error rate and the number of recent critical
// alerts into a 0-100 score. Each term costs at most 40 points.
func HealthScore(errorRate float64, criticalAlerts int) int {
	score := 100 - math.Min(40, errorRate*100) - math.Min(40, float64(15*criticalAlerts))
	return int(math.Round(math.Max(0, score)))
}

// StatusFor maps a health score to a system status.
func StatusFor(health int) model.SystemStatus {
	switch {
	case health >= 80:
		return model.StatusOperational
	case health >= 50:
		return model.StatusDegraded
	default:
		return model.StatusCritical
	}
}
