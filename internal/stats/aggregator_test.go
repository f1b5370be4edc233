package stats

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tinytelemetry/logwatch/internal/anomaly"
	"github.com/tinytelemetry/logwatch/internal/logstore"
	mocks "github.com/tinytelemetry/logwatch/internal/mocks"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/ndjson"
	"github.com/tinytelemetry/logwatch/internal/reader"
)

var fixedNow = time.Date(2024, 3, 15, 12, 30, 45, 0, time.UTC)

func clock() time.Time { return fixedNow }

func conf() Config { return Config{Now: clock, Location: time.UTC} }

type fakeSource struct {
	records []model.LogRecord
	err     error
}

func (f *fakeSource) Since(_ string, from int64) ([]model.LogRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.LogRecord{}
	for _, r := range f.records {
		if r.Timestamp >= from {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeDetector struct {
	alerts []model.Alert
	panics bool
}

func (f *fakeDetector) Detect(string, []model.LogRecord, int64) []model.Alert {
	if f.panics {
		panic("boom")
	}
	return f.alerts
}

type fakeBuffer struct{}

func (fakeBuffer) Occupancy(string) float64 { return 42 }
func (fakeBuffer) DroppedEvents() int64     { return 7 }

type fakeStreams struct{ n int }

func (f fakeStreams) ActiveStreams(string) int { return f.n }

func rec(ageMs int64, lvl model.Level, msg string) model.LogRecord {
	return model.LogRecord{
		Timestamp: fixedNow.UnixMilli() - ageMs,
		Service:   "api",
		Level:     lvl,
		Message:   msg,
		LatencyMs: 10,
		RequestID: "req",
	}
}

func newRealStack(t *testing.T) (*logstore.Store, *anomaly.AlertLog, *Aggregator) {
	t.Helper()
	dir, err := ndjson.Open(t.TempDir())
	require.NoError(t, err)
	store := logstore.New(dir)
	alerts := anomaly.NewAlertLog(dir)
	det := anomaly.NewDetector(alerts, anomaly.Config{Now: clock})
	agg := New(reader.New(store), det, alerts, fakeBuffer{}, fakeStreams{n: 1}, conf())
	return store, alerts, agg
}

func TestGetStats_EmptyHourHasSixtyZeroBuckets(t *testing.T) {
	_, _, agg := newRealStack(t)

	snap := agg.GetStats("1h", "default")

	require.Len(t, snap.Timeline, 60)
	for i, b := range snap.Timeline {
		assert.Zero(t, b.Info+b.Warn+b.Error, "bucket %d", i)
		if i > 0 {
			assert.Equal(t, int64(60000), b.Start-snap.Timeline[i-1].Start)
		}
	}
	assert.Equal(t, "11:31", snap.Timeline[0].Label)
	assert.Equal(t, "12:30", snap.Timeline[59].Label)

	assert.Zero(t, snap.Total)
	assert.NotNil(t, snap.RecentLogs)
	assert.Empty(t, snap.RecentLogs)
	assert.NotNil(t, snap.Alerts)
	assert.Equal(t, map[model.Level]int{model.LevelInfo: 0, model.LevelWarn: 0, model.LevelError: 0}, snap.Distribution)
	assert.Equal(t, 100, snap.Metrics.HealthScore)
	assert.Equal(t, model.StatusOperational, snap.System.Status)
	assert.Equal(t, 42.0, snap.System.BufferOccupancy)
	assert.Equal(t, int64(7), snap.System.DroppedEvents)
	assert.Equal(t, 1, snap.System.ActiveStreams)
}

func TestGetStats_BucketCountPerRange(t *testing.T) {
	agg := New(&fakeSource{}, &fakeDetector{}, nil, nil, nil, conf())

	tests := []struct {
		rangeKey string
		buckets  int
		first    string
		last     string
	}{
		{"1m", 60, "12:29:46", "12:30:45"},
		{"1h", 60, "11:31", "12:30"},
		{"1d", 24, "13:00", "12:00"},
		{"1w", 8, "3/8", "3/15"},
		{"1M", 30, "2/15", "3/15"},
		{"1y", 12, "April", "March"},
		{"bogus", 60, "11:31", "12:30"},
	}
	for _, tt := range tests {
		t.Run(tt.rangeKey, func(t *testing.T) {
			tl := agg.GetStats(tt.rangeKey, "default").Timeline
			require.Len(t, tl, tt.buckets)
			assert.Equal(t, tt.first, tl[0].Label)
			assert.Equal(t, tt.last, tl[len(tl)-1].Label)
			for i := 1; i < len(tl); i++ {
				assert.Less(t, tl[i-1].Start, tl[i].Start)
			}
		})
	}
}

func TestBuildTimeline_FoldsOutOfRangeRecords(t *testing.T) {
	r, _ := LookupRange("1h")
	records := []model.LogRecord{
		rec(3_595_000, model.LevelInfo, "before first bucket"),
		rec(5_000, model.LevelError, "current minute"),
		rec(-120_000, model.LevelWarn, "clock skew"),
	}

	tl := buildTimeline(r, fixedNow, time.UTC, records)

	require.Len(t, tl, 60)
	assert.Equal(t, 1, tl[0].Info)
	assert.Equal(t, 1, tl[59].Error)
	assert.Equal(t, 1, tl[59].Warn)
}

func TestBuildTimeline_MergesRepeatedLabels(t *testing.T) {
	r, _ := LookupRange("1w")
	records := []model.LogRecord{
		rec(0, model.LevelInfo, "12:30 today"),
		rec(int64(10*time.Hour/time.Millisecond), model.LevelWarn, "02:30 today"),
	}

	tl := buildTimeline(r, fixedNow, time.UTC, records)

	last := tl[len(tl)-1]
	assert.Equal(t, "3/15", last.Label)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).UnixMilli(), last.Start)
	assert.Equal(t, 1, last.Info)
	assert.Equal(t, 1, last.Warn)
}

func TestGetStats_HealthSixtyFromErrorRate(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAlertStore(ctrl)
	store.EXPECT().RecentAlerts("default", model.AlertMergeLimit).Return(nil, nil)

	var records []model.LogRecord
	for i := 0; i < 10; i++ {
		lvl := model.LevelInfo
		if i%2 == 0 {
			lvl = model.LevelError
		}
		records = append(records, rec(10_000, lvl, fmt.Sprintf("m%d", i)))
	}
	det := anomaly.NewDetector(store, anomaly.Config{Now: clock})
	agg := New(&fakeSource{records: records}, det, store, nil, nil, conf())

	snap := agg.GetStats("1h", "default")

	assert.InDelta(t, 0.5, snap.Metrics.ErrorRate, 1e-9)
	assert.Equal(t, 60, snap.Metrics.HealthScore)
	assert.Equal(t, model.StatusDegraded, snap.System.Status)
	assert.Empty(t, snap.Alerts)
}

func TestGetStats_HealthFiftyWithCriticalAlerts(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAlertStore(ctrl)

	var persisted []model.Alert
	for i := 0; i < 3; i++ {
		persisted = append(persisted, model.Alert{
			ID:        fmt.Sprintf("crit-%d", i),
			Type:      model.AlertErrorBurst,
			Severity:  model.SeverityCritical,
			Timestamp: fixedNow.UnixMilli() - 10_000,
		})
	}
	persisted = append(persisted, model.Alert{
		ID:        "old",
		Severity:  model.SeverityCritical,
		Timestamp: fixedNow.UnixMilli() - 120_000,
	})
	store.EXPECT().RecentAlerts("default", model.AlertMergeLimit).Return(persisted, nil)

	var records []model.LogRecord
	for i := 0; i < 10; i++ {
		lvl := model.LevelInfo
		if i == 0 {
			lvl = model.LevelError
		}
		records = append(records, rec(10_000, lvl, fmt.Sprintf("m%d", i)))
	}
	agg := New(&fakeSource{records: records}, &fakeDetector{}, store, nil, nil, conf())

	snap := agg.GetStats("1h", "default")

	assert.Equal(t, 50, snap.Metrics.HealthScore)
	assert.Equal(t, model.StatusDegraded, snap.System.Status)
	assert.Len(t, snap.Alerts, 4)
}

func TestGetStats_MergesFreshAheadOfPersisted(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAlertStore(ctrl)

	persisted := []model.Alert{{ID: "a", Message: "stale"}}
	for i := 0; i < 20; i++ {
		persisted = append(persisted, model.Alert{ID: fmt.Sprintf("p%d", i)})
	}
	store.EXPECT().RecentAlerts("default", model.AlertMergeLimit).Return(persisted, nil)

	det := &fakeDetector{alerts: []model.Alert{{ID: "a", Message: "fresh"}, {ID: "b"}}}
	agg := New(&fakeSource{}, det, store, nil, nil, conf())

	alerts := agg.GetStats("1h", "default").Alerts

	require.Len(t, alerts, model.AlertMergeLimit)
	assert.Equal(t, "fresh", alerts[0].Message)
	assert.Equal(t, "b", alerts[1].ID)
	assert.Equal(t, "p0", alerts[2].ID)
	seen := map[string]bool{}
	for _, a := range alerts {
		assert.False(t, seen[a.ID], "duplicate %s", a.ID)
		seen[a.ID] = true
	}
}

func TestGetStats_PersistedAlertReadFailureKeepsFresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAlertStore(ctrl)
	store.EXPECT().RecentAlerts(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk"))

	det := &fakeDetector{alerts: []model.Alert{{ID: "x"}}}
	agg := New(&fakeSource{}, det, store, nil, nil, conf())

	snap := agg.GetStats("1h", "default")

	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, model.StatusOperational, snap.System.Status)
}

func TestGetStats_MetricsAndRecentLogs(t *testing.T) {
	var records []model.LogRecord
	for i := 19; i >= 0; i-- {
		records = append(records, rec(int64(i)*1000, model.LevelInfo, fmt.Sprintf("m%02d", i)))
	}
	records = append(records, rec(50_000, model.LevelWarn, "outside metrics window"))

	agg := New(&fakeSource{records: records}, &fakeDetector{}, nil, nil, nil, conf())
	snap := agg.GetStats("1h", "default")

	assert.Equal(t, 21, snap.Total)
	assert.InDelta(t, 20.0/30.0, snap.Metrics.LogsPerSecond, 1e-9)
	assert.InDelta(t, 10.0, snap.Metrics.AvgLatencyMs, 1e-9)
	assert.Equal(t, 20, snap.Distribution[model.LevelInfo])
	assert.Equal(t, 1, snap.Distribution[model.LevelWarn])
	assert.Equal(t, 0, snap.Distribution[model.LevelError])

	require.Len(t, snap.RecentLogs, model.RecentLogsLimit)
	assert.Equal(t, "m00", snap.RecentLogs[0].Message)
	assert.Equal(t, "m14", snap.RecentLogs[14].Message)

	sum := 0
	for _, b := range snap.Timeline {
		sum += b.Info + b.Warn + b.Error
	}
	assert.Equal(t, snap.Total, sum)
}

func TestGetStats_ReadErrorReturnsDefault(t *testing.T) {
	agg := New(&fakeSource{err: errors.New("io")}, &fakeDetector{}, nil, fakeBuffer{}, fakeStreams{n: 2}, conf())

	snap := agg.GetStats("1h", "default")

	assert.Equal(t, model.StatusDegraded, snap.System.Status)
	assert.Equal(t, 2, snap.System.ActiveStreams)
	assert.Len(t, snap.Timeline, 60)
	assert.Empty(t, snap.Alerts)
	assert.NotNil(t, snap.Alerts)
	assert.Zero(t, snap.Metrics)
}

func TestGetStats_PanicReturnsDefault(t *testing.T) {
	src := &fakeSource{records: []model.LogRecord{rec(1000, model.LevelInfo, "x")}}
	agg := New(src, &fakeDetector{panics: true}, nil, nil, nil, conf())

	snap := agg.GetStats("1d", "default")

	assert.Equal(t, model.StatusDegraded, snap.System.Status)
	assert.Len(t, snap.Timeline, 24)
	assert.Zero(t, snap.Total)
}

func TestGetStats_RaisesAndPersistsAlerts(t *testing.T) {
	store, alerts, agg := newRealStack(t)

	var records []model.LogRecord
	for i := 0; i < 25; i++ {
		records = append(records, rec(1000, model.LevelInfo, "cache miss"))
	}
	require.NoError(t, store.AppendBatch("acme", records))

	snap := agg.GetStats("1h", "acme")

	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, model.AlertRepetition, snap.Alerts[0].Type)
	assert.Equal(t, 25, snap.Total)

	persisted, err := alerts.RecentAlerts("acme", 15)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, snap.Alerts[0].ID, persisted[0].ID)

	other := agg.GetStats("1h", "other")
	assert.Empty(t, other.Alerts)
}

func TestHealthScore(t *testing.T) {
	tests := []struct {
		errRate  float64
		critical int
		want     int
	}{
		{0, 0, 100},
		{0.5, 0, 60},
		{0.1, 3, 50},
		{1, 10, 20},
		{0.123, 1, 73},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HealthScore(tt.errRate, tt.critical), "%v/%d", tt.errRate, tt.critical)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, model.StatusOperational, StatusFor(80))
	assert.Equal(t, model.StatusDegraded, StatusFor(79))
	assert.Equal(t, model.StatusDegraded, StatusFor(50))
	assert.Equal(t, model.StatusCritical, StatusFor(49))
}
