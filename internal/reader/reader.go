package reader

import (
	"github.com/tinytelemetry/logwatch/internal/model"
)

// QueryParams are the optional filters of a log search.
// Zero values match everything for that dimension.
type QueryParams struct {
	Search    string      `json:"search,omitempty"`
	Service   string      `json:"service,omitempty"`
	Level     model.Level `json:"level,omitempty"`
	StartTime int64       `json:"startTime,omitempty"`
	EndTime   int64       `json:"endTime,omitempty"`
	Limit     int         `json:"limit,omitempty"`
}

// Reader answers log searches from the append-only store.
type Reader struct {
	store model.LogScanner
}

// New returns a reader over store.
func New(store model.LogScanner) *Reader {
	return &Reader{store: store}
}

// Query returns matching records newest first. A tenant without a log file
// yields an empty slice.
func (r *Reader) Query(tenant string, p QueryParams) ([]model.LogRecord, error) {
	recs, err := r.store.Scan(tenant, model.ScanFilter{
		Search:    p.Search,
		Service:   p.Service,
		Level:     p.Level,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Limit:     p.Limit,
	})
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.LogRecord{}
	}
	return recs, nil
}

// Since returns every record with timestamp >= from, oldest first.
func (r *Reader) Since(tenant string, from int64) ([]model.LogRecord, error) {
	recs, err := r.store.Scan(tenant, model.ScanFilter{StartTime: from})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	if recs == nil {
		recs = []model.LogRecord{}
	}
	return recs, nil
}
