package stats

import "time"

const day = 24 * time.Hour

// Range is a supported dashboard time range.
type Range struct {
	Key      string
	Lookback time.Duration
	Bucket   time.Duration
	Layout   string // time.Format layout of bucket labels
}

// DefaultRange is used for unknown range keys.
const DefaultRange = "1h"

var ranges = map[string]Range{
	"1m": {Key: "1m", Lookback: time.Minute, Bucket: time.Second, Layout: "15:04:05"},
	"1h": {Key: "1h", Lookback: time.Hour, Bucket: time.Minute, Layout: "15:04"},
	"1d": {Key: "1d", Lookback: day, Bucket: time.Hour, Layout: "15:00"},
	"1w": {Key: "1w", Lookback: 7 * day, Bucket: 6 * time.Hour, Layout: "1/2"},
	"1M": {Key: "1M", Lookback: 30 * day, Bucket: day, Layout: "1/2"},
	"1y": {Key: "1y", Lookback: 365 * day, Bucket: 30 * day, Layout: "January"},
}

// LookupRange returns the range for key, falling back to DefaultRange.
func LookupRange(key string) (Range, bool) {
	r, ok := ranges[key]
	if !ok {
		return ranges[DefaultRange], false
	}
	return r, true
}
