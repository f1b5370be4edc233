package stats

import (
	"sort"
	"time"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// buildTimeline pre-seeds one bucket per step ending with the bucket that
// holds now, so empty slices show as zero. Seeds sharing a label merge into
// the earliest one. Records are counted into the seed covering their
// timestamp; anything before the first seed lands in it, anything after
// the last lands in the last.
func buildTimeline(r Range, now time.Time, loc *time.Location, records []model.LogRecord) []model.TimelineBucket {
	n := int(r.Lookback / r.Bucket)
	if n < 1 {
		n = 1
	}
	last := alignStart(now.In(loc), r.Bucket)

	starts := make([]time.Time, n)
	for i := 0; i < n; i++ {
		starts[i] = stepBack(last, n-1-i, r.Bucket)
	}

	buckets := make([]model.TimelineBucket, 0, n)
	byLabel := make(map[string]int, n)
	seedToBucket := make([]int, n)
	for i, s := range starts {
		label := s.Format(r.Layout)
		idx, ok := byLabel[label]
		if !ok {
			idx = len(buckets)
			byLabel[label] = idx
			buckets = append(buckets, model.TimelineBucket{Label: label, Start: s.UnixMilli()})
		}
		seedToBucket[i] = idx
	}

	startMs := make([]int64, n)
	for i, s := range starts {
		startMs[i] = s.UnixMilli()
	}

	for _, rec := range records {
		// Last seed whose start is <= the record's timestamp.
		seed := sort.Search(n, func(i int) bool { return startMs[i] > rec.Timestamp }) - 1
		if seed < 0 {
			seed = 0
		}
		b := &buckets[seedToBucket[seed]]
		switch rec.Level {
		case model.LevelInfo:
			b.Info++
		case model.LevelWarn:
			b.Warn++
		case model.LevelError:
			b.Error++
		}
	}

	return buckets
}

// alignStart truncates t to the start of its bucket in t's location.
// Day-sized and larger buckets start at local midnight.
func alignStart(t time.Time, size time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if size >= day {
		return midnight
	}
	since := t.Sub(midnight)
	return midnight.Add(since - since%size)
}

func stepBack(t time.Time, steps int, size time.Duration) time.Time {
	if size%day == 0 {
		return t.AddDate(0, 0, -steps*int(size/day))
	}
	return t.Add(-time.Duration(steps) * size)
}
