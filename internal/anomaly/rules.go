package anomaly

import (
	"fmt"
	"math"

	"github.com/tinytelemetry/logwatch/internal/model"
)

const (
	spikeFactor         = 2.0
	spikeMinBaseline    = 1.0
	errorBurstRate      = 0.30
	errorBurstMinCount  = 5
	repetitionThreshold = 20
)

// spikeRule fires when the short-window rate exceeds twice the baseline
// rate, provided the baseline carries more than one log per second.
func spikeRule(w windows) (model.Alert, bool) {
	current := float64(len(w.short)) / (float64(ShortWindowMs) / 1000)
	average := float64(len(w.long)) / (float64(w.windowMs) / 1000)
	if !(current > spikeFactor*average && average > spikeMinBaseline) {
		return model.Alert{}, false
	}

	svc := mostFrequentService(w.short, nil)
	confidence := min(98, int(math.Floor(current/(average*spikeFactor)*70+20)))
	return model.Alert{
		Type:       model.AlertSpike,
		Severity:   model.SeverityCritical,
		Service:    svc,
		Message:    fmt.Sprintf("Traffic spike: %.1f logs/s against a %.1f logs/s baseline", current, average),
		Confidence: confidence,
		Metadata: model.AlertMetadata{
			ObservedRate:        current,
			BaselineRate:        average,
			Threshold:           "2.0x",
			Rationale:           fmt.Sprintf("last 5s rate is %.2fx the %ds average", current/average, w.windowMs/1000),
			ContributingService: svc,
		},
	}, true
}

// errorBurstRule fires when errors exceed 30% of a short window holding
// more than five logs.
func errorBurstRule(w windows) (model.Alert, bool) {
	errs := 0
	for _, r := range w.short {
		if r.Level == model.LevelError {
			errs++
		}
	}
	rate := float64(errs) / float64(len(w.short))
	if !(rate > errorBurstRate && len(w.short) > errorBurstMinCount) {
		return model.Alert{}, false
	}

	svc := mostFrequentService(w.short, func(r model.LogRecord) bool { return r.Level == model.LevelError })
	confidence := min(99, int(math.Floor(rate/errorBurstRate*60+40)))
	return model.Alert{
		Type:       model.AlertErrorBurst,
		Severity:   model.SeverityCritical,
		Service:    svc,
		Message:    fmt.Sprintf("Error burst: %.1f%% of the last %d logs are errors", rate*100, len(w.short)),
		Confidence: confidence,
		Metadata: model.AlertMetadata{
			ObservedRate:        rate,
			Threshold:           "30.0%",
			Rationale:           fmt.Sprintf("%d of %d logs in the last 5s are errors", errs, len(w.short)),
			ContributingService: svc,
			RepeatCount:         errs,
		},
	}, true
}

// repetitionRule fires once for the first message, in order of first
// appearance, repeated more than 20 times in the short window.
func repetitionRule(w windows) (model.Alert, bool) {
	counts := make(map[string]int)
	var order []string
	for _, r := range w.short {
		if _, seen := counts[r.Message]; !seen {
			order = append(order, r.Message)
		}
		counts[r.Message]++
	}

	for _, msg := range order {
		n := counts[msg]
		if n <= repetitionThreshold {
			continue
		}
		svc := "unknown"
		for _, r := range w.all {
			if r.Message == msg {
				svc = r.Service
				break
			}
		}
		return model.Alert{
			Type:       model.AlertRepetition,
			Severity:   model.SeverityWarn,
			Service:    svc,
			Message:    fmt.Sprintf("Message repeated %d times in 5s: %s", n, truncate(msg, 120)),
			Confidence: 95,
			Metadata: model.AlertMetadata{
				Threshold:           "20 events/5s",
				Rationale:           "identical message text repeated above threshold",
				ContributingService: svc,
				RepeatCount:         n,
				RawMessage:          msg,
			},
		}, true
	}
	return model.Alert{}, false
}

// mostFrequentService returns the service with the most records accepted
// by keep (all records when keep is nil). Ties go to the service seen first.
func mostFrequentService(records []model.LogRecord, keep func(model.LogRecord) bool) string {
	counts := make(map[string]int)
	best, bestN := "unknown", 0
	for _, r := range records {
		if keep != nil && !keep(r) {
			continue
		}
		counts[r.Service]++
		if n := counts[r.Service]; n > bestN {
			best, bestN = r.Service, n
		}
	}
	return best
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
