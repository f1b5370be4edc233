package ingest

import (
	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/logstore"
	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/validate"
)

// Pusher stages accepted records for persistence.
type Pusher interface {
	Push(tenant string, record model.LogRecord)
}

// Publisher fans accepted records out to live subscribers.
type Publisher interface {
	Publish(tenant string, records []model.LogRecord)
}

// Result reports how many records of a batch were accepted and rejected.
type Result struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Service validates submitted batches, stages accepted records in the
// buffer and publishes them to live subscribers.
type Service struct {
	buffer    Pusher
	publisher Publisher
	counters  *metrics.Counters
}

// NewService wires the ingestion path. counters may be nil.
func NewService(buffer Pusher, publisher Publisher, counters *metrics.Counters) *Service {
	if counters == nil {
		counters = metrics.NewTestCounters()
	}
	return &Service{buffer: buffer, publisher: publisher, counters: counters}
}

// Submit processes every element of raw. A raw value that is not a
// sequence yields an empty result. Accepted records keep their order.
func (s *Service) Submit(tenant string, raw any) Result {
	items, ok := sequence(raw)
	if !ok {
		return Result{}
	}

	if err := logstore.ValidateTenant(tenant); err != nil {
		log.Warn().Err(err).Int("records", len(items)).Msg("ingest: rejecting batch")
		s.counters.LogsRejected.Add(float64(len(items)), metrics.InvalidTenantLabel())
		return Result{Rejected: len(items)}
	}

	var res Result
	accepted := make([]model.LogRecord, 0, len(items))
	for _, item := range items {
		rec, ok := validate.Record(item)
		if !ok {
			res.Rejected++
			continue
		}
		s.buffer.Push(tenant, rec)
		accepted = append(accepted, rec)
		res.Accepted++
	}

	if len(accepted) > 0 {
		s.publisher.Publish(tenant, accepted)
		s.counters.LogsAccepted.Add(float64(res.Accepted), s.counters.Tenants.Label(tenant))
	}
	if res.Rejected > 0 {
		s.counters.LogsRejected.Add(float64(res.Rejected), s.counters.Tenants.Label(tenant))
	}
	return res
}

func sequence(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	case []model.LogRecord:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	}
	return nil, false
}
