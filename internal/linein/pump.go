package linein

import (
	"context"

	"github.com/tinytelemetry/logwatch/internal/ingest"
)

// Submitter is the ingestion service as seen by the line pump.
type Submitter interface {
	Submit(tenant string, raw any) ingest.Result
}

// Pump submits decoded envelopes to the ingestion service under the tenant
// each one carries.
type Pump struct {
	svc Submitter
}

func NewPump(svc Submitter) *Pump {
	return &Pump{svc: svc}
}

// Run submits envelopes until the channel closes or ctx is done, and
// returns the totals.
func (p *Pump) Run(ctx context.Context, envs <-chan Envelope) ingest.Result {
	var total ingest.Result
	for {
		select {
		case <-ctx.Done():
			return total
		case env, ok := <-envs:
			if !ok {
				return total
			}
			res := p.Handle(env)
			total.Accepted += res.Accepted
			total.Rejected += res.Rejected
		}
	}
}

// Handle submits one envelope. A malformed line counts as one rejected
// record.
func (p *Pump) Handle(env Envelope) ingest.Result {
	if env.Malformed() {
		return ingest.Result{Rejected: 1}
	}
	return p.svc.Submit(env.Tenant, env.Records)
}
