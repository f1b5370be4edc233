package linein

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/logwatch/internal/ingest"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	tenants []string
	batches [][]any
}

func (r *recordingSubmitter) Submit(tenant string, raw any) ingest.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, _ := raw.([]any)
	r.tenants = append(r.tenants, tenant)
	r.batches = append(r.batches, items)
	return ingest.Result{Accepted: len(items)}
}

func TestPump_SubmitsUnderEnvelopeTenant(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	p := NewPump(sub)

	p.Handle(Envelope{Source: "tcp", Tenant: "checkout", Records: []any{map[string]any{"a": 1}}})
	p.Handle(Envelope{Source: "stdin", Tenant: "payments", Records: []any{map[string]any{"b": 2}}})

	if len(sub.tenants) != 2 || sub.tenants[0] != "checkout" || sub.tenants[1] != "payments" {
		t.Fatalf("tenants = %v", sub.tenants)
	}
}

func TestPump_MalformedEnvelopeIsRejected(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	res := NewPump(sub).Handle(Envelope{Source: "tcp", Tenant: "default"})
	if res.Rejected != 1 || res.Accepted != 0 {
		t.Fatalf("result = %+v, want 1 rejected", res)
	}
	if len(sub.batches) != 0 {
		t.Fatalf("malformed line reached the service: %+v", sub.batches)
	}
}

func TestPump_RunTotalsUntilClose(t *testing.T) {
	t.Parallel()

	src := newFakeSource("tcp", 3)
	in := NewIntake(context.Background(), []Route{{Source: src, Tenant: "default"}}, 8, nil)
	in.Start()
	src.lines <- Line{Source: "tcp", Text: `{"a":1}`}
	src.lines <- Line{Source: "tcp", Text: `oops`}
	src.lines <- Line{Source: "tcp", Text: `[{"a":1},{"b":2}]`}
	src.Stop()

	done := make(chan ingest.Result, 1)
	go func() { done <- NewPump(&recordingSubmitter{}).Run(context.Background(), in.Envelopes()) }()

	select {
	case res := <-done:
		if res.Accepted != 3 || res.Rejected != 1 {
			t.Fatalf("totals = %+v, want 3 accepted 1 rejected", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the intake closed")
	}
}

func TestPump_RunStopsOnContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		NewPump(&recordingSubmitter{}).Run(ctx, make(chan Envelope))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored context cancellation")
	}
}
