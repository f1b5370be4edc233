// Package broadcast fans newly accepted records out to live subscribers.
// Delivery is best effort: a subscriber whose queue is full misses the
// record and catches up through the query and stats endpoints.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/model"
)

// DefaultQueueSize is the per-subscriber queue length.
const DefaultQueueSize = 256

// Event is one record delivered to a subscriber.
type Event struct {
	Tenant string
	Record model.LogRecord
}

// Subscription is a live feed. Events is closed by Unsubscribe.
type Subscription struct {
	tenant string // empty for all-tenant subscriptions
	ch     chan Event
	once   sync.Once

	dropped atomic.Int64
}

// Events returns the receive side of the subscription queue.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events this subscriber missed.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Hub is the publish/subscribe point between ingestion and live streams.
type Hub struct {
	mu       sync.RWMutex
	byTenant map[string]map[*Subscription]struct{}
	all      map[*Subscription]struct{}

	counters *metrics.Counters
	dropped  atomic.Int64
}

// NewHub creates an empty hub. counters may be nil.
func NewHub(counters *metrics.Counters) *Hub {
	if counters == nil {
		counters = metrics.NewTestCounters()
	}
	return &Hub{
		byTenant: make(map[string]map[*Subscription]struct{}),
		all:      make(map[*Subscription]struct{}),
		counters: counters,
	}
}

// Subscribe registers a feed of tenant's records.
func (h *Hub) Subscribe(tenant string, size int) *Subscription {
	sub := newSubscription(tenant, size)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.byTenant[tenant]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.byTenant[tenant] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// SubscribeAll registers a feed of every tenant's records.
func (h *Hub) SubscribeAll(size int) *Subscription {
	sub := newSubscription("", size)
	h.mu.Lock()
	h.all[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func newSubscription(tenant string, size int) *Subscription {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Subscription{tenant: tenant, ch: make(chan Event, size)}
}

// Unsubscribe removes sub and closes its queue. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if sub.tenant == "" {
		delete(h.all, sub)
	} else if subs, ok := h.byTenant[sub.tenant]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.byTenant, sub.tenant)
		}
	}
	h.mu.Unlock()
	// Closing under no lock is safe: Publish only sends while holding the
	// read lock and sub is no longer reachable from the maps.
	sub.once.Do(func() { close(sub.ch) })
}

// Publish delivers records to tenant and all-tenant subscribers without
// blocking. Records that do not fit a subscriber's queue are dropped.
func (h *Hub) Publish(tenant string, records []model.LogRecord) {
	if len(records) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.byTenant[tenant] {
		h.deliver(sub, tenant, records)
	}
	for sub := range h.all {
		h.deliver(sub, tenant, records)
	}
}

func (h *Hub) deliver(sub *Subscription, tenant string, records []model.LogRecord) {
	for _, rec := range records {
		select {
		case sub.ch <- Event{Tenant: tenant, Record: rec}:
		default:
			sub.dropped.Add(1)
			h.dropped.Add(1)
			h.counters.BroadcastDropped.Inc()
		}
	}
}

// ActiveStreams returns the number of live subscriptions for tenant.
func (h *Hub) ActiveStreams(tenant string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTenant[tenant])
}

// TotalStreams returns every live subscription, all-tenant feeds included.
func (h *Hub) TotalStreams() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.all)
	for _, subs := range h.byTenant {
		n += len(subs)
	}
	return n
}

// Dropped returns how many deliveries were skipped across all subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
