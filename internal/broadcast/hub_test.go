package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/logwatch/internal/model"
)

func recs(n int) []model.LogRecord {
	out := make([]model.LogRecord, n)
	for i := range out {
		out[i] = model.LogRecord{Timestamp: int64(i + 1), Service: "s", Level: model.LevelInfo, Message: "m", RequestID: "r"}
	}
	return out
}

func TestPublishReachesTenantSubscribersOnly(t *testing.T) {
	h := NewHub(nil)
	a := h.Subscribe("a", 10)
	b := h.Subscribe("b", 10)
	all := h.SubscribeAll(10)

	h.Publish("a", recs(2))

	require.Len(t, a.Events(), 2)
	assert.Len(t, b.Events(), 0)
	require.Len(t, all.Events(), 2)

	ev := <-all.Events()
	assert.Equal(t, "a", ev.Tenant)
	assert.Equal(t, int64(1), ev.Record.Timestamp)
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	h := NewHub(nil)
	slow := h.Subscribe("a", 1)

	done := make(chan struct{})
	go func() {
		h.Publish("a", recs(5))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}

	assert.Len(t, slow.Events(), 1)
	assert.Equal(t, int64(4), slow.Dropped())
	assert.Equal(t, int64(4), h.Dropped())
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := NewHub(nil)
	h.Publish("nobody", recs(3))
	assert.Equal(t, int64(0), h.Dropped())
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(nil)
	s1 := h.Subscribe("a", 1)
	s2 := h.Subscribe("a", 1)
	all := h.SubscribeAll(1)
	assert.Equal(t, 2, h.ActiveStreams("a"))
	assert.Equal(t, 3, h.TotalStreams())

	h.Unsubscribe(s1)
	h.Unsubscribe(s1)
	assert.Equal(t, 1, h.ActiveStreams("a"))

	_, open := <-s1.Events()
	assert.False(t, open, "unsubscribed queue should be closed")

	h.Unsubscribe(s2)
	h.Unsubscribe(all)
	assert.Equal(t, 0, h.TotalStreams())

	// Publishing after everyone left is a no-op.
	h.Publish("a", recs(1))
}
