// Package forward relays accepted records to Kafka as a hub subscriber.
package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tinytelemetry/logwatch/internal/broadcast"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Config configures the Kafka forwarder.
type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	QueueSize    int
}

// MessageWriter is the subset of *kafka.Writer the forwarder uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Source hands out subscriptions covering every tenant.
type Source interface {
	SubscribeAll(size int) *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

// NewWriter builds a writer that keeps each tenant on one partition.
func NewWriter(cfg Config) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	})
}

// Forwarder drains a hub subscription into Kafka in batches. It never
// slows ingestion: when it falls behind the hub drops its events.
type Forwarder struct {
	source    Source
	writer    MessageWriter
	batchSize int
	timeout   time.Duration
	queueSize int
}

// New creates a forwarder writing through writer.
func New(source Source, writer MessageWriter, cfg Config) *Forwarder {
	f := &Forwarder{
		source:    source,
		writer:    writer,
		batchSize: cfg.BatchSize,
		timeout:   cfg.BatchTimeout,
		queueSize: cfg.QueueSize,
	}
	if f.batchSize <= 0 {
		f.batchSize = defaultBatchSize
	}
	if f.timeout <= 0 {
		f.timeout = defaultBatchTimeout
	}
	if f.queueSize <= 0 {
		f.queueSize = broadcast.DefaultQueueSize
	}
	return f
}

// Run forwards events until ctx is done, then flushes what it holds and
// closes the writer.
func (f *Forwarder) Run(ctx context.Context) error {
	sub := f.source.SubscribeAll(f.queueSize)
	defer f.source.Unsubscribe(sub)
	defer func() {
		if err := f.writer.Close(); err != nil {
			log.Warn().Err(err).Msg("forward: closing kafka writer")
		}
	}()

	ticker := time.NewTicker(f.timeout)
	defer ticker.Stop()

	batch := make([]kafka.Message, 0, f.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		wctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
		defer cancel()
		if err := f.writer.WriteMessages(wctx, batch...); err != nil {
			log.Error().Err(err).Int("messages", len(batch)).Msg("forward: kafka write failed, dropping batch")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			f.drain(sub, &batch)
			flush(context.Background())
			if d := sub.Dropped(); d > 0 {
				log.Warn().Int64("dropped", d).Msg("forward: events dropped while forwarder lagged")
			}
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				flush(context.Background())
				return nil
			}
			msg, err := Message(ev)
			if err != nil {
				log.Warn().Err(err).Str("tenant", ev.Tenant).Msg("forward: encoding record")
				continue
			}
			batch = append(batch, msg)
			if len(batch) >= f.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// drain moves events already queued on sub into batch.
func (f *Forwarder) drain(sub *broadcast.Subscription, batch *[]kafka.Message) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if msg, err := Message(ev); err == nil {
				*batch = append(*batch, msg)
			}
		default:
			return
		}
	}
}

// Message encodes one event as a Kafka message keyed by tenant.
func Message(ev broadcast.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev.Record)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("forward: marshal record: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.Tenant),
		Value: value,
		Time:  time.UnixMilli(ev.Record.Timestamp),
		Headers: []kafka.Header{
			{Key: "tenant", Value: []byte(ev.Tenant)},
			{Key: "level", Value: []byte(ev.Record.Level)},
		},
	}, nil
}
