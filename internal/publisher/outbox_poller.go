package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
)

const batchSize = 100

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller relays finalization events from the outbox table to Kafka.
type OutboxPoller struct {
	timeout     time.Duration
	eventTick   time.Duration
	cleanupTick time.Duration
	retention   time.Duration
	repo        repository.OutboxRepository
	writer      MessageWriter
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo repository.OutboxRepository, writer MessageWriter, pollInterval, retention time.Duration, m *metrics.Metrics) *OutboxPoller {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &OutboxPoller{
		timeout:     5 * time.Second,
		eventTick:   pollInterval,
		cleanupTick: 5 * time.Minute,
		retention:   retention,
		repo:        repo,
		writer:      writer,
		metrics:     m,
		log:         slog.Default().With("component", "outbox_poller"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	cleanupTicker := time.NewTicker(p.cleanupTick)
	defer eventTicker.Stop()
	defer cleanupTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-cleanupTicker.C:
			p.purgeProcessedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			// stop here so events of one aggregate are not published out of order
			p.log.Error("failed to publish event", "event_id", event.ID, "error", err)
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("failed to mark event as processed", "event_id", event.ID, "error", err)
			continue
		}
		p.metrics.EventPublished()
	}
}

func (p *OutboxPoller) purgeProcessedEvents(ctx context.Context) {
	n, err := p.repo.DeleteProcessedEventsBefore(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.log.Error("failed to purge processed events", "error", err)
		return
	}
	if n > 0 {
		p.log.Info("purged processed events", "count", n)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID.String()), // order id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
