package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// CartClearer is satisfied by *cart.Manager.
type CartClearer interface {
	Clear(ctx context.Context, owner string) error
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer empties a customer's cart once an addon order paid from it has been finalized.
type Consumer struct {
	carts  CartClearer
	reader MessageReader
	log    *slog.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(carts CartClearer, reader MessageReader) *Consumer {
	return &Consumer{
		carts:  carts,
		reader: reader,
		log:    slog.Default().With("component", "cart_consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.Error("error reading message", "error", err)
		return
	}

	if !isFinalizedEvent(m) {
		return
	}

	var event domain.FinalizedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.Error("error parsing message", "offset", m.Offset, "error", err)
		return
	}
	if !event.ClearCart || event.UserID == "" {
		return
	}

	if err := c.carts.Clear(ctx, event.UserID); err != nil {
		c.log.Error("failed to clear cart", "user_id", event.UserID, "order_id", event.OrderID, "error", err)
		return
	}
	c.log.Info("cart cleared", "user_id", event.UserID, "order_id", event.OrderID)
}

// isFinalizedEvent accepts messages without an event_type header for older producers.
func isFinalizedEvent(m kafka.Message) bool {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			t := string(h.Value)
			return t == domain.EventOrderFinalized || t == domain.EventAddonOrderFinalized
		}
	}
	return true
}
