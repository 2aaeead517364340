package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderFinalized      = "order.finalized"
	EventAddonOrderFinalized = "addon_order.finalized"
)

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// FinalizedEvent is the payload of both finalization events.
type FinalizedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	ClearCart   bool      `json:"clear_cart"`
	FinalizedAt time.Time `json:"finalized_at"`
}

func NewFinalizedEvent(eventType string, orderID uuid.UUID, userID string, clearCart bool, at time.Time) (*OutboxEvent, error) {
	kind := "order"
	if eventType == EventAddonOrderFinalized {
		kind = "addon_order"
	}
	payload, err := json.Marshal(FinalizedEvent{
		OrderID:     orderID,
		UserID:      userID,
		Kind:        kind,
		ClearCart:   clearCart,
		FinalizedAt: at.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: orderID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at.UTC(),
	}, nil
}
