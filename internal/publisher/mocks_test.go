package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

type MockRepository struct {
	mu sync.Mutex

	Events    []*domain.OutboxEvent
	FetchErr  error
	MarkErr   error
	Processed []uuid.UUID

	PurgeCutoff time.Time
	Purged      int64
}

func (m *MockRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if e.ProcessedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	now := time.Now()
	for _, e := range m.Events {
		if e.ID == id {
			e.ProcessedAt = &now
		}
	}
	m.Processed = append(m.Processed, id)
	return nil
}

func (m *MockRepository) DeleteProcessedEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurgeCutoff = cutoff
	return m.Purged, nil
}

func (m *MockRepository) ProcessedIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.Processed...)
}

// MockWriter records messages; FailAfter > 0 makes every write after that many fail.
type MockWriter struct {
	mu        sync.Mutex
	Messages  []kafka.Message
	Err       error
	FailAfter int
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil && len(w.Messages) >= w.FailAfter {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}
