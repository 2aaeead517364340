package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
)

type MockCarts struct {
	mu      sync.Mutex
	Cleared []string
	Err     error
}

func (m *MockCarts) Clear(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Cleared = append(m.Cleared, owner)
	return nil
}

func (m *MockCarts) ClearedOwners() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Cleared...)
}

// MockReader hands out queued messages, then blocks until the context ends.
type MockReader struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Errs     []error
	Closed   bool
}

func (r *MockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.Errs) > 0 {
		err := r.Errs[0]
		r.Errs = r.Errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.Messages) > 0 {
		m := r.Messages[0]
		r.Messages = r.Messages[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *MockReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Closed {
		return errors.New("already closed")
	}
	r.Closed = true
	return nil
}
