package cart

import (
	"context"
	"sync"
)

type MockPersistence struct {
	mu sync.RWMutex

	Data    []byte
	LoadErr error
	SaveErr error

	SaveCalls int
}

func (m *MockPersistence) Load(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.Data...), nil
}

func (m *MockPersistence) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Data = append([]byte(nil), data...)
	return nil
}

func (m *MockPersistence) Stored() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return string(m.Data)
}
