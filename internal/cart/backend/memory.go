package backend

import (
	"context"
	"sync"

	"github.com/spice-admin/customer-app-sub000/internal/cart"
)

// Memory keeps carts in process; used by tests and single-node development runs.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) For(ownerID string) cart.Persistence {
	return memoryCart{mem: m, owner: ownerID}
}

type memoryCart struct {
	mem   *Memory
	owner string
}

func (c memoryCart) Load(ctx context.Context) ([]byte, error) {
	c.mem.mu.RLock()
	defer c.mem.mu.RUnlock()
	data, ok := c.mem.blobs[c.owner]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (c memoryCart) Save(ctx context.Context, data []byte) error {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	c.mem.blobs[c.owner] = append([]byte(nil), data...)
	return nil
}
