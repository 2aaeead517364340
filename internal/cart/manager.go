package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// BackendFactory returns the persistence for one owner's cart.
type BackendFactory func(ownerID string) Persistence

// Manager hands out carts per owner. Calls for the same owner are serialized in-process
// so that load-mutate-save cycles do not interleave.
type Manager struct {
	factory BackendFactory
	clock   func() time.Time

	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(factory BackendFactory, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		factory: factory,
		clock:   clock,
		locks:   make(map[string]*ownerLock),
	}
}

// With loads the owner's cart and runs fn against its Context.
func (m *Manager) With(ctx context.Context, ownerID string, fn func(*Context) error) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: cart owner is required", domain.ErrValidation)
	}

	unlock := m.lock(ownerID)
	defer unlock()

	c := NewContext(NewStore(ctx, m.factory(ownerID), WithClock(m.clock)))
	defer c.Close()
	return fn(c)
}

// Snapshot reads the owner's cart without mutating it.
func (m *Manager) Snapshot(ctx context.Context, ownerID string) (Snapshot, error) {
	var snap Snapshot
	err := m.With(ctx, ownerID, func(c *Context) error {
		snap = c.Snapshot()
		return nil
	})
	return snap, err
}

func (m *Manager) Clear(ctx context.Context, ownerID string) error {
	return m.With(ctx, ownerID, func(c *Context) error {
		return c.Clear(ctx)
	})
}

func (m *Manager) lock(ownerID string) func() {
	m.mu.Lock()
	l, ok := m.locks[ownerID]
	if !ok {
		l = &ownerLock{}
		m.locks[ownerID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, ownerID)
		}
		m.mu.Unlock()
	}
}
