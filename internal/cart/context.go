package cart

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// Snapshot is the view of a cart handed to consumers.
type Snapshot struct {
	Items      []domain.CartLineItem `json:"items"`
	TotalItems int                   `json:"total_items"`
	TotalPrice decimal.Decimal       `json:"total_price"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func newSnapshot(items []domain.CartLineItem, updatedAt time.Time) Snapshot {
	return Snapshot{
		Items:      cloneItems(items),
		TotalItems: totalItems(items),
		TotalPrice: totalPrice(items),
		UpdatedAt:  updatedAt,
	}
}

// Context keeps the latest snapshot of a Store and forwards mutations to it.
type Context struct {
	store       *Store
	unsubscribe func()

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewContext(store *Store) *Context {
	c := &Context{
		store:    store,
		snapshot: newSnapshot(store.Items(), store.UpdatedAt()),
	}
	c.unsubscribe = store.Subscribe(c)
	return c
}

func (c *Context) CartChanged(items []domain.CartLineItem) {
	c.mu.Lock()
	c.snapshot = newSnapshot(items, c.store.UpdatedAt())
	c.mu.Unlock()
}

func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.snapshot
	s.Items = cloneItems(s.Items)
	return s
}

func (c *Context) Add(ctx context.Context, p Product) error {
	return c.store.Add(ctx, p)
}

func (c *Context) AddN(ctx context.Context, p Product, n int) error {
	return c.store.AddN(ctx, p, n)
}

func (c *Context) SetQuantity(ctx context.Context, productID string, quantity int) error {
	return c.store.SetQuantity(ctx, productID, quantity)
}

func (c *Context) Remove(ctx context.Context, productID string) error {
	return c.store.Remove(ctx, productID)
}

func (c *Context) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *Context) Close() {
	c.unsubscribe()
}
