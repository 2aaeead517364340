package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
)

// ErrNotFound is returned by a Persistence that has nothing stored yet.
var ErrNotFound = errors.New("cart not found")

// Persistence stores one cart as a single JSON blob.
type Persistence interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

type Observer interface {
	CartChanged(items []domain.CartLineItem)
}

type ObserverFunc func(items []domain.CartLineItem)

func (f ObserverFunc) CartChanged(items []domain.CartLineItem) { f(items) }

// Product is what gets added to the cart; quantity is managed by the store.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	ImageURL string
}

type Option func(*Store)

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// Store holds one in-progress cart. Every mutation is persisted before observers are notified;
// a failed write is rolled back and returned.
type Store struct {
	mu        sync.Mutex
	backend   Persistence
	clock     func() time.Time
	items     []domain.CartLineItem
	updatedAt time.Time
	observers map[uint64]Observer
	nextID    uint64
}

func NewStore(ctx context.Context, backend Persistence, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		clock:     time.Now,
		observers: make(map[uint64]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items = s.load(ctx)
	s.updatedAt = s.clock()
	return s
}

func (s *Store) load(ctx context.Context) []domain.CartLineItem {
	data, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		logger.FromContext(ctx).Warn("cart load failed, starting empty", slog.Any("error", err))
		return nil
	}

	var items []domain.CartLineItem
	if err := json.Unmarshal(data, &items); err != nil {
		logger.FromContext(ctx).Warn("stored cart is corrupt, starting empty", slog.Any("error", err))
		return nil
	}

	// drop anything a valid cart could never contain
	valid := items[:0]
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" || it.Quantity <= 0 || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		valid = append(valid, it)
	}
	return valid
}

func (s *Store) Items() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.items)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.items)
}

func (s *Store) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// MaxLineQuantity caps the units of a single product in one cart.
const MaxLineQuantity = 99

// Add puts one more unit of p in the cart.
func (s *Store) Add(ctx context.Context, p Product) error {
	return s.AddN(ctx, p, 1)
}

// AddN puts n more units of p in the cart as a single persisted change.
func (s *Store) AddN(ctx context.Context, p Product, n int) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrValidation)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if n <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		for i := range items {
			if items[i].ID != p.ID {
				continue
			}
			if items[i].Quantity+n > MaxLineQuantity {
				return nil, fmt.Errorf("%w: at most %d of %s per cart", domain.ErrValidation, MaxLineQuantity, p.ID)
			}
			items[i].Quantity += n
			return items, nil
		}
		if n > MaxLineQuantity {
			return nil, fmt.Errorf("%w: at most %d of %s per cart", domain.ErrValidation, MaxLineQuantity, p.ID)
		}
		return append(items, domain.CartLineItem{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: n,
			ImageURL: p.ImageURL,
		}), nil
	})
}

// SetQuantity sets the quantity exactly; zero or below removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}
	if quantity > MaxLineQuantity {
		return fmt.Errorf("%w: at most %d of %s per cart", domain.ErrValidation, MaxLineQuantity, productID)
	}
	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		for i := range items {
			if items[i].ID == productID {
				items[i].Quantity = quantity
				return items, nil
			}
		}
		return nil, fmt.Errorf("cart item %s %w", productID, domain.ErrNotFound)
	})
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		kept := items[:0]
		for _, it := range items {
			if it.ID != productID {
				kept = append(kept, it)
			}
		}
		return kept, nil
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]domain.CartLineItem) ([]domain.CartLineItem, error) {
		return nil, nil
	})
}

// Subscribe registers o for change notifications. Subscribing the same comparable
// observer twice keeps a single registration.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	if o == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if reflect.TypeOf(o).Comparable() {
		for id, existing := range s.observers {
			if reflect.TypeOf(existing) == reflect.TypeOf(o) && existing == o {
				return s.unsubscriber(id)
			}
		}
	}

	id := s.nextID
	s.nextID++
	s.observers[id] = o
	return s.unsubscriber(id)
}

func (s *Store) unsubscriber(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// mutate applies fn to a copy of the items. An error from fn leaves the cart untouched.
func (s *Store) mutate(ctx context.Context, fn func([]domain.CartLineItem) ([]domain.CartLineItem, error)) error {
	s.mu.Lock()

	next, err := fn(cloneItems(s.items))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	data, err := json.Marshal(nonNil(next))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.backend.Save(ctx, data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist cart: %w", err)
	}

	s.items = next
	s.updatedAt = s.clock()
	snapshot := cloneItems(next)
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o.CartChanged(cloneItems(snapshot))
	}
	return nil
}

func cloneItems(items []domain.CartLineItem) []domain.CartLineItem {
	if items == nil {
		return []domain.CartLineItem{}
	}
	out := make([]domain.CartLineItem, len(items))
	copy(out, items)
	return out
}

func nonNil(items []domain.CartLineItem) []domain.CartLineItem {
	if items == nil {
		return []domain.CartLineItem{}
	}
	return items
}

func totalItems(items []domain.CartLineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func totalPrice(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
