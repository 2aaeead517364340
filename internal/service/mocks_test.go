package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/cache"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
)

// MockRepository is an in-memory store covering every repository the services use.
type MockRepository struct {
	mu sync.Mutex

	Packages    map[string]*domain.Package
	Addons      map[string]domain.Addon
	Profiles    map[string]*domain.Profile
	Orders      map[uuid.UUID]*domain.Order
	AddonOrders map[uuid.UUID]*domain.AddonOrder
	Attempts    map[uuid.UUID]*domain.PasswordResetAttempt
	Events      []*domain.OutboxEvent

	// SkipPaymentLookup hides existing orders from the by-payment lookups, simulating
	// a finalize that raced past the fast path.
	SkipPaymentLookup bool
	Err               error

	PackageCalls  int
	InsertCalls   int
	VerifiedPhone map[string]string
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		Packages:      map[string]*domain.Package{},
		Addons:        map[string]domain.Addon{},
		Profiles:      map[string]*domain.Profile{},
		Orders:        map[uuid.UUID]*domain.Order{},
		AddonOrders:   map[uuid.UUID]*domain.AddonOrder{},
		Attempts:      map[uuid.UUID]*domain.PasswordResetAttempt{},
		VerifiedPhone: map[string]string{},
	}
}

func (m *MockRepository) ListActivePackages(context.Context) ([]domain.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []domain.Package{}
	for _, p := range m.Packages {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MockRepository) GetPackage(_ context.Context, id string) (*domain.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PackageCalls++
	p, ok := m.Packages[id]
	if !ok {
		return nil, repository.ErrPackageNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockRepository) ListActiveAddons(context.Context) ([]domain.Addon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []domain.Addon{}
	for _, a := range m.Addons {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockRepository) GetAddonsByIDs(_ context.Context, ids []string) ([]domain.Addon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Addon{}
	for _, id := range ids {
		if a, ok := m.Addons[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockRepository) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockRepository) GetProfileByPhone(_ context.Context, phone string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Profiles {
		if p.Phone == phone && p.PhoneVerified {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

func (m *MockRepository) UpsertProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.Profiles[p.UserID] = &cp
	return &cp, nil
}

func (m *MockRepository) MarkPhoneVerified(_ context.Context, userID, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[userID]
	if !ok {
		return repository.ErrProfileNotFound
	}
	p.Phone = phone
	p.PhoneVerified = true
	m.VerifiedPhone[userID] = phone
	return nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockRepository) GetOrderByPaymentID(_ context.Context, paymentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.SkipPaymentLookup {
		for _, o := range m.Orders {
			if o.StripePaymentID == paymentID {
				cp := *o
				return &cp, nil
			}
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.Orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRepository) InsertOrFetchOrder(_ context.Context, order *domain.Order, event *domain.OutboxEvent) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.Err != nil {
		return nil, false, m.Err
	}
	for _, o := range m.Orders {
		if o.StripePaymentID == order.StripePaymentID {
			cp := *o
			return &cp, false, nil
		}
	}
	saved := *order
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt
	m.Orders[saved.ID] = &saved
	m.Events = append(m.Events, event)
	cp := saved
	return &cp, true, nil
}

func (m *MockRepository) GetAddonOrderByPaymentIntentID(_ context.Context, paymentIntentID string) (*domain.AddonOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.SkipPaymentLookup {
		for _, o := range m.AddonOrders {
			if o.StripePaymentIntentID == paymentIntentID {
				cp := *o
				return &cp, nil
			}
		}
	}
	return nil, repository.ErrAddonOrderNotFound
}

func (m *MockRepository) ListAddonOrdersByUserID(_ context.Context, userID string) ([]*domain.AddonOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.AddonOrder{}
	for _, o := range m.AddonOrders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRepository) InsertOrFetchAddonOrder(_ context.Context, order *domain.AddonOrder, event *domain.OutboxEvent) (*domain.AddonOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.Err != nil {
		return nil, false, m.Err
	}
	for _, o := range m.AddonOrders {
		if o.StripePaymentIntentID == order.StripePaymentIntentID {
			cp := *o
			return &cp, false, nil
		}
	}
	saved := *order
	saved.CreatedAt = time.Now()
	m.AddonOrders[saved.ID] = &saved
	m.Events = append(m.Events, event)
	cp := saved
	return &cp, true, nil
}

func (m *MockRepository) CreateResetAttempt(_ context.Context, a *domain.PasswordResetAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.CreatedAt = time.Now()
	m.Attempts[a.ID] = &cp
	return nil
}

func (m *MockRepository) GetResetAttempt(_ context.Context, id uuid.UUID) (*domain.PasswordResetAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Attempts[id]
	if !ok {
		return nil, repository.ErrResetAttemptNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockRepository) LatestResetAttempt(_ context.Context, phone string) (*domain.PasswordResetAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.PasswordResetAttempt
	for _, a := range m.Attempts {
		if a.Phone == phone && (latest == nil || a.CreatedAt.After(latest.CreatedAt)) {
			latest = a
		}
	}
	if latest == nil {
		return nil, repository.ErrResetAttemptNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockRepository) IncrementResetAttempts(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Attempts[id]
	if !ok {
		return 0, repository.ErrResetAttemptNotFound
	}
	a.Attempts++
	return a.Attempts, nil
}

func (m *MockRepository) TransitionResetAttempt(_ context.Context, id uuid.UUID, from, to domain.PasswordResetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Attempts[id]
	if !ok || a.Status != from {
		return repository.ErrStaleTransition
	}
	a.Status = to
	return nil
}

func (m *MockRepository) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

// MockGateway implements payment.Gateway over a fixed set of sessions.
type MockGateway struct {
	mu sync.Mutex

	Sessions map[string]*payment.CheckoutSession
	Intents  []payment.PaymentIntent
	Err      error

	Created  []payment.CheckoutRequest
	GetCalls int

	// Release, when set, holds every session lookup until it is closed.
	// Entered receives one value per held lookup.
	Release chan struct{}
	Entered chan struct{}
}

func NewMockGateway() *MockGateway {
	return &MockGateway{Sessions: map[string]*payment.CheckoutSession{}}
}

func (g *MockGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.Created = append(g.Created, req)
	return &payment.CheckoutSession{
		ID:       "cs_test_new",
		URL:      "https://checkout.stripe.test/cs_test_new",
		Metadata: req.Metadata,
	}, nil
}

func (g *MockGateway) GetCheckoutSession(ctx context.Context, id string, _ bool) (*payment.CheckoutSession, error) {
	if g.Release != nil {
		if g.Entered != nil {
			g.Entered <- struct{}{}
		}
		select {
		case <-g.Release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.GetCalls++
	if g.Err != nil {
		return nil, g.Err
	}
	s, ok := g.Sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *MockGateway) ListPaymentIntents(context.Context, time.Time, time.Time) ([]payment.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Intents, nil
}

// MockVerifier approves Code for any phone.
type MockVerifier struct {
	mu       sync.Mutex
	Code     string
	StartErr error
	Started  []string
	Checked  int
}

func (v *MockVerifier) Start(_ context.Context, phone string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.StartErr != nil {
		return v.StartErr
	}
	v.Started = append(v.Started, phone)
	return nil
}

func (v *MockVerifier) Check(_ context.Context, _, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Checked++
	if code != v.Code {
		return domain.ErrVerificationFailed
	}
	return nil
}

type MockPasswordUpdater struct {
	Err     error
	Updated map[string]string
}

func (u *MockPasswordUpdater) UpdatePassword(_ context.Context, userID, password string) error {
	if u.Err != nil {
		return u.Err
	}
	if u.Updated == nil {
		u.Updated = map[string]string{}
	}
	u.Updated[userID] = password
	return nil
}

// MockCatalogCache counts hits and misses.
type MockCatalogCache struct {
	mu       sync.Mutex
	packages []domain.Package
	addons   []domain.Addon
	GetErr   error
	Sets     int
}

func (c *MockCatalogCache) GetPackages(context.Context) ([]domain.Package, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	if c.packages == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.packages, nil
}

func (c *MockCatalogCache) SetPackages(_ context.Context, pkgs []domain.Package) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sets++
	c.packages = pkgs
	return nil
}

func (c *MockCatalogCache) GetAddons(context.Context) ([]domain.Addon, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	if c.addons == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.addons, nil
}

func (c *MockCatalogCache) SetAddons(_ context.Context, addons []domain.Addon) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sets++
	c.addons = addons
	return nil
}

func (c *MockCatalogCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packages, c.addons = nil, nil
	return nil
}

func (c *MockCatalogCache) SetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Sets
}
