package http

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/service"
)

type MockCatalog struct {
	Packages []domain.Package
	Addons   []domain.Addon
	Err      error

	Refreshes int
}

func (m *MockCatalog) Refresh(context.Context) error {
	m.Refreshes++
	return m.Err
}

func (m *MockCatalog) ListPackages(context.Context) ([]domain.Package, error) {
	return m.Packages, m.Err
}

func (m *MockCatalog) ListAddons(context.Context) ([]domain.Addon, error) {
	return m.Addons, m.Err
}

type MockSchedule struct {
	Earliest domain.Date
	Entries  []domain.DeliveryScheduleEntry
	Err      error

	From, To domain.Date
}

func (m *MockSchedule) EarliestCandidate(time.Time) domain.Date { return m.Earliest }

func (m *MockSchedule) AvailableDates(_ context.Context, from, to domain.Date) ([]domain.DeliveryScheduleEntry, error) {
	m.From, m.To = from, to
	return m.Entries, m.Err
}

type MockCheckout struct {
	Session *payment.CheckoutSession
	Err     error

	PackageReq *service.PackageCheckoutRequest
	AddonReq   *service.AddonCheckoutRequest
}

func (m *MockCheckout) CreatePackageCheckout(_ context.Context, req service.PackageCheckoutRequest) (*payment.CheckoutSession, error) {
	m.PackageReq = &req
	return m.Session, m.Err
}

func (m *MockCheckout) CreateAddonCheckout(_ context.Context, req service.AddonCheckoutRequest) (*payment.CheckoutSession, error) {
	m.AddonReq = &req
	return m.Session, m.Err
}

type MockOrderFinalizer struct {
	Order   *domain.Order
	Created bool
	Err     error
	Req     service.FinalizeRequest
}

func (m *MockOrderFinalizer) Finalize(_ context.Context, req service.FinalizeRequest) (*domain.Order, bool, error) {
	m.Req = req
	return m.Order, m.Created, m.Err
}

type MockAddonFinalizer struct {
	Order   *domain.AddonOrder
	Created bool
	Err     error
	Req     service.FinalizeRequest
}

func (m *MockAddonFinalizer) Finalize(_ context.Context, req service.FinalizeRequest) (*domain.AddonOrder, bool, error) {
	m.Req = req
	return m.Order, m.Created, m.Err
}

type MockAccount struct {
	Profiles    map[string]*domain.Profile
	OrderList   []*domain.Order
	AddonList   []*domain.AddonOrder
	Err         error
	LastUpdate  service.ProfileUpdate
	LastOrderID uuid.UUID
}

func (m *MockAccount) Profile(_ context.Context, userID string) (*domain.Profile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockAccount) UpdateProfile(_ context.Context, userID string, upd service.ProfileUpdate) (*domain.Profile, error) {
	m.LastUpdate = upd
	if m.Err != nil {
		return nil, m.Err
	}
	return &domain.Profile{UserID: userID, FullName: upd.FullName, Address: upd.Address}, nil
}

func (m *MockAccount) Orders(context.Context, string) ([]*domain.Order, error) {
	return m.OrderList, m.Err
}

func (m *MockAccount) Order(_ context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	m.LastOrderID = id
	if m.Err != nil {
		return nil, m.Err
	}
	for _, o := range m.OrderList {
		if o.ID == id && o.UserID == userID {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccount) AddonOrders(context.Context, string) ([]*domain.AddonOrder, error) {
	return m.AddonList, m.Err
}

type MockOTP struct {
	mu       sync.Mutex
	Err      error
	Sent     []string
	Verified []string
}

func (m *MockOTP) Send(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, phone)
	return m.Err
}

func (m *MockOTP) Verify(_ context.Context, userID, phone, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verified = append(m.Verified, userID+"|"+phone+"|"+code)
	return m.Err
}

type MockPasswordReset struct {
	Token string
	Err   error

	Completed []string
}

func (m *MockPasswordReset) Start(context.Context, string) error { return m.Err }

func (m *MockPasswordReset) Verify(context.Context, string, string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Token, nil
}

func (m *MockPasswordReset) Complete(_ context.Context, token, newPassword string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Completed = append(m.Completed, token+"|"+newPassword)
	return nil
}

type MockRevenue struct {
	Result   *service.RevenueReport
	Err      error
	From, To time.Time
}

func (m *MockRevenue) Report(_ context.Context, from, to time.Time) (*service.RevenueReport, error) {
	m.From, m.To = from, to
	return m.Result, m.Err
}
