package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addonFixture struct {
	repo      *MockRepository
	gateway   *MockGateway
	mainOrder *domain.Order
	finalizer *AddonOrderFinalizer
}

func addonLine(addonID, name, unit string, qty int) payment.LineItem {
	price := decimal.RequireFromString(unit)
	return payment.LineItem{
		Name:            name,
		Quantity:        qty,
		UnitPrice:       price,
		AmountTotal:     price.Mul(decimal.NewFromInt(int64(qty))),
		ProductMetadata: map[string]string{payment.ProductMetaAddonID: addonID},
	}
}

func newAddonFixture(t *testing.T) *addonFixture {
	t.Helper()

	repo := NewMockRepository()
	mainOrder := &domain.Order{
		ID:                uuid.New(),
		UserID:            "user-1",
		StripePaymentID:   "pi_main",
		DeliveryStartDate: march(11),
		DeliveryEndDate:   march(20),
		Status:            domain.OrderStatusActive,
	}
	repo.Orders[mainOrder.ID] = mainOrder

	gateway := NewMockGateway()
	gateway.Sessions["cs_addon"] = &payment.CheckoutSession{
		ID:              "cs_addon",
		PaymentStatus:   payment.StatusPaid,
		PaymentIntentID: "pi_addon",
		Currency:        "CAD",
		Metadata: map[string]string{
			payment.MetaUserID:            "user-1",
			payment.MetaMainOrderID:       mainOrder.ID.String(),
			payment.MetaAddonDeliveryDate: "2024-03-12",
			payment.MetaCartSummary:       `[{"id":"raita","q":2},{"id":"lassi","q":1}]`,
		},
		LineItems: []payment.LineItem{
			addonLine("raita", "Raita", "2.50", 2),
			addonLine("lassi", "Mango Lassi", "4.00", 1),
		},
	}

	f := NewAddonOrderFinalizer(repo, NewPaymentHandler(gateway, 5*time.Second), nil)
	f.now = func() time.Time { return fixedNow }

	return &addonFixture{repo: repo, gateway: gateway, mainOrder: mainOrder, finalizer: f}
}

func TestFinalizeAddon_CreatesOrder(t *testing.T) {
	fx := newAddonFixture(t)

	order, created, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, fx.mainOrder.ID, order.MainOrderID)
	assert.Equal(t, march(12), order.AddonDeliveryDate)
	assert.Equal(t, "pi_addon", order.StripePaymentIntentID)
	require.Len(t, order.AddonsOrdered, 2)
	assert.Equal(t, "raita", order.AddonsOrdered[0].AddonID)
	assert.Equal(t, 2, order.AddonsOrdered[0].Quantity)
	assert.True(t, decimal.RequireFromString("9.00").Equal(order.TotalAddonPrice), "got %s", order.TotalAddonPrice)

	require.Len(t, fx.repo.Events, 1)
	assert.Equal(t, domain.EventAddonOrderFinalized, fx.repo.Events[0].EventType)
	assert.Contains(t, string(fx.repo.Events[0].Payload), `"clear_cart":true`)
}

func TestFinalizeAddon_Idempotent(t *testing.T) {
	fx := newAddonFixture(t)
	ctx := context.Background()

	first, _, err := fx.finalizer.Finalize(ctx, FinalizeRequest{SessionID: "cs_addon"})
	require.NoError(t, err)
	second, created, err := fx.finalizer.Finalize(ctx, FinalizeRequest{SessionID: "cs_addon"})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, fx.repo.AddonOrders, 1)
}

func TestFinalizeAddon_RejectsUnpaid(t *testing.T) {
	fx := newAddonFixture(t)
	fx.gateway.Sessions["cs_addon"].PaymentStatus = "unpaid"

	_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

	assert.ErrorIs(t, err, domain.ErrPaymentNotConfirmed)
	assert.Empty(t, fx.repo.AddonOrders)
}

func TestFinalizeAddon_LinkageErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(meta map[string]string)
	}{
		{"missing user", func(m map[string]string) { delete(m, payment.MetaUserID) }},
		{"missing main order", func(m map[string]string) { delete(m, payment.MetaMainOrderID) }},
		{"bad main order id", func(m map[string]string) { m[payment.MetaMainOrderID] = "not-a-uuid" }},
		{"unknown main order", func(m map[string]string) { m[payment.MetaMainOrderID] = uuid.NewString() }},
		{"bad date", func(m map[string]string) { m[payment.MetaAddonDeliveryDate] = "12/03/2024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAddonFixture(t)
			tt.edit(fx.gateway.Sessions["cs_addon"].Metadata)

			_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

			assert.ErrorIs(t, err, domain.ErrMissingLinkageMetadata)
			assert.Empty(t, fx.repo.AddonOrders)
		})
	}
}

func TestFinalizeAddon_MainOrderOfAnotherUser(t *testing.T) {
	fx := newAddonFixture(t)
	fx.mainOrder.UserID = "user-2"

	_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestFinalizeAddon_SharedRunServesOwnerAndRejectsOthers(t *testing.T) {
	fx := newAddonFixture(t)
	fx.gateway.Release = make(chan struct{})
	fx.gateway.Entered = make(chan struct{}, 2)

	ctxFirst, cancelFirst := context.WithCancel(context.Background())
	errFirst := make(chan error, 1)
	go func() {
		_, _, err := fx.finalizer.Finalize(ctxFirst, FinalizeRequest{SessionID: "cs_addon", CallerID: "user-2"})
		errFirst <- err
	}()
	<-fx.gateway.Entered
	cancelFirst()
	assert.ErrorIs(t, <-errFirst, context.Canceled)

	errOwner := make(chan error, 1)
	go func() {
		_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon", CallerID: "user-1"})
		errOwner <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(fx.gateway.Release)

	require.NoError(t, <-errOwner)
	assert.Len(t, fx.repo.AddonOrders, 1)

	_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon", CallerID: "user-2"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestFinalizeAddon_LineItemWithoutAddonID(t *testing.T) {
	fx := newAddonFixture(t)
	fx.gateway.Sessions["cs_addon"].LineItems[1].ProductMetadata = nil

	_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

	assert.ErrorIs(t, err, domain.ErrLineItemMismatch)
	assert.Empty(t, fx.repo.AddonOrders)
}

func TestFinalizeAddon_CartSummaryDivergence(t *testing.T) {
	tests := map[string]string{
		"quantity differs": `[{"id":"raita","q":3},{"id":"lassi","q":1}]`,
		"extra item":       `[{"id":"raita","q":2},{"id":"lassi","q":1},{"id":"naan","q":1}]`,
		"missing item":     `[{"id":"raita","q":2}]`,
		"other item":       `[{"id":"raita","q":2},{"id":"naan","q":1}]`,
		"garbage":          `not json`,
	}
	for name, summary := range tests {
		t.Run(name, func(t *testing.T) {
			fx := newAddonFixture(t)
			fx.gateway.Sessions["cs_addon"].Metadata[payment.MetaCartSummary] = summary

			_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

			assert.ErrorIs(t, err, domain.ErrLineItemMismatch)
		})
	}
}

func TestFinalizeAddon_WithoutCartSummaryUsesLineItems(t *testing.T) {
	fx := newAddonFixture(t)
	delete(fx.gateway.Sessions["cs_addon"].Metadata, payment.MetaCartSummary)

	order, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

	require.NoError(t, err)
	assert.Len(t, order.AddonsOrdered, 2)
}

func TestFinalizeAddon_RequiresPaymentIntent(t *testing.T) {
	fx := newAddonFixture(t)
	fx.gateway.Sessions["cs_addon"].PaymentIntentID = ""

	_, _, err := fx.finalizer.Finalize(context.Background(), FinalizeRequest{SessionID: "cs_addon"})

	assert.ErrorIs(t, err, domain.ErrPaymentNotConfirmed)
}

func TestOrderedAddons_DuplicateAddon(t *testing.T) {
	_, _, err := orderedAddons([]payment.LineItem{
		addonLine("raita", "Raita", "2.50", 1),
		addonLine("raita", "Raita", "2.50", 1),
	})

	assert.ErrorIs(t, err, domain.ErrLineItemMismatch)
}
