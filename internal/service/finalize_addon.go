package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
	"golang.org/x/sync/singleflight"
)

// AddonOrderStore is what addon finalization reads and writes.
type AddonOrderStore interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	repository.AddonOrderRepository
}

// cartSummaryEntry is the compact cart description carried in session metadata.
type cartSummaryEntry struct {
	ID       string `json:"id"`
	Quantity int    `json:"q"`
}

type AddonOrderFinalizer struct {
	repo    AddonOrderStore
	payment *PaymentHandler
	metrics *metrics.Metrics
	sfg     singleflight.Group
	now     func() time.Time
}

func NewAddonOrderFinalizer(repo AddonOrderStore, payment *PaymentHandler, m *metrics.Metrics) *AddonOrderFinalizer {
	return &AddonOrderFinalizer{
		repo:    repo,
		payment: payment,
		metrics: m,
		now:     time.Now,
	}
}

// Finalize records the addon purchase behind a paid checkout session. The processor's
// line items are the record of what was bought.
func (f *AddonOrderFinalizer) Finalize(ctx context.Context, req FinalizeRequest) (*domain.AddonOrder, bool, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, false, fmt.Errorf("%w: session_id is required", domain.ErrValidation)
	}

	res, err := sharedFinalize(ctx, &f.sfg, sessionID, func(ctx context.Context) (*domain.AddonOrder, bool, error) {
		return f.finalize(ctx, sessionID)
	})
	if err != nil {
		f.metrics.FinalizationDone("addon_order", outcome(err))
		return nil, false, err
	}

	if req.CallerID != "" && res.value.UserID != req.CallerID {
		f.metrics.FinalizationDone("addon_order", outcome(domain.ErrForbidden))
		return nil, false, domain.ErrForbidden
	}
	if res.created {
		f.metrics.FinalizationDone("addon_order", "created")
	} else {
		f.metrics.FinalizationDone("addon_order", "existing")
	}
	return res.value, res.created, nil
}

func (f *AddonOrderFinalizer) finalize(ctx context.Context, sessionID string) (*domain.AddonOrder, bool, error) {
	log := logger.FromContext(ctx).With("session_id", sessionID)

	session, err := f.payment.session(ctx, sessionID, true)
	if err != nil {
		return nil, false, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	if !session.IsPaid() {
		return nil, false, fmt.Errorf("%w: session status is %q", domain.ErrPaymentNotConfirmed, session.PaymentStatus)
	}

	userID, mainOrderID, deliveryDate, err := addonLinkage(session.Metadata)
	if err != nil {
		return nil, false, err
	}
	if session.PaymentIntentID == "" {
		return nil, false, fmt.Errorf("%w: session has no payment intent", domain.ErrPaymentNotConfirmed)
	}

	existing, err := f.repo.GetAddonOrderByPaymentIntentID(ctx, session.PaymentIntentID)
	if err == nil {
		log.Info("addon order already finalized", "addon_order_id", existing.ID)
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrAddonOrderNotFound) {
		return nil, false, fmt.Errorf("failed to check existing addon order: %w", err)
	}

	mainOrder, err := f.repo.GetOrderByID(ctx, mainOrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, false, fmt.Errorf("%w: main order %s does not exist", domain.ErrMissingLinkageMetadata, mainOrderID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load main order: %w", err)
	}
	if mainOrder.UserID != userID {
		return nil, false, fmt.Errorf("%w: main order belongs to another user", domain.ErrForbidden)
	}

	addons, total, err := orderedAddons(session.LineItems)
	if err != nil {
		return nil, false, err
	}
	if raw, ok := session.Metadata[payment.MetaCartSummary]; ok && strings.TrimSpace(raw) != "" {
		if err := crossCheckCartSummary(raw, addons); err != nil {
			return nil, false, err
		}
	}

	now := f.now()
	order := &domain.AddonOrder{
		ID:                    uuid.New(),
		UserID:                userID,
		MainOrderID:           mainOrderID,
		AddonDeliveryDate:     deliveryDate,
		AddonsOrdered:         addons,
		TotalAddonPrice:       total,
		Currency:              session.Currency,
		StripePaymentIntentID: session.PaymentIntentID,
		StripeSessionID:       session.ID,
	}

	event, err := domain.NewFinalizedEvent(domain.EventAddonOrderFinalized, order.ID, userID, true, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build addon order event: %w", err)
	}

	saved, created, err := f.repo.InsertOrFetchAddonOrder(ctx, order, event)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save addon order: %w", err)
	}
	log.Info("addon order finalized", "addon_order_id", saved.ID, "created", created, "items", len(saved.AddonsOrdered))
	return saved, created, nil
}

func addonLinkage(meta map[string]string) (string, uuid.UUID, domain.Date, error) {
	userID := strings.TrimSpace(meta[payment.MetaUserID])
	rawOrderID := strings.TrimSpace(meta[payment.MetaMainOrderID])
	rawDate := strings.TrimSpace(meta[payment.MetaAddonDeliveryDate])
	if userID == "" || rawOrderID == "" || rawDate == "" {
		return "", uuid.Nil, domain.Date{}, fmt.Errorf("%w: user_id, main_order_id and addon_delivery_date are required",
			domain.ErrMissingLinkageMetadata)
	}

	mainOrderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return "", uuid.Nil, domain.Date{}, fmt.Errorf("%w: main_order_id %q is not a uuid", domain.ErrMissingLinkageMetadata, rawOrderID)
	}
	date, err := domain.ParseDate(rawDate)
	if err != nil {
		return "", uuid.Nil, domain.Date{}, fmt.Errorf("%w: addon_delivery_date %q", domain.ErrMissingLinkageMetadata, rawDate)
	}
	return userID, mainOrderID, date, nil
}

// orderedAddons maps processor line items to ordered addons. Every line item must name its addon.
func orderedAddons(items []payment.LineItem) ([]domain.OrderedAddon, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: session has no line items", domain.ErrLineItemMismatch)
	}

	seen := make(map[string]struct{}, len(items))
	addons := make([]domain.OrderedAddon, 0, len(items))
	total := decimal.Zero
	for i, li := range items {
		addonID := strings.TrimSpace(li.ProductMetadata[payment.ProductMetaAddonID])
		if addonID == "" {
			return nil, decimal.Zero, fmt.Errorf("%w: line item %d (%s) has no addon_id", domain.ErrLineItemMismatch, i, li.Name)
		}
		if _, dup := seen[addonID]; dup {
			return nil, decimal.Zero, fmt.Errorf("%w: addon %s appears twice", domain.ErrLineItemMismatch, addonID)
		}
		if li.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: addon %s has quantity %d", domain.ErrLineItemMismatch, addonID, li.Quantity)
		}
		seen[addonID] = struct{}{}

		subtotal := li.AmountTotal
		if subtotal.IsZero() {
			subtotal = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
		}
		total = total.Add(subtotal)
		addons = append(addons, domain.OrderedAddon{
			AddonID:         addonID,
			Name:            li.Name,
			PriceAtPurchase: li.UnitPrice,
			Quantity:        li.Quantity,
		})
	}
	return addons, total, nil
}

func crossCheckCartSummary(raw string, addons []domain.OrderedAddon) error {
	var summary []cartSummaryEntry
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return fmt.Errorf("%w: cart_summary is not valid: %w", domain.ErrLineItemMismatch, err)
	}

	want := make(map[string]int, len(summary))
	for _, e := range summary {
		want[e.ID] += e.Quantity
	}
	if len(want) != len(addons) {
		return fmt.Errorf("%w: cart has %d addons, payment has %d", domain.ErrLineItemMismatch, len(want), len(addons))
	}
	for _, a := range addons {
		q, ok := want[a.AddonID]
		if !ok {
			return fmt.Errorf("%w: addon %s was paid for but not in the cart", domain.ErrLineItemMismatch, a.AddonID)
		}
		if q != a.Quantity {
			return fmt.Errorf("%w: addon %s quantity %d in cart, %d paid", domain.ErrLineItemMismatch, a.AddonID, q, a.Quantity)
		}
	}
	return nil
}
