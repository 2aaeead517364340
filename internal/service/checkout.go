package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
	"github.com/spice-admin/customer-app-sub000/internal/schedule"
)

// stripe caps metadata values at 500 characters
const maxMetadataValue = 500

type CheckoutStore interface {
	GetPackage(ctx context.Context, id string) (*domain.Package, error)
	GetAddonsByIDs(ctx context.Context, ids []string) ([]domain.Addon, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type CheckoutURLs struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

type PackageCheckoutRequest struct {
	UserID    string
	Email     string
	PackageID string
}

type AddonSelection struct {
	AddonID  string `json:"addon_id"`
	Quantity int    `json:"quantity"`
}

type AddonCheckoutRequest struct {
	UserID       string
	Email        string
	MainOrderID  uuid.UUID
	DeliveryDate domain.Date
	Items        []AddonSelection
}

type CheckoutService struct {
	repo     CheckoutStore
	payment  *PaymentHandler
	resolver *schedule.Resolver
	urls     CheckoutURLs
	now      func() time.Time
}

func NewCheckoutService(repo CheckoutStore, payment *PaymentHandler, resolver *schedule.Resolver, urls CheckoutURLs) *CheckoutService {
	return &CheckoutService{
		repo:     repo,
		payment:  payment,
		resolver: resolver,
		urls:     urls,
		now:      time.Now,
	}
}

// CreatePackageCheckout opens a payment session for a package. The delivery window is resolved
// up front so a package that cannot be scheduled is never charged.
func (s *CheckoutService) CreatePackageCheckout(ctx context.Context, req PackageCheckoutRequest) (*payment.CheckoutSession, error) {
	if strings.TrimSpace(req.PackageID) == "" {
		return nil, fmt.Errorf("%w: package_id is required", domain.ErrValidation)
	}

	pkg, err := s.repo.GetPackage(ctx, req.PackageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	if !pkg.IsActive {
		return nil, fmt.Errorf("%w: package %s is not available", domain.ErrValidation, pkg.ID)
	}

	if err := s.requireAddress(ctx, req.UserID); err != nil {
		return nil, err
	}
	if _, err := s.resolver.Resolve(ctx, s.resolver.EarliestCandidate(s.now()), pkg.Days); err != nil {
		return nil, err
	}

	session, err := s.payment.createSession(ctx, payment.CheckoutRequest{
		Items: []payment.CheckoutItem{{
			Name:      pkg.Name,
			UnitPrice: pkg.Price,
			Quantity:  1,
			ImageURL:  pkg.ImageURL,
			Metadata:  map[string]string{payment.MetaPackageID: pkg.ID},
		}},
		Metadata: map[string]string{
			payment.MetaUserID:       req.UserID,
			payment.MetaPackageID:    pkg.ID,
			payment.MetaCheckoutKind: "package",
		},
		CustomerEmail: req.Email,
		Currency:      s.urls.Currency,
		SuccessURL:    s.urls.SuccessURL,
		CancelURL:     s.urls.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	logger.FromContext(ctx).Info("package checkout created", "session_id", session.ID, "package_id", pkg.ID)
	return session, nil
}

// CreateAddonCheckout opens a payment session for addons delivered on one day of an existing order.
// Prices come from the catalog, never from the client.
func (s *CheckoutService) CreateAddonCheckout(ctx context.Context, req AddonCheckoutRequest) (*payment.CheckoutSession, error) {
	selections, err := mergeSelections(req.Items)
	if err != nil {
		return nil, err
	}

	mainOrder, err := s.repo.GetOrderByID(ctx, req.MainOrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("%w: main order not found", domain.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load main order: %w", err)
	}
	if mainOrder.UserID != req.UserID {
		return nil, domain.ErrForbidden
	}
	if mainOrder.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrValidation, strings.ToLower(mainOrder.Status.String()))
	}
	if !mainOrder.Covers(req.DeliveryDate) {
		return nil, fmt.Errorf("%w: %s is outside the order's delivery window %s to %s", domain.ErrValidation,
			req.DeliveryDate, mainOrder.DeliveryStartDate, mainOrder.DeliveryEndDate)
	}
	if err := s.resolver.ValidateDeliveryDate(ctx, req.DeliveryDate, s.now()); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(selections))
	for _, sel := range selections {
		ids = append(ids, sel.AddonID)
	}
	addons, err := s.repo.GetAddonsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load addons: %w", err)
	}
	byID := make(map[string]domain.Addon, len(addons))
	for _, a := range addons {
		byID[a.ID] = a
	}

	items := make([]payment.CheckoutItem, 0, len(selections))
	summary := make([]cartSummaryEntry, 0, len(selections))
	for _, sel := range selections {
		addon, ok := byID[sel.AddonID]
		if !ok || !addon.IsActive {
			return nil, fmt.Errorf("%w: addon %s is not available", domain.ErrValidation, sel.AddonID)
		}
		items = append(items, payment.CheckoutItem{
			Name:      addon.Name,
			UnitPrice: addon.Price,
			Quantity:  sel.Quantity,
			ImageURL:  addon.ImageURL,
			Metadata:  map[string]string{payment.ProductMetaAddonID: addon.ID},
		})
		summary = append(summary, cartSummaryEntry{ID: addon.ID, Quantity: sel.Quantity})
	}

	metadata := map[string]string{
		payment.MetaUserID:            req.UserID,
		payment.MetaMainOrderID:       mainOrder.ID.String(),
		payment.MetaAddonDeliveryDate: req.DeliveryDate.String(),
		payment.MetaCheckoutKind:      "addon",
	}
	if raw, err := json.Marshal(summary); err == nil && len(raw) <= maxMetadataValue {
		metadata[payment.MetaCartSummary] = string(raw)
	}

	session, err := s.payment.createSession(ctx, payment.CheckoutRequest{
		Items:         items,
		Metadata:      metadata,
		CustomerEmail: req.Email,
		Currency:      s.urls.Currency,
		SuccessURL:    s.urls.SuccessURL,
		CancelURL:     s.urls.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	logger.FromContext(ctx).Info("addon checkout created",
		"session_id", session.ID,
		"main_order_id", mainOrder.ID,
		"delivery_date", req.DeliveryDate.String())
	return session, nil
}

func (s *CheckoutService) requireAddress(ctx context.Context, userID string) error {
	profile, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return fmt.Errorf("%w: add a delivery address to your profile first", domain.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if !profile.Address.IsComplete() {
		return fmt.Errorf("%w: delivery address is incomplete", domain.ErrValidation)
	}
	return nil
}

// mergeSelections folds repeated addon ids together, keeping first-seen order.
func mergeSelections(items []AddonSelection) ([]AddonSelection, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	index := make(map[string]int, len(items))
	merged := make([]AddonSelection, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.AddonID)
		if id == "" || it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: every item needs an addon_id and a positive quantity", domain.ErrValidation)
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, AddonSelection{AddonID: id, Quantity: it.Quantity})
	}
	return merged, nil
}
