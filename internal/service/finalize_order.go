package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
	"github.com/spice-admin/customer-app-sub000/internal/schedule"
	"golang.org/x/sync/singleflight"
)

// OrderStore is what order finalization reads and writes.
type OrderStore interface {
	GetPackage(ctx context.Context, id string) (*domain.Package, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	repository.OrderRepository
}

type FinalizeRequest struct {
	SessionID string
	// CallerID is the authenticated user, empty for anonymous callers.
	CallerID string
}

type finalizeResult[T any] struct {
	value   T
	created bool
}

// finalizeTimeout bounds a shared finalization run, which outlives any single caller.
const finalizeTimeout = 30 * time.Second

// sharedFinalize runs fn once per key for all concurrent callers. The run is detached
// from the caller that started it; each caller stops waiting when its own ctx is done.
func sharedFinalize[T any](ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (T, bool, error)) (finalizeResult[T], error) {
	ch := g.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()

		value, created, err := fn(runCtx)
		if err != nil {
			return nil, err
		}
		return finalizeResult[T]{value: value, created: created}, nil
	})

	select {
	case <-ctx.Done():
		return finalizeResult[T]{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return finalizeResult[T]{}, r.Err
		}
		return r.Val.(finalizeResult[T]), nil
	}
}

type OrderFinalizer struct {
	repo     OrderStore
	payment  *PaymentHandler
	resolver *schedule.Resolver
	metrics  *metrics.Metrics
	sfg      singleflight.Group
	now      func() time.Time
}

func NewOrderFinalizer(repo OrderStore, payment *PaymentHandler, resolver *schedule.Resolver, m *metrics.Metrics) *OrderFinalizer {
	return &OrderFinalizer{
		repo:     repo,
		payment:  payment,
		resolver: resolver,
		metrics:  m,
		now:      time.Now,
	}
}

// Finalize turns a paid checkout session into an order. Calling it again for the same
// session returns the stored order with created=false.
func (f *OrderFinalizer) Finalize(ctx context.Context, req FinalizeRequest) (*domain.Order, bool, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, false, fmt.Errorf("%w: session_id is required", domain.ErrValidation)
	}

	res, err := sharedFinalize(ctx, &f.sfg, sessionID, func(ctx context.Context) (*domain.Order, bool, error) {
		return f.finalize(ctx, sessionID)
	})
	if err != nil {
		f.metrics.FinalizationDone("order", outcome(err))
		return nil, false, err
	}

	// the run is shared, so ownership is checked per caller
	if req.CallerID != "" && res.value.UserID != req.CallerID {
		f.metrics.FinalizationDone("order", outcome(domain.ErrForbidden))
		return nil, false, domain.ErrForbidden
	}
	if res.created {
		f.metrics.FinalizationDone("order", "created")
	} else {
		f.metrics.FinalizationDone("order", "existing")
	}
	return res.value, res.created, nil
}

func (f *OrderFinalizer) finalize(ctx context.Context, sessionID string) (*domain.Order, bool, error) {
	log := logger.FromContext(ctx).With("session_id", sessionID)

	session, err := f.payment.session(ctx, sessionID, false)
	if err != nil {
		return nil, false, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	if !session.IsPaid() {
		return nil, false, fmt.Errorf("%w: session status is %q", domain.ErrPaymentNotConfirmed, session.PaymentStatus)
	}

	userID := strings.TrimSpace(session.Metadata[payment.MetaUserID])
	packageID := strings.TrimSpace(session.Metadata[payment.MetaPackageID])
	if userID == "" || packageID == "" {
		return nil, false, fmt.Errorf("%w: user_id and package_id are required", domain.ErrMissingLinkageMetadata)
	}
	paymentID := session.PaymentID()
	existing, err := f.repo.GetOrderByPaymentID(ctx, paymentID)
	if err == nil {
		log.Info("order already finalized", "order_id", existing.ID)
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, false, fmt.Errorf("failed to check existing order: %w", err)
	}

	pkg, err := f.repo.GetPackage(ctx, packageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load package %s: %w", packageID, err)
	}

	profile, err := f.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, false, fmt.Errorf("%w: no delivery address on file", domain.ErrValidation)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load profile: %w", err)
	}

	now := f.now()
	window, err := f.resolver.Resolve(ctx, f.resolver.EarliestCandidate(now), pkg.Days)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve delivery window: %w", err)
	}

	amount := session.AmountTotal
	if amount.IsZero() {
		amount = pkg.Price
	}
	order := &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		PackageID: pkg.ID,
		PackageSnapshot: domain.PackageSnapshot{
			Name:  pkg.Name,
			Type:  pkg.Type,
			Price: pkg.Price,
			Days:  pkg.Days,
		},
		DeliveryAddressSnapshot: profile.Address,
		StripePaymentID:         paymentID,
		StripeSessionID:         session.ID,
		TotalAmount:             amount,
		Currency:                session.Currency,
		DeliveryStartDate:       window.Start,
		DeliveryEndDate:         window.End,
		Status:                  domain.OrderStatusConfirmed,
	}

	event, err := domain.NewFinalizedEvent(domain.EventOrderFinalized, order.ID, userID, false, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build order event: %w", err)
	}

	saved, created, err := f.repo.InsertOrFetchOrder(ctx, order, event)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save order: %w", err)
	}
	if created {
		log.Info("order finalized",
			"order_id", saved.ID,
			"user_id", userID,
			"delivery_start", saved.DeliveryStartDate.String(),
			"delivery_end", saved.DeliveryEndDate.String())
	} else {
		log.Info("order finalized concurrently", "order_id", saved.ID)
	}
	return saved, created, nil
}

// outcome is the metrics label for a failed finalization.
func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		return "unpaid"
	case errors.Is(err, domain.ErrMissingLinkageMetadata), errors.Is(err, domain.ErrLineItemMismatch):
		return "invalid_session"
	case errors.Is(err, domain.ErrInsufficientScheduleCoverage), errors.Is(err, domain.ErrNoAvailableStartDate),
		errors.Is(err, domain.ErrInvalidDuration):
		return "schedule"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrRemoteService):
		return "remote_error"
	default:
		return "error"
	}
}
