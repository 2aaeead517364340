package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/cart"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/service"
)

type Checkout interface {
	CreatePackageCheckout(ctx context.Context, req service.PackageCheckoutRequest) (*payment.CheckoutSession, error)
	CreateAddonCheckout(ctx context.Context, req service.AddonCheckoutRequest) (*payment.CheckoutSession, error)
}

type CheckoutHandler struct {
	checkout Checkout
	carts    *cart.Manager
	timeout  time.Duration
}

func NewCheckoutHandler(checkout Checkout, carts *cart.Manager, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		carts:    carts,
		timeout:  timeout,
	}
}

type PackageCheckoutDTO struct {
	PackageID string `json:"package_id"`
}

type AddonCheckoutDTO struct {
	MainOrderID  string                   `json:"main_order_id"`
	DeliveryDate string                   `json:"delivery_date"`
	Items        []service.AddonSelection `json:"items"`
}

type CheckoutSessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// POST /create-checkout-session
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	var req PackageCheckoutDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PackageID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_package_id", "package_id is required")
		return
	}

	sess, err := h.checkout.CreatePackageCheckout(ctx, service.PackageCheckoutRequest{
		UserID:    claims.UserID(),
		Email:     claims.Email,
		PackageID: req.PackageID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutSessionDTO{SessionID: sess.ID, URL: sess.URL})
}

// POST /create-addon-checkout-session
// Without explicit items the caller's server-side cart is charged.
func (h *CheckoutHandler) CreateAddonCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	var req AddonCheckoutDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	mainOrderID, err := uuid.Parse(req.MainOrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_main_order_id", "main_order_id must be a UUID")
		return
	}
	date, err := domain.ParseDate(req.DeliveryDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_delivery_date", "delivery_date must be a YYYY-MM-DD date")
		return
	}

	items := req.Items
	if len(items) == 0 && h.carts != nil {
		snap, err := h.carts.Snapshot(ctx, claims.UserID())
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		for _, it := range snap.Items {
			items = append(items, service.AddonSelection{AddonID: it.ID, Quantity: it.Quantity})
		}
	}

	sess, err := h.checkout.CreateAddonCheckout(ctx, service.AddonCheckoutRequest{
		UserID:       claims.UserID(),
		Email:        claims.Email,
		MainOrderID:  mainOrderID,
		DeliveryDate: date,
		Items:        items,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutSessionDTO{SessionID: sess.ID, URL: sess.URL})
}
