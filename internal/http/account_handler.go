package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/service"
)

type Account interface {
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd service.ProfileUpdate) (*domain.Profile, error)
	Orders(ctx context.Context, userID string) ([]*domain.Order, error)
	Order(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error)
	AddonOrders(ctx context.Context, userID string) ([]*domain.AddonOrder, error)
}

type AccountHandler struct {
	account Account
	timeout time.Duration
}

func NewAccountHandler(account Account, timeout time.Duration) *AccountHandler {
	return &AccountHandler{
		account: account,
		timeout: timeout,
	}
}

// GET /orders
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	orders, err := h.account.Orders(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /orders/{order_id}
func (h *AccountHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.account.Order(ctx, userID, orderID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /addon-orders
func (h *AccountHandler) ListAddonOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	orders, err := h.account.AddonOrders(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.AddonOrder{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /profile
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	profile, err := h.account.Profile(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// PUT /profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	var req service.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.account.UpdateProfile(ctx, userID, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
