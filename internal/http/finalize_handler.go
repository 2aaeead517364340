package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/service"
)

type OrderFinalizer interface {
	Finalize(ctx context.Context, req service.FinalizeRequest) (*domain.Order, bool, error)
}

type AddonOrderFinalizer interface {
	Finalize(ctx context.Context, req service.FinalizeRequest) (*domain.AddonOrder, bool, error)
}

type FinalizeHandler struct {
	orders  OrderFinalizer
	addons  AddonOrderFinalizer
	timeout time.Duration
}

func NewFinalizeHandler(orders OrderFinalizer, addons AddonOrderFinalizer, timeout time.Duration) *FinalizeHandler {
	return &FinalizeHandler{
		orders:  orders,
		addons:  addons,
		timeout: timeout,
	}
}

type FinalizeRequestDTO struct {
	SessionID string `json:"session_id"`
}

type FinalizeOrderDTO struct {
	Order   *domain.Order `json:"order"`
	Created bool          `json:"created"`
}

// FinalizeAddonOrderDTO tells the client to drop its cart and pending delivery date.
type FinalizeAddonOrderDTO struct {
	AddonOrder        *domain.AddonOrder `json:"addon_order"`
	Created           bool               `json:"created"`
	ClearCart         bool               `json:"clear_cart"`
	ClearDeliveryDate bool               `json:"clear_delivery_date"`
}

// POST /finalize-order
func (h *FinalizeHandler) FinalizeOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, created, err := h.orders.Finalize(ctx, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, FinalizeOrderDTO{Order: order, Created: created})
}

// POST /finalize-addon-order
func (h *FinalizeHandler) FinalizeAddonOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, created, err := h.addons.Finalize(ctx, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, FinalizeAddonOrderDTO{
		AddonOrder:        order,
		Created:           created,
		ClearCart:         true,
		ClearDeliveryDate: true,
	})
}

// decode accepts anonymous callers; the session metadata identifies the buyer.
func (h *FinalizeHandler) decode(w http.ResponseWriter, r *http.Request) (service.FinalizeRequest, bool) {
	var req FinalizeRequestDTO
	if !decodeJSON(w, r, &req) {
		return service.FinalizeRequest{}, false
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "session_id is required")
		return service.FinalizeRequest{}, false
	}
	return service.FinalizeRequest{SessionID: strings.TrimSpace(req.SessionID), CallerID: getUserIDFromContext(r.Context())}, true
}
