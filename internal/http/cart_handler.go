package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spice-admin/customer-app-sub000/internal/cart"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
)

type CartHandler struct {
	carts   *cart.Manager
	catalog Catalog
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewCartHandler(carts *cart.Manager, catalog Catalog, m *metrics.Metrics, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		metrics: m,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	snap, err := h.carts.Snapshot(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// POST /cart/items
// Name and price come from the addon catalog, never from the client.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if strings.TrimSpace(req.ID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id is required")
		return
	}
	if req.Quantity < 0 || req.Quantity > cart.MaxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	addon, err := h.findAddon(ctx, req.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var snap cart.Snapshot
	err = h.carts.With(ctx, userID, func(c *cart.Context) error {
		if err := c.AddN(ctx, cart.Product{
			ID:       addon.ID,
			Name:     addon.Name,
			Price:    addon.Price,
			ImageURL: addon.ImageURL,
		}, req.Quantity); err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.metrics.CartMutation("add")
	respondJSON(w, http.StatusCreated, snap)
}

// PUT /cart/items/{product_id}
// A quantity of zero or less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	productID := chi.URLParam(r, "product_id")
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity > cart.MaxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	h.mutate(ctx, w, r, userID, "set_quantity", func(ctx context.Context, c *cart.Context) error {
		return c.SetQuantity(ctx, productID, req.Quantity)
	})
}

// DELETE /cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	productID := chi.URLParam(r, "product_id")
	h.mutate(ctx, w, r, userID, "remove", func(ctx context.Context, c *cart.Context) error {
		return c.Remove(ctx, productID)
	})
}

// DELETE /cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondServiceError(w, r, domain.ErrAuthenticationRequired)
		return
	}

	h.mutate(ctx, w, r, userID, "clear", func(ctx context.Context, c *cart.Context) error {
		return c.Clear(ctx)
	})
}

func (h *CartHandler) mutate(ctx context.Context, w http.ResponseWriter, r *http.Request, userID, op string, fn func(context.Context, *cart.Context) error) {
	var snap cart.Snapshot
	err := h.carts.With(ctx, userID, func(c *cart.Context) error {
		if err := fn(ctx, c); err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.metrics.CartMutation(op)
	respondJSON(w, http.StatusOK, snap)
}

func (h *CartHandler) findAddon(ctx context.Context, id string) (*domain.Addon, error) {
	addons, err := h.catalog.ListAddons(ctx)
	if err != nil {
		return nil, err
	}
	for i := range addons {
		if addons[i].ID == id && addons[i].IsActive {
			return &addons[i], nil
		}
	}
	return nil, fmt.Errorf("addon %s %w", id, domain.ErrNotFound)
}
