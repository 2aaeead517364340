package http

import (
	"context"
	"net/http"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/service"
)

type Revenue interface {
	Report(ctx context.Context, from, to time.Time) (*service.RevenueReport, error)
}

type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

type AdminHandler struct {
	revenue Revenue
	catalog CatalogRefresher
	timeout time.Duration
	now     func() time.Time
}

func NewAdminHandler(revenue Revenue, catalog CatalogRefresher, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		revenue: revenue,
		catalog: catalog,
		timeout: timeout,
		now:     time.Now,
	}
}

// POST /admin/catalog/refresh
func (h *AdminHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.Refresh(ctx); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageDTO{Message: "catalog cache cleared"})
}

// GET /admin/revenue?from=&to=
// Bounds are RFC 3339 instants or YYYY-MM-DD dates; a date as "to" includes that whole day.
// The default range is the last 30 days.
func (h *AdminHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	to := h.now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := parseInstant(raw, false)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_from", "from must be an RFC 3339 time or YYYY-MM-DD date")
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := parseInstant(raw, true)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_to", "to must be an RFC 3339 time or YYYY-MM-DD date")
			return
		}
		to = t
	}

	report, err := h.revenue.Report(ctx, from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func parseInstant(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		d = d.AddDays(1)
	}
	return d.Time, nil
}
