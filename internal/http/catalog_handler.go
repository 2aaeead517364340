package http

import (
	"context"
	"net/http"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const defaultScheduleRangeDays = 60

type Catalog interface {
	ListPackages(ctx context.Context) ([]domain.Package, error)
	ListAddons(ctx context.Context) ([]domain.Addon, error)
}

type Schedule interface {
	EarliestCandidate(now time.Time) domain.Date
	AvailableDates(ctx context.Context, from, to domain.Date) ([]domain.DeliveryScheduleEntry, error)
}

type CatalogHandler struct {
	catalog  Catalog
	schedule Schedule
	timeout  time.Duration
	now      func() time.Time
}

func NewCatalogHandler(catalog Catalog, schedule Schedule, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		schedule: schedule,
		timeout:  timeout,
		now:      time.Now,
	}
}

// GET /packages
func (h *CatalogHandler) Packages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	packages, err := h.catalog.ListPackages(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if packages == nil {
		packages = []domain.Package{}
	}
	respondJSON(w, http.StatusOK, packages)
}

// GET /addons
func (h *CatalogHandler) Addons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addons, err := h.catalog.ListAddons(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if addons == nil {
		addons = []domain.Addon{}
	}
	respondJSON(w, http.StatusOK, addons)
}

// GET /delivery-schedule?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *CatalogHandler) DeliverySchedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	from := h.schedule.EarliestCandidate(h.now())
	if raw := r.URL.Query().Get("from"); raw != "" {
		d, err := domain.ParseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_from", "from must be a YYYY-MM-DD date")
			return
		}
		from = d
	}
	to := from.AddDays(defaultScheduleRangeDays)
	if raw := r.URL.Query().Get("to"); raw != "" {
		d, err := domain.ParseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_to", "to must be a YYYY-MM-DD date")
			return
		}
		to = d
	}

	entries, err := h.schedule.AvailableDates(ctx, from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.DeliveryScheduleEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}
