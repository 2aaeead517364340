package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const DefaultHorizonDays = 180

// Window is a resolved delivery period. Start and End are both enabled days.
type Window struct {
	Start domain.Date `json:"start"`
	End   domain.Date `json:"end"`
	Days  int         `json:"days"`
}

type Resolver struct {
	calendar    Calendar
	horizonDays int
	location    *time.Location
}

func NewResolver(calendar Calendar, horizonDays int, location *time.Location) *Resolver {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if location == nil {
		location = time.UTC
	}
	return &Resolver{
		calendar:    calendar,
		horizonDays: horizonDays,
		location:    location,
	}
}

// EarliestCandidate is the day after now in the delivery time zone.
func (r *Resolver) EarliestCandidate(now time.Time) domain.Date {
	return domain.DateOf(now.In(r.location)).AddDays(1)
}

// Resolve picks the first enabled day on or after earliest and ends the window on the
// durationDays-th enabled day counted from it. Partial windows are never returned.
func (r *Resolver) Resolve(ctx context.Context, earliest domain.Date, durationDays int) (Window, error) {
	if durationDays <= 0 {
		return Window{}, fmt.Errorf("%w: got %d", domain.ErrInvalidDuration, durationDays)
	}

	start, ok, err := r.calendar.FirstEnabledOnOrAfter(ctx, earliest, earliest.AddDays(r.horizonDays))
	if err != nil {
		return Window{}, fmt.Errorf("failed to find start date: %w", err)
	}
	if !ok {
		return Window{}, fmt.Errorf("%w: none on or after %s", domain.ErrNoAvailableStartDate, earliest)
	}

	dates, err := r.calendar.EnabledFrom(ctx, start, durationDays, start.AddDays(r.horizonDays))
	if err != nil {
		return Window{}, fmt.Errorf("failed to list delivery dates: %w", err)
	}
	if len(dates) < durationDays {
		return Window{}, fmt.Errorf("%w: need %d days from %s, found %d",
			domain.ErrInsufficientScheduleCoverage, durationDays, start, len(dates))
	}

	return Window{Start: start, End: dates[durationDays-1], Days: durationDays}, nil
}

// ValidateDeliveryDate checks that d is an enabled day no earlier than the earliest candidate.
func (r *Resolver) ValidateDeliveryDate(ctx context.Context, d domain.Date, now time.Time) error {
	if d.Before(r.EarliestCandidate(now)) {
		return fmt.Errorf("%w: delivery date %s is too soon", domain.ErrValidation, d)
	}
	entries, err := r.calendar.EnabledBetween(ctx, d, d)
	if err != nil {
		return fmt.Errorf("failed to check delivery date: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no delivery on %s", domain.ErrValidation, d)
	}
	return nil
}

// AvailableDates lists enabled days in [from, to], clamped to the horizon.
func (r *Resolver) AvailableDates(ctx context.Context, from, to domain.Date) ([]domain.DeliveryScheduleEntry, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s is before start %s", domain.ErrValidation, to, from)
	}
	if limit := from.AddDays(r.horizonDays); to.After(limit) {
		to = limit
	}
	entries, err := r.calendar.EnabledBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery dates: %w", err)
	}
	return entries, nil
}

func (r *Resolver) Location() *time.Location {
	return r.location
}
