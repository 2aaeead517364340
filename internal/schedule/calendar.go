package schedule

import (
	"context"
	"sort"
	"sync"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// Calendar answers questions about delivery-enabled days. Every query is bounded by until (inclusive)
// and results are ascending.
type Calendar interface {
	FirstEnabledOnOrAfter(ctx context.Context, from, until domain.Date) (domain.Date, bool, error)
	EnabledFrom(ctx context.Context, start domain.Date, limit int, until domain.Date) ([]domain.Date, error)
	EnabledBetween(ctx context.Context, from, to domain.Date) ([]domain.DeliveryScheduleEntry, error)
}

// MemoryCalendar is a Calendar over a fixed set of entries. Days without an entry are not deliverable.
type MemoryCalendar struct {
	mu      sync.RWMutex
	entries map[domain.Date]domain.DeliveryScheduleEntry
}

func NewMemoryCalendar(entries ...domain.DeliveryScheduleEntry) *MemoryCalendar {
	c := &MemoryCalendar{entries: make(map[domain.Date]domain.DeliveryScheduleEntry)}
	for _, e := range entries {
		c.entries[e.EventDate] = e
	}
	return c
}

// Enable marks each date as deliverable.
func (c *MemoryCalendar) Enable(dates ...domain.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dates {
		c.entries[d] = domain.DeliveryScheduleEntry{EventDate: d, IsDeliveryEnabled: true}
	}
}

func (c *MemoryCalendar) Disable(dates ...domain.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dates {
		c.entries[d] = domain.DeliveryScheduleEntry{EventDate: d, IsDeliveryEnabled: false}
	}
}

func (c *MemoryCalendar) enabledSorted(from, until domain.Date) []domain.DeliveryScheduleEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.DeliveryScheduleEntry
	for d, e := range c.entries {
		if e.IsDeliveryEnabled && !d.Before(from) && !d.After(until) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	return out
}

func (c *MemoryCalendar) FirstEnabledOnOrAfter(ctx context.Context, from, until domain.Date) (domain.Date, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Date{}, false, err
	}
	enabled := c.enabledSorted(from, until)
	if len(enabled) == 0 {
		return domain.Date{}, false, nil
	}
	return enabled[0].EventDate, true, nil
}

func (c *MemoryCalendar) EnabledFrom(ctx context.Context, start domain.Date, limit int, until domain.Date) ([]domain.Date, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enabled := c.enabledSorted(start, until)
	if len(enabled) > limit {
		enabled = enabled[:limit]
	}
	dates := make([]domain.Date, 0, len(enabled))
	for _, e := range enabled {
		dates = append(dates, e.EventDate)
	}
	return dates, nil
}

func (c *MemoryCalendar) EnabledBetween(ctx context.Context, from, to domain.Date) ([]domain.DeliveryScheduleEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.enabledSorted(from, to), nil
}
