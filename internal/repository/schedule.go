package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// Calendar reads delivery_schedule. It satisfies schedule.Calendar.
type Calendar struct {
	db *sql.DB
}

func (r *Repository) Calendar() *Calendar {
	return &Calendar{db: r.db}
}

func (c *Calendar) FirstEnabledOnOrAfter(ctx context.Context, from, until domain.Date) (domain.Date, bool, error) {
	query := `SELECT event_date FROM delivery_schedule
	          WHERE is_delivery_enabled AND event_date >= $1 AND event_date <= $2
	          ORDER BY event_date LIMIT 1`

	var d domain.Date
	err := c.db.QueryRowContext(ctx, query, from, until).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Date{}, false, nil
	}
	if err != nil {
		return domain.Date{}, false, fmt.Errorf("query first delivery date: %w", err)
	}
	return d, true, nil
}

func (c *Calendar) EnabledFrom(ctx context.Context, start domain.Date, limit int, until domain.Date) ([]domain.Date, error) {
	query := `SELECT event_date FROM delivery_schedule
	          WHERE is_delivery_enabled AND event_date >= $1 AND event_date <= $3
	          ORDER BY event_date LIMIT $2`

	rows, err := c.db.QueryContext(ctx, query, start, limit, until)
	if err != nil {
		return nil, fmt.Errorf("query delivery dates: %w", err)
	}
	defer rows.Close()

	var dates []domain.Date
	for rows.Next() {
		var d domain.Date
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan delivery date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return dates, nil
}

func (c *Calendar) EnabledBetween(ctx context.Context, from, to domain.Date) ([]domain.DeliveryScheduleEntry, error) {
	query := `SELECT event_date, is_delivery_enabled, notes FROM delivery_schedule
	          WHERE is_delivery_enabled AND event_date >= $1 AND event_date <= $2
	          ORDER BY event_date`

	rows, err := c.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query delivery schedule: %w", err)
	}
	defer rows.Close()

	entries := []domain.DeliveryScheduleEntry{}
	for rows.Next() {
		var e domain.DeliveryScheduleEntry
		if err := rows.Scan(&e.EventDate, &e.IsDeliveryEnabled, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan delivery schedule row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// UpsertScheduleEntry is used by seeding and tests; the admin surface owns this table in production.
func (c *Calendar) UpsertScheduleEntry(ctx context.Context, e domain.DeliveryScheduleEntry) error {
	query := `INSERT INTO delivery_schedule (event_date, is_delivery_enabled, notes) VALUES ($1, $2, $3)
	          ON CONFLICT (event_date) DO UPDATE SET is_delivery_enabled = EXCLUDED.is_delivery_enabled, notes = EXCLUDED.notes`

	if _, err := c.db.ExecContext(ctx, query, e.EventDate, e.IsDeliveryEnabled, e.Notes); err != nil {
		return fmt.Errorf("upsert delivery schedule entry: %w", err)
	}
	return nil
}
