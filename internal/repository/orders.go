package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const orderColumns = `id, user_id, package_id, package_snapshot, delivery_address_snapshot, stripe_payment_id,
	stripe_session_id, total_amount, currency, delivery_start_date, delivery_end_date, status, created_at, updated_at`

func scanOrder(s rowScanner) (*domain.Order, error) {
	var order domain.Order
	var packageJSON, addressJSON []byte
	if err := s.Scan(
		&order.ID,
		&order.UserID,
		&order.PackageID,
		&packageJSON,
		&addressJSON,
		&order.StripePaymentID,
		&order.StripeSessionID,
		&order.TotalAmount,
		&order.Currency,
		&order.DeliveryStartDate,
		&order.DeliveryEndDate,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(packageJSON, &order.PackageSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal package snapshot: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.DeliveryAddressSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal address snapshot: %w", err)
	}
	return &order, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) GetOrderByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE stripe_payment_id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by payment id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// InsertOrFetchOrder inserts the order and its outbox event in one transaction. When an order
// for the same payment already exists, nothing is written and the stored order is returned
// with created=false.
func (r *Repository) InsertOrFetchOrder(ctx context.Context, order *domain.Order, event *domain.OutboxEvent) (*domain.Order, bool, error) {
	packageJSON, err := json.Marshal(order.PackageSnapshot)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal package snapshot: %w", err)
	}
	addressJSON, err := json.Marshal(order.DeliveryAddressSnapshot)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal address snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, user_id, package_id, package_snapshot, delivery_address_snapshot, stripe_payment_id,
	              stripe_session_id, total_amount, currency, delivery_start_date, delivery_end_date, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	          ON CONFLICT (stripe_payment_id) DO NOTHING
	          RETURNING ` + orderColumns

	saved, err := scanOrder(tx.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		order.PackageID,
		packageJSON,
		addressJSON,
		order.StripePaymentID,
		order.StripeSessionID,
		order.TotalAmount,
		order.Currency,
		order.DeliveryStartDate,
		order.DeliveryEndDate,
		order.Status,
	))
	if errors.Is(err, sql.ErrNoRows) {
		// lost the race: another finalize already committed this payment
		_ = tx.Rollback()
		existing, errGet := r.GetOrderByPaymentID(ctx, order.StripePaymentID)
		if errGet != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrDuplicatePayment, errGet)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, event); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit order: %w", err)
	}
	return saved, true, nil
}
