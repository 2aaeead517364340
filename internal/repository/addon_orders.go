package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const addonOrderColumns = `id, user_id, main_order_id, addon_delivery_date, addons_ordered, total_addon_price,
	currency, stripe_payment_intent_id, stripe_session_id, created_at`

func scanAddonOrder(s rowScanner) (*domain.AddonOrder, error) {
	var order domain.AddonOrder
	var addonsJSON []byte
	if err := s.Scan(
		&order.ID,
		&order.UserID,
		&order.MainOrderID,
		&order.AddonDeliveryDate,
		&addonsJSON,
		&order.TotalAddonPrice,
		&order.Currency,
		&order.StripePaymentIntentID,
		&order.StripeSessionID,
		&order.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addonsJSON, &order.AddonsOrdered); err != nil {
		return nil, fmt.Errorf("unmarshal ordered addons: %w", err)
	}
	return &order, nil
}

func (r *Repository) GetAddonOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.AddonOrder, error) {
	query := `SELECT ` + addonOrderColumns + ` FROM addon_orders WHERE stripe_payment_intent_id = $1`

	order, err := scanAddonOrder(r.db.QueryRowContext(ctx, query, paymentIntentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddonOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query addon order by payment intent: %w", err)
	}
	return order, nil
}

func (r *Repository) ListAddonOrdersByUserID(ctx context.Context, userID string) ([]*domain.AddonOrder, error) {
	query := `SELECT ` + addonOrderColumns + ` FROM addon_orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query addon orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.AddonOrder{}
	for rows.Next() {
		order, err := scanAddonOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan addon order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// InsertOrFetchAddonOrder is the addon counterpart of InsertOrFetchOrder, keyed on the payment intent.
func (r *Repository) InsertOrFetchAddonOrder(ctx context.Context, order *domain.AddonOrder, event *domain.OutboxEvent) (*domain.AddonOrder, bool, error) {
	addonsJSON, err := json.Marshal(order.AddonsOrdered)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal ordered addons: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO addon_orders (id, user_id, main_order_id, addon_delivery_date, addons_ordered, total_addon_price,
	              currency, stripe_payment_intent_id, stripe_session_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	          ON CONFLICT (stripe_payment_intent_id) DO NOTHING
	          RETURNING ` + addonOrderColumns

	saved, err := scanAddonOrder(tx.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		order.MainOrderID,
		order.AddonDeliveryDate,
		addonsJSON,
		order.TotalAddonPrice,
		order.Currency,
		order.StripePaymentIntentID,
		order.StripeSessionID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		existing, errGet := r.GetAddonOrderByPaymentIntentID(ctx, order.StripePaymentIntentID)
		if errGet != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrDuplicatePayment, errGet)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert addon order: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, event); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit addon order: %w", err)
	}
	return saved, true, nil
}
