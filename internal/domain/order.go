package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// PackageSnapshot freezes the package as it was sold.
type PackageSnapshot struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Price decimal.Decimal `json:"price"`
	Days  int             `json:"days"`
}

// Order is a confirmed subscription purchase. StripePaymentID is unique across orders
// and DeliveryStartDate is never after DeliveryEndDate.
type Order struct {
	ID                      uuid.UUID       `json:"id"`
	UserID                  string          `json:"user_id"`
	PackageID               string          `json:"package_id"`
	PackageSnapshot         PackageSnapshot `json:"package"`
	DeliveryAddressSnapshot Address         `json:"delivery_address"`
	StripePaymentID         string          `json:"stripe_payment_id"`
	StripeSessionID         string          `json:"stripe_session_id"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
	Currency                string          `json:"currency"`
	DeliveryStartDate       Date            `json:"delivery_start_date"`
	DeliveryEndDate         Date            `json:"delivery_end_date"`
	Status                  OrderStatus     `json:"status"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// Covers reports whether d falls inside the order's delivery window.
func (o *Order) Covers(d Date) bool {
	return !d.Before(o.DeliveryStartDate) && !d.After(o.DeliveryEndDate)
}

type OrderedAddon struct {
	AddonID         string          `json:"addon_id"`
	Name            string          `json:"name"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Quantity        int             `json:"quantity"`
}

type AddonOrder struct {
	ID                    uuid.UUID       `json:"id"`
	UserID                string          `json:"user_id"`
	MainOrderID           uuid.UUID       `json:"main_order_id"`
	AddonDeliveryDate     Date            `json:"addon_delivery_date"`
	AddonsOrdered         []OrderedAddon  `json:"addons_ordered"`
	TotalAddonPrice       decimal.Decimal `json:"total_addon_price"`
	Currency              string          `json:"currency"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id"`
	StripeSessionID       string          `json:"stripe_session_id"`
	CreatedAt             time.Time       `json:"created_at"`
}
