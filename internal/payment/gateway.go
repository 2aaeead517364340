package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const StatusPaid = "paid"

// Session metadata keys linking a payment back to storefront records.
const (
	MetaUserID            = "user_id"
	MetaPackageID         = "package_id"
	MetaMainOrderID       = "main_order_id"
	MetaAddonDeliveryDate = "addon_delivery_date"
	MetaCartSummary       = "cart_summary"
	MetaCheckoutKind      = "checkout_kind"

	// ProductMetaAddonID is carried on each addon line item's product.
	ProductMetaAddonID = "addon_id"
)

type CheckoutItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	ImageURL  string
	Metadata  map[string]string
}

type CheckoutRequest struct {
	Items         []CheckoutItem
	Metadata      map[string]string
	CustomerEmail string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type LineItem struct {
	Name            string
	Quantity        int
	UnitPrice       decimal.Decimal
	AmountTotal     decimal.Decimal
	ProductMetadata map[string]string
}

type CheckoutSession struct {
	ID              string
	URL             string
	PaymentStatus   string
	PaymentIntentID string
	Metadata        map[string]string
	AmountTotal     decimal.Decimal
	Currency        string
	CustomerEmail   string
	LineItems       []LineItem
}

func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == StatusPaid
}

// PaymentID is the identifier orders are keyed on: the payment intent, or the session
// itself when no intent exists.
func (s *CheckoutSession) PaymentID() string {
	if s.PaymentIntentID != "" {
		return s.PaymentIntentID
	}
	return s.ID
}

type PaymentIntent struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
	Created  time.Time
}

// Gateway is the payment processor as the storefront sees it.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string, withLineItems bool) (*CheckoutSession, error)
	ListPaymentIntents(ctx context.Context, from, to time.Time) ([]PaymentIntent, error)
}

// ToMinorUnits converts an amount to cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
