package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/breaker"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeGateway struct {
	api     *client.API
	breaker *breaker.Breaker
}

func NewStripeGateway(secretKey string, b *breaker.Breaker) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{api: sc, breaker: b}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: checkout needs at least one item", domain.ErrValidation)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   req.Metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, item := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(item.Name),
			Metadata: item.Metadata,
		}
		if item.ImageURL != "" {
			product.Images = []*string{stripe.String(item.ImageURL)}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(strings.ToLower(req.Currency)),
				UnitAmount:  stripe.Int64(ToMinorUnits(item.UnitPrice)),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	params.Context = ctx

	s, err := breaker.Do(g.breaker, func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string, withLineItems bool) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	if withLineItems {
		params.AddExpand("line_items.data.price.product")
	}

	s, err := breaker.Do(g.breaker, func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.Get(id, params)
	})
	if err != nil {
		return nil, wrapStripeError("retrieve checkout session", err)
	}

	session := toCheckoutSession(s)
	if withLineItems && s.LineItems != nil && s.LineItems.HasMore {
		// expansion only returns the first page
		items, err := g.listLineItems(ctx, id)
		if err != nil {
			return nil, err
		}
		session.LineItems = items
	}
	return session, nil
}

func (g *StripeGateway) listLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.AddExpand("data.price.product")

	return breaker.Do(g.breaker, func() ([]LineItem, error) {
		var items []LineItem
		it := g.api.CheckoutSessions.ListLineItems(params)
		for it.Next() {
			items = append(items, toLineItem(it.LineItem()))
		}
		if err := it.Err(); err != nil {
			return nil, wrapStripeError("list line items", err)
		}
		return items, nil
	})
}

func (g *StripeGateway) ListPaymentIntents(ctx context.Context, from, to time.Time) ([]PaymentIntent, error) {
	params := &stripe.PaymentIntentListParams{
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: from.Unix(),
			LesserThan:         to.Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	return breaker.Do(g.breaker, func() ([]PaymentIntent, error) {
		var intents []PaymentIntent
		it := g.api.PaymentIntents.List(params)
		for it.Next() {
			pi := it.PaymentIntent()
			intents = append(intents, PaymentIntent{
				ID:       pi.ID,
				Amount:   FromMinorUnits(pi.AmountReceived),
				Currency: strings.ToUpper(string(pi.Currency)),
				Status:   string(pi.Status),
				Created:  time.Unix(pi.Created, 0).UTC(),
			})
		}
		if err := it.Err(); err != nil {
			return nil, wrapStripeError("list payment intents", err)
		}
		return intents, nil
	})
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
		AmountTotal:   FromMinorUnits(s.AmountTotal),
		Currency:      strings.ToUpper(string(s.Currency)),
		CustomerEmail: s.CustomerEmail,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	if s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			out.LineItems = append(out.LineItems, toLineItem(li))
		}
	}
	return out
}

func toLineItem(li *stripe.LineItem) LineItem {
	item := LineItem{
		Name:        li.Description,
		Quantity:    int(li.Quantity),
		AmountTotal: FromMinorUnits(li.AmountTotal),
	}
	if li.Price != nil {
		item.UnitPrice = FromMinorUnits(li.Price.UnitAmount)
		if li.Price.Product != nil {
			item.ProductMetadata = li.Price.Product.Metadata
			if li.Price.Product.Name != "" {
				item.Name = li.Price.Product.Name
			}
		}
	}
	return item
}

// wrapStripeError keeps invalid-request errors distinguishable from provider outages.
func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == 404:
			return fmt.Errorf("%w: %s: %s", domain.ErrNotFound, op, stripeErr.Msg)
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
			return fmt.Errorf("%w: %s: %s", domain.ErrValidation, op, stripeErr.Msg)
		}
	}
	if errors.Is(err, domain.ErrRemoteService) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrRemoteService, op, err)
}
