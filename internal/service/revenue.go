package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const paymentIntentSucceeded = "succeeded"

type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Payments int             `json:"payments"`
}

type RevenueReport struct {
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Totals []CurrencyTotal `json:"totals"`
}

type RevenueService struct {
	payment *PaymentHandler
}

func NewRevenueService(payment *PaymentHandler) *RevenueService {
	return &RevenueService{payment: payment}
}

// Report sums succeeded payments created in [from, to), per currency.
func (s *RevenueService) Report(ctx context.Context, from, to time.Time) (*RevenueReport, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", domain.ErrValidation)
	}

	intents, err := s.payment.paymentIntents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	byCurrency := map[string]*CurrencyTotal{}
	for _, pi := range intents {
		if pi.Status != paymentIntentSucceeded {
			continue
		}
		t, ok := byCurrency[pi.Currency]
		if !ok {
			t = &CurrencyTotal{Currency: pi.Currency, Amount: decimal.Zero}
			byCurrency[pi.Currency] = t
		}
		t.Amount = t.Amount.Add(pi.Amount)
		t.Payments++
	}

	report := &RevenueReport{From: from, To: to, Totals: make([]CurrencyTotal, 0, len(byCurrency))}
	for _, t := range byCurrency {
		report.Totals = append(report.Totals, *t)
	}
	sort.Slice(report.Totals, func(i, j int) bool { return report.Totals[i].Currency < report.Totals[j].Currency })
	return report, nil
}
