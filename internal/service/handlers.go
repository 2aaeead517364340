package service

import (
	"context"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/verify"
)

// PasswordUpdater changes a user's password at the auth provider.
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, userID, password string) error
}

type PaymentHandler struct {
	gateway payment.Gateway
	timeout time.Duration
}

func NewPaymentHandler(gateway payment.Gateway, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
		timeout: timeout,
	}
}

func (h *PaymentHandler) session(ctx context.Context, id string, withLineItems bool) (*payment.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.gateway.GetCheckoutSession(ctx, id, withLineItems)
}

func (h *PaymentHandler) createSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.gateway.CreateCheckoutSession(ctx, req)
}

func (h *PaymentHandler) paymentIntents(ctx context.Context, from, to time.Time) ([]payment.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.gateway.ListPaymentIntents(ctx, from, to)
}

type VerifyHandler struct {
	verifier verify.Verifier
	timeout  time.Duration
}

func NewVerifyHandler(verifier verify.Verifier, timeout time.Duration) *VerifyHandler {
	return &VerifyHandler{
		verifier: verifier,
		timeout:  timeout,
	}
}

func (h *VerifyHandler) start(ctx context.Context, phone string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.verifier.Start(ctx, phone)
}

func (h *VerifyHandler) check(ctx context.Context, phone, code string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.verifier.Check(ctx, phone, code)
}

type AdminHandler struct {
	updater PasswordUpdater
	timeout time.Duration
}

func NewAdminHandler(updater PasswordUpdater, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		updater: updater,
		timeout: timeout,
	}
}

func (h *AdminHandler) updatePassword(ctx context.Context, userID, password string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.updater.UpdatePassword(ctx, userID, password)
}
