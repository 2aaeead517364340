package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/breaker"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/verify/v2"
)

const statusApproved = "approved"

type TwilioVerifier struct {
	client     *twilio.RestClient
	serviceSID string
	breaker    *breaker.Breaker
}

func NewTwilioVerifier(accountSID, authToken, serviceSID string, timeout time.Duration, b *breaker.Breaker) *TwilioVerifier {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &TwilioVerifier{client: c, serviceSID: serviceSID, breaker: b}
}

func (v *TwilioVerifier) Start(ctx context.Context, phone string) error {
	// the SDK takes no context; honor cancellation before dialing out
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel("sms")

	_, err := breaker.Do(v.breaker, func() (*openapi.VerifyV2Verification, error) {
		resp, err := v.client.VerifyV2.CreateVerification(v.serviceSID, params)
		if err != nil {
			return nil, classify("start verification", err)
		}
		return resp, nil
	})
	return err
}

func (v *TwilioVerifier) Check(ctx context.Context, phone, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	resp, err := breaker.Do(v.breaker, func() (*openapi.VerifyV2VerificationCheck, error) {
		resp, err := v.client.VerifyV2.CreateVerificationCheck(v.serviceSID, params)
		if err != nil {
			return nil, classify("check verification", err)
		}
		return resp, nil
	})
	if err != nil {
		return err
	}
	if resp == nil || resp.Status == nil || *resp.Status != statusApproved {
		return domain.ErrVerificationFailed
	}
	return nil
}

// classify separates caller errors (bad number, expired code) from provider failures.
func classify(op string, err error) error {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		switch {
		case restErr.Status == http.StatusNotFound:
			// expired or already approved verification
			return fmt.Errorf("%w: %s", domain.ErrVerificationFailed, restErr.Message)
		case restErr.Status == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", domain.ErrRateLimited, restErr.Message)
		case restErr.Status >= 400 && restErr.Status < 500:
			return fmt.Errorf("%w: %s: %s", domain.ErrValidation, op, restErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrRemoteService, op, err)
}
