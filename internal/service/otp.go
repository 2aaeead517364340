package service

import (
	"context"
	"fmt"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
	"github.com/spice-admin/customer-app-sub000/internal/verify"
)

// PhoneVerifier marks a profile's phone as confirmed.
type PhoneVerifier interface {
	MarkPhoneVerified(ctx context.Context, userID, phone string) error
}

// OTPService confirms phone numbers at sign-up and from the profile page.
type OTPService struct {
	profiles PhoneVerifier
	verifier *VerifyHandler
	limiter  *verify.Limiter
	metrics  *metrics.Metrics
}

func NewOTPService(profiles PhoneVerifier, verifier *VerifyHandler, limiter *verify.Limiter, m *metrics.Metrics) *OTPService {
	return &OTPService{
		profiles: profiles,
		verifier: verifier,
		limiter:  limiter,
		metrics:  m,
	}
}

func (s *OTPService) Send(ctx context.Context, rawPhone string) error {
	phone, err := verify.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	if !s.limiter.Allow(phone) {
		s.metrics.OTPRequest("signup_send", "rate_limited")
		return fmt.Errorf("%w: too many codes requested for this number", domain.ErrRateLimited)
	}

	if err := s.verifier.start(ctx, phone); err != nil {
		s.metrics.OTPRequest("signup_send", "error")
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	s.metrics.OTPRequest("signup_send", "sent")
	return nil
}

// Verify checks the code. For a signed-in user the phone is then recorded as verified on the profile.
func (s *OTPService) Verify(ctx context.Context, userID, rawPhone, code string) error {
	phone, err := verify.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	if err := verify.ValidateCode(code); err != nil {
		return err
	}

	if err := s.verifier.check(ctx, phone, code); err != nil {
		s.metrics.OTPRequest("signup_check", "rejected")
		return err
	}
	s.metrics.OTPRequest("signup_check", "approved")

	if userID == "" {
		return nil
	}
	if err := s.profiles.MarkPhoneVerified(ctx, userID, phone); err != nil {
		return fmt.Errorf("failed to mark phone verified: %w", err)
	}
	logger.FromContext(ctx).Info("phone verified", "user_id", userID)
	return nil
}
