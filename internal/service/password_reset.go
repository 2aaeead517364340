package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/auth"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
	"github.com/spice-admin/customer-app-sub000/internal/verify"
)

const minPasswordLength = 8

type ResetStore interface {
	GetProfileByPhone(ctx context.Context, phone string) (*domain.Profile, error)
	repository.PasswordResetRepository
}

// PasswordResetService resets a password after the user proves control of their phone.
// Start -> Verify issues a short-lived reset token; Complete spends it exactly once.
type PasswordResetService struct {
	repo        ResetStore
	verifier    *VerifyHandler
	admin       *AdminHandler
	tokens      *auth.ResetTokens
	limiter     *verify.Limiter
	maxAttempts int
	metrics     *metrics.Metrics
}

func NewPasswordResetService(
	repo ResetStore,
	verifier *VerifyHandler,
	admin *AdminHandler,
	tokens *auth.ResetTokens,
	limiter *verify.Limiter,
	maxAttempts int,
	m *metrics.Metrics,
) *PasswordResetService {
	return &PasswordResetService{
		repo:        repo,
		verifier:    verifier,
		admin:       admin,
		tokens:      tokens,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		metrics:     m,
	}
}

// Start sends a code when the phone belongs to an account. Unknown numbers succeed silently.
func (s *PasswordResetService) Start(ctx context.Context, rawPhone string) error {
	phone, err := verify.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	if !s.limiter.Allow(phone) {
		s.metrics.OTPRequest("reset_send", "rate_limited")
		return fmt.Errorf("%w: too many codes requested for this number", domain.ErrRateLimited)
	}

	log := logger.FromContext(ctx)
	profile, err := s.repo.GetProfileByPhone(ctx, phone)
	if errors.Is(err, repository.ErrProfileNotFound) {
		log.Info("password reset requested for unknown phone")
		s.metrics.OTPRequest("reset_send", "unknown_phone")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}

	if err := s.verifier.start(ctx, phone); err != nil {
		s.metrics.OTPRequest("reset_send", "error")
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	attempt := &domain.PasswordResetAttempt{
		ID:     uuid.New(),
		Phone:  phone,
		UserID: profile.UserID,
		Status: domain.PasswordResetPending,
	}
	if err := s.repo.CreateResetAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record reset attempt: %w", err)
	}
	s.metrics.OTPRequest("reset_send", "sent")
	log.Info("password reset started", "attempt_id", attempt.ID, "user_id", profile.UserID)
	return nil
}

// Verify checks the code against the latest pending attempt and returns a reset token.
func (s *PasswordResetService) Verify(ctx context.Context, rawPhone, code string) (string, error) {
	phone, err := verify.NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}
	if err := verify.ValidateCode(code); err != nil {
		return "", err
	}

	attempt, err := s.repo.LatestResetAttempt(ctx, phone)
	if errors.Is(err, repository.ErrResetAttemptNotFound) {
		return "", domain.ErrVerificationFailed
	}
	if err != nil {
		return "", fmt.Errorf("failed to load reset attempt: %w", err)
	}
	if attempt.Status != domain.PasswordResetPending {
		return "", domain.ErrVerificationFailed
	}

	n, err := s.repo.IncrementResetAttempts(ctx, attempt.ID)
	if err != nil {
		return "", fmt.Errorf("failed to count reset attempt: %w", err)
	}
	if n > s.maxAttempts {
		s.metrics.OTPRequest("reset_check", "locked")
		return "", fmt.Errorf("%w: too many wrong codes, start over", domain.ErrRateLimited)
	}

	if err := s.verifier.check(ctx, phone, code); err != nil {
		s.metrics.OTPRequest("reset_check", "rejected")
		return "", err
	}

	err = s.repo.TransitionResetAttempt(ctx, attempt.ID, domain.PasswordResetPending, domain.PasswordResetVerified)
	if errors.Is(err, repository.ErrStaleTransition) {
		return "", domain.ErrVerificationFailed
	}
	if err != nil {
		return "", fmt.Errorf("failed to update reset attempt: %w", err)
	}
	s.metrics.OTPRequest("reset_check", "approved")

	token, err := s.tokens.Issue(attempt.UserID, attempt.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to issue reset token: %w", err)
	}
	return token, nil
}

// Complete consumes the reset token and sets the new password.
func (s *PasswordResetService) Complete(ctx context.Context, token, newPassword string) error {
	if utf8.RuneCountInString(strings.TrimSpace(newPassword)) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	attemptID, err := uuid.Parse(claims.AttemptID)
	if err != nil {
		return fmt.Errorf("%w: invalid reset token", domain.ErrValidation)
	}

	attempt, err := s.repo.GetResetAttempt(ctx, attemptID)
	if errors.Is(err, repository.ErrResetAttemptNotFound) {
		return fmt.Errorf("%w: invalid reset token", domain.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("failed to load reset attempt: %w", err)
	}
	if attempt.UserID != claims.Subject {
		return fmt.Errorf("%w: invalid reset token", domain.ErrValidation)
	}

	// consume first so a token can never change the password twice
	err = s.repo.TransitionResetAttempt(ctx, attempt.ID, domain.PasswordResetVerified, domain.PasswordResetConsumed)
	if errors.Is(err, repository.ErrStaleTransition) {
		return fmt.Errorf("%w: reset token was already used", domain.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("failed to update reset attempt: %w", err)
	}

	if err := s.admin.updatePassword(ctx, attempt.UserID, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	logger.FromContext(ctx).Info("password reset completed", "user_id", attempt.UserID)
	return nil
}
