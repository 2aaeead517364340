package verify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// Verifier sends and checks one-time codes.
type Verifier interface {
	Start(ctx context.Context, phone string) error
	Check(ctx context.Context, phone, code string) error
}

var (
	e164     = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	otpDigit = regexp.MustCompile(`^\d{4,10}$`)
)

// NormalizePhone strips formatting characters and requires E.164.
func NormalizePhone(raw string) (string, error) {
	phone := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if !e164.MatchString(phone) {
		return "", fmt.Errorf("%w: phone number must be in E.164 format", domain.ErrValidation)
	}
	return phone, nil
}

func ValidateCode(code string) error {
	if !otpDigit.MatchString(strings.TrimSpace(code)) {
		return fmt.Errorf("%w: verification code must be numeric", domain.ErrValidation)
	}
	return nil
}
