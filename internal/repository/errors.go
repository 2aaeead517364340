package repository

import (
	"errors"
	"fmt"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

var (
	ErrOrderNotFound        = fmt.Errorf("order %w", domain.ErrNotFound)
	ErrAddonOrderNotFound   = fmt.Errorf("addon order %w", domain.ErrNotFound)
	ErrPackageNotFound      = fmt.Errorf("package %w", domain.ErrNotFound)
	ErrProfileNotFound      = fmt.Errorf("profile %w", domain.ErrNotFound)
	ErrResetAttemptNotFound = fmt.Errorf("password reset attempt %w", domain.ErrNotFound)

	ErrDuplicatePayment = errors.New("order for this payment already exists")
	ErrStaleTransition  = errors.New("record is not in the expected state")
)
