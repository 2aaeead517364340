package domain

import "errors"

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrRateLimited            = errors.New("too many requests")

	ErrPaymentNotConfirmed    = errors.New("payment not confirmed")
	ErrMissingLinkageMetadata = errors.New("checkout session is missing linkage metadata")
	ErrLineItemMismatch       = errors.New("checkout line items do not match the cart")

	ErrInsufficientScheduleCoverage = errors.New("not enough delivery days available for this package")
	ErrNoAvailableStartDate         = errors.New("no delivery days available")
	ErrInvalidDuration              = errors.New("package duration must be at least one day")

	ErrVerificationFailed = errors.New("verification code rejected")

	// ErrRemoteService wraps failures of the payment processor, OTP provider or auth admin API.
	ErrRemoteService = errors.New("remote service failure")
)
