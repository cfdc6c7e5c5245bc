package domain

import "errors"

// Validation errors: malformed input, rejected before any mutation
var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidReason   = errors.New("reason must be at least 50 characters")
	ErrInvalidCategory = errors.New("invalid dispute category")
)

// Policy violations: valid input rejected by economic rules, no partial effect
var (
	ErrInsufficientFunds     = errors.New("insufficient balance")
	ErrSuspendedAccount      = errors.New("account suspended by active dispute")
	ErrForbiddenAccount      = errors.New("account forfeited")
	ErrDuplicateDispute      = errors.New("account already has an active dispute")
	ErrSelfDispute           = errors.New("cannot dispute own content")
	ErrEscrowAlreadyDisputed = errors.New("escrow already under dispute")
	ErrAlreadyResolved       = errors.New("dispute already resolved")
	ErrAlreadyForfeited      = errors.New("account already forfeited")
	ErrEscrowDepleted        = errors.New("escrow balance depleted")
	ErrContentUnderReview    = errors.New("content under dispute review")
	ErrExceedsExchangeable   = errors.New("amount exceeds exchangeable balance")
	ErrNotVerified           = errors.New("content not verified")
	ErrInvalidTransition     = errors.New("transition not permitted")
)

// Infrastructure errors surfaced to callers
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("concurrent modification detected")
)

// IsValidation reports whether err belongs to the validation taxonomy
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrInvalidCategory)
}

// IsPolicyViolation reports whether err belongs to the policy taxonomy
func IsPolicyViolation(err error) bool {
	for _, e := range []error{
		ErrInsufficientFunds, ErrSuspendedAccount, ErrForbiddenAccount,
		ErrDuplicateDispute, ErrSelfDispute, ErrEscrowAlreadyDisputed,
		ErrAlreadyResolved, ErrAlreadyForfeited, ErrEscrowDepleted,
		ErrContentUnderReview, ErrExceedsExchangeable, ErrNotVerified,
		ErrInvalidTransition,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
