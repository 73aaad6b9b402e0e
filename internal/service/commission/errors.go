package commission

import (
	"errors"
	"fmt"
)

var (
	ErrNoApplicableTier        = errors.New("no applicable commission tier")
	ErrAmbiguousTier           = errors.New("more than one active commission tier matches the amount")
	ErrOverlappingTierRange    = errors.New("commission tier range overlaps an active tier")
	ErrInvalidTier             = errors.New("invalid commission tier")
	ErrTierNotFound            = errors.New("commission tier not found")
	ErrSpecialRateTarget       = errors.New("special rate needs a user or a category")
	ErrCommissionNotFound      = errors.New("commission not found")
	ErrAlreadyDiscounted       = errors.New("commission already discounted")
	ErrInvalidPercentage       = errors.New("percentage must be between 0 and 100")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrCommissionExceedsAmount = errors.New("commission exceeds the transaction amount")
)

// ValidationError reports which input field broke a constructor rule.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
