package milestone

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMilestoneAssociation = errors.New("milestone must belong to exactly one of a project or a task")
	ErrDoublePaymentChannel        = errors.New("unit is already settled through another payment channel")
	ErrProgressAmount              = errors.New("progress milestones carry no amount")
	ErrInvalidMilestoneType        = errors.New("invalid milestone type")
	ErrInvalidAmount               = errors.New("payment milestones need a positive amount")
	ErrInvalidUnit                 = errors.New("invalid work unit")
	ErrUnitNotFound                = errors.New("work unit not found")
	ErrMilestoneNotFound           = errors.New("milestone not found")
	ErrNotApproved                 = errors.New("milestone must be approved before it is paid")
	ErrNoAssignee                  = errors.New("work unit has no assignee to pay")
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
