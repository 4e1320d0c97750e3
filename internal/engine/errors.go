package engine

import (
	"errors"
	"fmt"
)

// ReduceErrorCode categorizes reducer failures.
type ReduceErrorCode string

// ErrCodeOverCapacity indicates a "rest" assignment was requested for a
// variant that has no remaining capacity.
const ErrCodeOverCapacity ReduceErrorCode = "OVER_CAPACITY"

// ReduceError is a reducer failure with enough structure for the edit
// pipeline to report which variant contradicted its declared total.
//
// The reducer is deliberately permissive - unmatched input is ignored,
// not an error - so a ReduceError always signals a genuine numeric
// contradiction that must not be accepted into the order.
type ReduceError struct {
	Code     ReduceErrorCode
	Message  string
	Color    string
	Size     string
	Assigned int
	Total    int
}

// Error implements the error interface.
func (e *ReduceError) Error() string {
	if e.Color != "" {
		return fmt.Sprintf("%s: %s (color=%s, assigned=%d, total=%d)",
			e.Code, e.Message, e.Color, e.Assigned, e.Total)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsOverCapacity reports whether err is an over-capacity reducer failure.
// Uses errors.As to handle wrapped errors.
func IsOverCapacity(err error) bool {
	var re *ReduceError
	if errors.As(err, &re) {
		return re.Code == ErrCodeOverCapacity
	}
	return false
}

// newOverCapacityError creates the failure for a "rest" assignment with
// no remaining capacity.
func newOverCapacityError(color, size string, assigned, total int) *ReduceError {
	return &ReduceError{
		Code:     ErrCodeOverCapacity,
		Message:  fmt.Sprintf("cannot assign rest to %s: %d of %d already assigned", size, assigned, total),
		Color:    color,
		Size:     size,
		Assigned: assigned,
		Total:    total,
	}
}
