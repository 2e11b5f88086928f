// File: services/allocation/errors.go
package allocation

import (
	"errors"
	"fmt"
)

// Code is the machine-readable failure kind surfaced to callers.
type Code string

const (
	CodeValidation          Code = "ValidationError"
	CodeInvalidSource       Code = "InvalidSource"
	CodeDuplicateInSlot     Code = "DuplicateInSlot"
	CodeDuplicateWithDoctor Code = "DuplicateWithDoctor"
	CodeDuplicateOnDate     Code = "DuplicateOnDate"
	CodeDoctorContinuity    Code = "DoctorContinuityRecommended"
	CodeSlotNotFound        Code = "SlotNotFound"
	CodeSlotInactive        Code = "SlotInactive"
	CodeSlotFull            Code = "SlotFullAlternatives"
	CodeNoAvailability      Code = "NoAvailabilityInDepartment"
	CodePreemptionFailed    Code = "PreemptionFailed"
	CodeStoreFault          Code = "StoreFault"
)

// AllocError is the structured failure envelope. Either a token exists and
// all counters are updated, or the request failed with one of these and
// nothing changed.
type AllocError struct {
	Code         Code
	Message      string
	Details      map[string]any
	Suggestions  []string
	Alternatives *Alternatives
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, message string) *AllocError {
	return &AllocError{Code: code, Message: message}
}

func (e *AllocError) withDetail(key string, value any) *AllocError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AllocError) withSuggestions(s ...string) *AllocError {
	e.Suggestions = append(e.Suggestions, s...)
	return e
}

// IsCode reports whether err is an AllocError carrying the given code.
func IsCode(err error, code Code) bool {
	var ae *AllocError
	return errors.As(err, &ae) && ae.Code == code
}

// storeFault wraps an unexpected persistence failure after any compensation
// has run.
func storeFault(op string, err error) *AllocError {
	return &AllocError{
		Code:    CodeStoreFault,
		Message: fmt.Sprintf("%s failed: %v", op, err),
	}
}
