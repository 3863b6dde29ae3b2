package harmony

import (
	"errors"
	"fmt"
)

type ErrorStatus string

const (
	ErrorStatusUnknown           ErrorStatus = "unknown"
	ErrorStatusNotFound          ErrorStatus = "not_found"
	ErrorStatusInvalidState      ErrorStatus = "invalid_state"
	ErrorStatusInvalidRequest    ErrorStatus = "invalid_request"
	ErrorStatusCapacityExceeded  ErrorStatus = "capacity_exceeded"
	ErrorStatusResourceExhausted ErrorStatus = "resource_exhausted"
	ErrorStatusCanceled          ErrorStatus = "canceled"
)

type Error struct {
	Status ErrorStatus
	err    error
}

func NewError(status ErrorStatus, err error) *Error {
	return &Error{err: err, Status: status}
}

func (e *Error) Error() string {
	return fmt.Sprintf("harmony error(status: %s): %v", e.Status, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

func ErrorHasStatus(target error, status ErrorStatus) bool {
	var e *Error
	if errors.As(target, &e) {
		return e.Status == status
	}
	return false
}
