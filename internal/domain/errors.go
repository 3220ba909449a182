package domain

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrValidation               = errors.New("validation failed")
	ErrDuplicateContainerNumber = errors.New("container number already exists")
	ErrTransitionNotAllowed     = errors.New("status transition not allowed")
	ErrDeleteNotConfirmed       = errors.New("delete requires confirmation")
)

// ValidationError collects every field problem found in one submission.
type ValidationError struct {
	errs *multierror.Error
}

// Add records a problem with field.
func (e *ValidationError) Add(field, message string) {
	e.errs = multierror.Append(e.errs, fmt.Errorf("%s: %s", field, message))
}

// ErrorOrNil returns e if any problem was recorded, nil otherwise.
func (e *ValidationError) ErrorOrNil() error {
	if e == nil || e.errs == nil || len(e.errs.Errors) == 0 {
		return nil
	}
	return e
}

// Problems lists the individual field messages.
func (e *ValidationError) Problems() []string {
	if e == nil || e.errs == nil {
		return nil
	}
	out := make([]string, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		out = append(out, err.Error())
	}
	return out
}

func (e *ValidationError) Error() string {
	if e.errs == nil {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, e.errs.Error())
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PersistenceError reports a store call that was rejected.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SubscriptionError is delivered when a live subscription reports a failure.
// The subscription stays open; the previous snapshot remains valid.
type SubscriptionError struct {
	Err error
}

func NewSubscriptionError(err error) *SubscriptionError {
	return &SubscriptionError{Err: err}
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription error: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
