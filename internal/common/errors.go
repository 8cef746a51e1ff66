// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the pipeline, the register and the CLI.
var (
	// Register errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Reference data and classification errors.
	ErrReferenceUnavailable = errors.New("reference data unavailable")
	ErrOracleUnavailable    = errors.New("classification oracle unavailable")

	// Input errors.
	ErrNoTransactions = errors.New("no valid transactions found in input")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError is a failure the CLI reports to the operator as is. Hint, when
// set, names the setting or command that fixes it.
type UserError struct {
	Err         error
	UserMessage string
	Hint        string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with an operator-facing message.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// NewUserErrorHint is NewUserError with a remedy attached.
func NewUserErrorHint(userMessage, hint string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Hint:        hint,
		Err:         err,
	}
}

// HintFor returns the remedy carried by the first UserError in err's chain
// that has one.
func HintFor(err error) string {
	for err != nil {
		var userErr *UserError
		if !errors.As(err, &userErr) {
			return ""
		}
		if userErr.Hint != "" {
			return userErr.Hint
		}
		err = userErr.Err
	}
	return ""
}
