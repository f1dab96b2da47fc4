// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// ErrGatewayRejected marks a send the messaging gateway refused with a
// non-2xx status. DispatchError values with a status code unwrap to it.
var ErrGatewayRejected = errors.New("messaging gateway rejected the request")

// PollError represents a failure fetching or parsing one upstream source.
type PollError struct {
	Source string
	URL    string
	Stage  string // fetch, parse, extract
	Err    error
}

func (e *PollError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("poll error [%s] %s %s: %v", e.Source, e.Stage, e.URL, e.Err)
	}
	return fmt.Sprintf("poll error [%s] %s: %v", e.Source, e.Stage, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// NewPollError creates a new PollError.
func NewPollError(source, stage, url string, err error) *PollError {
	return &PollError{
		Source: source,
		Stage:  stage,
		URL:    url,
		Err:    err,
	}
}

// DispatchError represents a failure sending one message through the gateway.
type DispatchError struct {
	Recipient  string
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch error to %s: gateway status %d", e.Recipient, e.StatusCode)
	}
	return fmt.Sprintf("dispatch error to %s: %v", e.Recipient, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a new DispatchError. A status code with no
// underlying error means the gateway answered and refused.
func NewDispatchError(recipient string, statusCode int, err error) *DispatchError {
	if err == nil && statusCode != 0 {
		err = ErrGatewayRejected
	}
	return &DispatchError{
		Recipient:  recipient,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ValidationError represents a configuration or input validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Is reports whether target matches err in its chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
