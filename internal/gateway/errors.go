package gateway

import (
	"errors"
	"fmt"
)

// ErrorClass buckets gateway failures by how callers must react: configuration
// errors need a credential fix, validation errors a different request, transient
// errors a later retry.
type ErrorClass string

const (
	ClassConfiguration ErrorClass = "configuration"
	ClassValidation    ErrorClass = "validation"
	ClassTransient     ErrorClass = "transient"
	ClassExhausted     ErrorClass = "exhausted"
)

var (
	// ErrMissingCredential indicates that no API key was supplied for the call.
	ErrMissingCredential = errors.New("gateway: credential required")
	// ErrEmptyCompletion indicates the model returned a response with no choices.
	ErrEmptyCompletion = errors.New("gateway: empty completion response")
	// ErrNoImagePayload indicates an otherwise successful response carried no
	// embeddable image data. Treated as transient: the backend intermittently
	// returns empty candidates under load.
	ErrNoImagePayload = errors.New("gateway: no image payload in response")
)

// Error wraps an underlying failure with its class and the operation that hit it.
type Error struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Class)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(class ErrorClass, op string, cause error) *Error {
	return &Error{Class: class, Op: op, Err: cause}
}

// NewConfigurationError marks a failure that requires a credential or setup fix.
func NewConfigurationError(op string, cause error) error {
	return newError(ClassConfiguration, op, cause)
}

// NewValidationError marks a model response that does not match the expected shape.
func NewValidationError(op string, cause error) error {
	return newError(ClassValidation, op, cause)
}

// NewTransientError marks a network or server-side failure worth retrying later.
func NewTransientError(op string, cause error) error {
	return newError(ClassTransient, op, cause)
}

// NewExhaustedError marks a terminal failure after all retry attempts, carrying
// the last underlying cause.
func NewExhaustedError(op string, cause error) error {
	return newError(ClassExhausted, op, cause)
}

// ClassOf reports the class of a gateway error, or ClassTransient for errors
// that did not originate here (plain network failures and the like).
func ClassOf(err error) ErrorClass {
	var gatewayErr *Error
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Class
	}
	return ClassTransient
}

// IsConfiguration reports whether the error requires user configuration to fix.
func IsConfiguration(err error) bool {
	return ClassOf(err) == ClassConfiguration
}

// IsRetryable reports whether a later identical call could plausibly succeed.
func IsRetryable(err error) bool {
	class := ClassOf(err)
	return class == ClassTransient
}
