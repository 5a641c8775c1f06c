package inference

import (
	"errors"
	"fmt"
)

// Error definitions for the inference package.
var (
	ErrValidation = errors.New("validation error")
	ErrInference  = errors.New("inference error")
)

// ValidationError reports an operand that is not a finite number.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %q %s", e.Field, e.Value, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InferenceError reports a failed forward pass.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "inference failed: " + e.Err.Error()
}

// Unwrap returns the underlying failure.
func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrInference.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}
