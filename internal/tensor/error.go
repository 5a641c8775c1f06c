package tensor

import "errors"

// Error definitions for the tensor package.
var (
	ErrDisposed = errors.New("tensor is disposed")
	ErrShape    = errors.New("tensor shape mismatch")
)
