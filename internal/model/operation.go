package model

import (
	"fmt"
	"strings"
)

// Operation is the arithmetic a model computes.
type Operation string

const (
	// OperationAdd computes a + b.
	OperationAdd Operation = "add"

	// OperationSubtract computes a - b.
	OperationSubtract Operation = "subtract"
)

// Operations lists every supported operation.
func Operations() []Operation {
	return []Operation{OperationAdd, OperationSubtract}
}

// ParseOperation parses a wire name into an Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
	return op, nil
}

// Valid reports whether op is a supported operation.
func (op Operation) Valid() bool {
	return op == OperationAdd || op == OperationSubtract
}

// String returns the wire name.
func (op Operation) String() string {
	return string(op)
}

// Symbol returns the arithmetic sign shown next to the operands.
func (op Operation) Symbol() string {
	if op == OperationSubtract {
		return "-"
	}
	return "+"
}

// Provenance tells where the active model came from.
type Provenance string

const (
	// ProvenanceLoaded means the model was deserialized from an artifact.
	ProvenanceLoaded Provenance = "loaded"

	// ProvenanceSynthetic means the model was constructed in-process.
	ProvenanceSynthetic Provenance = "synthetic"
)
