package service

import "errors"

// Error definitions for the service package.
var (
	ErrStalePrediction = errors.New("prediction is stale: the model changed while computing")
)
