package model

import "time"

// Instance is a resolved model together with where it came from.
type Instance struct {
	LoadedAt   time.Time
	Predictor  Predictor
	Operation  Operation
	Provenance Provenance
	Source     string
	LoadError  string
	Generation uint64
}
