// Package inference runs a resolved model on a pair of operands.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/ju4n97/neurocalc/internal/model"
	"github.com/ju4n97/neurocalc/internal/tensor"
)

// inputWidth is the number of operands fed to the model.
const inputWidth = 2

// Prediction is the outcome of one forward pass.
type Prediction struct {
	Display string  `json:"result"`
	Value   float64 `json:"value"`
}

// Runner executes forward passes. Every transient tensor is released before Predict
// returns.
type Runner struct {
	mem *tensor.Memory
}

// NewRunner creates a runner allocating transient tensors from mem.
func NewRunner(mem *tensor.Memory) *Runner {
	return &Runner{mem: mem}
}

// Predict evaluates p on the row [a, b] and extracts the first scalar.
// Non-finite operands fail with a *ValidationError before anything is allocated, and
// forward failures come back as *InferenceError.
func (r *Runner) Predict(ctx context.Context, p model.Predictor, a, b float64) (Prediction, error) {
	if err := checkFinite("a", a); err != nil {
		return Prediction{}, err
	}
	if err := checkFinite("b", b); err != nil {
		return Prediction{}, err
	}
	if p == nil {
		return Prediction{}, &InferenceError{Err: model.ErrNotReady}
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, &InferenceError{Err: err}
	}
	if w := p.InputWidth(); w != inputWidth {
		return Prediction{}, &InferenceError{Err: fmt.Errorf("model takes %d inputs, want %d: %w", w, inputWidth, tensor.ErrShape)}
	}

	var value float32
	err := r.mem.Tidy(func(s *tensor.Scope) error {
		x, err := s.New([]int{1, 2}, []float32{float32(a), float32(b)})
		if err != nil {
			return err
		}

		out, err := p.Predict(s, x)
		if err != nil {
			return err
		}
		// Outputs may be allocated outside the scope by some predictors.
		if batch, ok := out.(model.Batch); ok {
			for _, t := range batch {
				if t != nil {
					s.Track(t)
				}
			}
		}

		y, err := model.First(out)
		if err != nil {
			return err
		}
		s.Track(y)

		if y.Size() != 1 {
			return fmt.Errorf("expected a single output value, got shape %v: %w", y.Shape(), tensor.ErrShape)
		}

		value, err = y.At(0)
		if err != nil {
			return err
		}

		// float32 overflow turns large finite operands into Inf.
		if v := float64(value); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("model output %v is not finite", v)
		}
		return nil
	})
	if err != nil {
		slog.Error("Forward pass failed", "error", err)
		return Prediction{}, &InferenceError{Err: err}
	}

	v := float64(value)
	return Prediction{Value: v, Display: Format(v)}, nil
}
