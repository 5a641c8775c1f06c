package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ju4n97/neurocalc/internal/inference"
	"github.com/ju4n97/neurocalc/internal/model"
)

// Result is a prediction together with the model that produced it.
type Result struct {
	inference.Prediction
	Operation  model.Operation  `json:"operation"`
	Provenance model.Provenance `json:"provenance"`
	Generation uint64           `json:"generation"`
}

// Runner executes a forward pass for two operands.
type Runner interface {
	Predict(ctx context.Context, p model.Predictor, a, b float64) (inference.Prediction, error)
}

// Calculator is a service abstraction for the model-backed calculator.
type Calculator struct {
	models *model.Manager
	runner Runner
}

// NewCalculator creates a new Calculator service.
func NewCalculator(models *model.Manager, runner Runner) *Calculator {
	return &Calculator{
		models: models,
		runner: runner,
	}
}

// SelectOperation switches the session to op and waits for its model.
func (c *Calculator) SelectOperation(ctx context.Context, op model.Operation) (model.Status, error) {
	return c.models.Select(ctx, op)
}

// Status returns the model slot status.
func (c *Calculator) Status() model.Status {
	return c.models.Status()
}

// Subscribe streams model status changes.
func (c *Calculator) Subscribe() (<-chan model.Status, func()) {
	return c.models.Subscribe()
}

// Calculate validates the operands and runs them through the ready model.
// Invalid operands return a validation error without touching the model. A result
// computed by a model that was replaced in the meantime returns ErrStalePrediction.
func (c *Calculator) Calculate(ctx context.Context, aText, bText string) (Result, error) {
	a, b, err := inference.ParseOperands(aText, bText)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = c.models.WithReady(func(inst *model.Instance) error {
		pred, err := c.runner.Predict(ctx, inst.Predictor, a, b)
		if err != nil {
			return err
		}

		res = Result{
			Prediction: pred,
			Operation:  inst.Operation,
			Provenance: inst.Provenance,
			Generation: inst.Generation,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if latest := c.models.Generation(); latest != res.Generation {
		slog.Info("Discarding stale prediction", "generation", res.Generation, "latest", latest)
		return Result{}, ErrStalePrediction
	}

	slog.Debug("Prediction computed",
		"operation", res.Operation,
		"expression", fmt.Sprintf("%g %s %g", a, res.Operation.Symbol(), b),
		"result", res.Display,
		"provenance", res.Provenance)

	return res, nil
}
