package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/ju4n97/neurocalc/internal/inference"
	"github.com/ju4n97/neurocalc/internal/model"
	"github.com/ju4n97/neurocalc/internal/service"
)

type (
	PredictRequestDTO struct {
		A string `json:"a" maxLength:"64" doc:"First operand as typed by the user"`
		B string `json:"b" maxLength:"64" doc:"Second operand as typed by the user"`
	}

	PredictResponseDTO struct {
		Result     string  `json:"result" doc:"Prediction rounded to two decimals"`
		Value      float64 `json:"value"`
		Operation  string  `json:"operation"`
		Provenance string  `json:"provenance"`
		Generation uint64  `json:"generation"`
	}

	SelectOperationRequestDTO struct {
		Operation string `json:"operation" enum:"add,subtract"`
	}

	StatusDTO struct {
		Operation  string     `json:"operation,omitempty"`
		State      string     `json:"state" enum:"idle,loading,ready"`
		Provenance string     `json:"provenance,omitempty"`
		Badge      string     `json:"badge"`
		Source     string     `json:"source,omitempty"`
		LoadError  string     `json:"load_error,omitempty"`
		LoadedAt   *time.Time `json:"loaded_at,omitempty"`
		Generation uint64     `json:"generation"`
	}
)

type (
	PredictInput struct {
		Body PredictRequestDTO
	}

	PredictOutput struct {
		Body PredictResponseDTO
	}

	SelectOperationInput struct {
		Body SelectOperationRequestDTO
	}

	StatusOutput struct {
		Body StatusDTO
	}
)

// CalculatorHandler handles HTTP requests for the calculator.
type CalculatorHandler struct {
	service *service.Calculator
}

// NewCalculatorHandler creates a new CalculatorHandler instance.
func NewCalculatorHandler(api huma.API, service *service.Calculator) *CalculatorHandler {
	h := &CalculatorHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "get-model",
		Method:        http.MethodGet,
		Path:          "/api/model",
		Summary:       "Get the model slot status",
		Tags:          []string{"model"},
		DefaultStatus: http.StatusOK,
	}, h.handleGetModel)

	huma.Register(api, huma.Operation{
		OperationID:   "select-operation",
		Method:        http.MethodPut,
		Path:          "/api/model",
		Summary:       "Select the operation and resolve its model",
		Tags:          []string{"model"},
		DefaultStatus: http.StatusOK,
	}, h.handleSelectOperation)

	huma.Register(api, huma.Operation{
		OperationID:   "predict",
		Method:        http.MethodPost,
		Path:          "/api/predict",
		Summary:       "Compute a prediction for two operands",
		Tags:          []string{"calculator"},
		DefaultStatus: http.StatusOK,
	}, h.handlePredict)

	sse.Register(api, huma.Operation{
		OperationID: "model-events",
		Method:      http.MethodGet,
		Path:        "/api/model/events",
		Summary:     "Stream model slot status changes (SSE)",
		Tags:        []string{"model"},
	}, map[string]any{
		"status": StatusDTO{},
	}, h.handleModelEvents)

	return h
}

// handleGetModel handles the get-model operation.
func (h *CalculatorHandler) handleGetModel(_ context.Context, _ *struct{}) (*StatusOutput, error) {
	return &StatusOutput{Body: toStatusDTO(h.service.Status())}, nil
}

// handleSelectOperation handles the select-operation operation.
func (h *CalculatorHandler) handleSelectOperation(ctx context.Context, input *SelectOperationInput) (*StatusOutput, error) {
	op, err := model.ParseOperation(input.Body.Operation)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("unknown operation", err)
	}

	status, err := h.service.SelectOperation(ctx, op)
	if err != nil {
		if errors.Is(err, model.ErrClosed) {
			return nil, huma.Error503ServiceUnavailable("shutting down", err)
		}
		return nil, huma.Error500InternalServerError("failed to select operation", err)
	}

	return &StatusOutput{Body: toStatusDTO(status)}, nil
}

// handlePredict handles the predict operation.
func (h *CalculatorHandler) handlePredict(ctx context.Context, input *PredictInput) (*PredictOutput, error) {
	res, err := h.service.Calculate(ctx, input.Body.A, input.Body.B)
	if err != nil {
		switch {
		case errors.Is(err, inference.ErrValidation):
			return nil, huma.Error422UnprocessableEntity("invalid operands", err)
		case errors.Is(err, model.ErrNotReady):
			return nil, huma.Error503ServiceUnavailable("model is not ready", err)
		case errors.Is(err, service.ErrStalePrediction):
			return nil, huma.Error409Conflict("model changed during prediction", err)
		default:
			return nil, huma.Error500InternalServerError("inference failed", err)
		}
	}

	return &PredictOutput{
		Body: PredictResponseDTO{
			Result:     res.Display,
			Value:      res.Value,
			Operation:  res.Operation.String(),
			Provenance: string(res.Provenance),
			Generation: res.Generation,
		},
	}, nil
}

// handleModelEvents handles the model-events operation. The current status is sent
// first, followed by every change until the client goes away.
func (h *CalculatorHandler) handleModelEvents(ctx context.Context, _ *struct{}, send sse.Sender) {
	events, stop := h.service.Subscribe()
	defer stop()

	if err := send.Data(toStatusDTO(h.service.Status())); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-events:
			if !ok {
				return
			}
			if err := send.Data(toStatusDTO(status)); err != nil {
				return
			}
		}
	}
}

func toStatusDTO(s model.Status) StatusDTO {
	return StatusDTO{
		Operation:  s.Operation.String(),
		State:      string(s.State),
		Provenance: string(s.Provenance),
		Badge:      s.Badge(),
		Source:     s.Source,
		LoadError:  s.LoadError,
		LoadedAt:   s.LoadedAt,
		Generation: s.Generation,
	}
}
