package model

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ju4n97/neurocalc/internal/tensor"
)

// Predictor is a model that maps an input batch to one or more output tensors.
type Predictor interface {
	// Predict runs the forward pass. Output tensors are owned by s.
	Predict(s *tensor.Scope, x *tensor.Tensor) (Output, error)

	// InputWidth returns the number of features per row.
	InputWidth() int

	// Dispose releases the weights.
	Dispose()
}

// Output is the result of a forward pass: either a Single tensor or a Batch of them.
type Output interface {
	isOutput()
}

// Single is a forward pass that produced exactly one tensor.
type Single struct {
	Tensor *tensor.Tensor
}

// Batch is a forward pass that produced several tensors.
type Batch []*tensor.Tensor

func (Single) isOutput() {}
func (Batch) isOutput()  {}

// First returns the tensor that carries the answer: the single tensor, or the first
// element of a batch.
func First(o Output) (*tensor.Tensor, error) {
	switch out := o.(type) {
	case Single:
		if out.Tensor == nil {
			return nil, errors.New("empty prediction output")
		}
		return out.Tensor, nil
	case Batch:
		if len(out) == 0 || out[0] == nil {
			return nil, errors.New("empty prediction batch")
		}
		return out[0], nil
	default:
		return nil, fmt.Errorf("unexpected prediction output %T", o)
	}
}

// Activation is an element-wise function applied after a dense layer.
type Activation string

const (
	ActivationLinear Activation = "linear"
	ActivationReLU   Activation = "relu"
)

func (a Activation) apply(v float32) float32 {
	if a == ActivationReLU && v < 0 {
		return 0
	}
	return v
}

// Dense is a fully connected layer: y = activation(x·kernel + bias).
type Dense struct {
	Kernel     *tensor.Tensor
	Bias       *tensor.Tensor
	Name       string
	Activation Activation
}

// Sequential is a chain of dense layers.
type Sequential struct {
	layers   []*Dense
	disposed atomic.Bool
}

// NewSequential creates a model from layers. The model owns the layer tensors.
func NewSequential(layers ...*Dense) *Sequential {
	return &Sequential{layers: layers}
}

// Layers returns the dense layers in order.
func (m *Sequential) Layers() []*Dense {
	return m.layers
}

// InputWidth returns the kernel rows of the first layer.
func (m *Sequential) InputWidth() int {
	if len(m.layers) == 0 {
		return 0
	}
	return m.layers[0].Kernel.Shape()[0]
}

// Predict runs every layer in turn.
func (m *Sequential) Predict(s *tensor.Scope, x *tensor.Tensor) (Output, error) {
	if m.disposed.Load() {
		return nil, ErrDisposed
	}
	if len(m.layers) == 0 {
		return nil, errors.New("model has no layers")
	}

	h := x
	for _, layer := range m.layers {
		y, err := s.MatMul(h, layer.Kernel)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer.Name, err)
		}

		if layer.Bias != nil {
			if err := tensor.AddBias(y, layer.Bias); err != nil {
				return nil, fmt.Errorf("layer %s: %w", layer.Name, err)
			}
		}

		if layer.Activation != ActivationLinear && layer.Activation != "" {
			if err := tensor.Map(y, layer.Activation.apply); err != nil {
				return nil, fmt.Errorf("layer %s: %w", layer.Name, err)
			}
		}

		h = y
	}

	return Single{Tensor: h}, nil
}

// Dispose releases all layer tensors.
func (m *Sequential) Dispose() {
	if !m.disposed.CompareAndSwap(false, true) {
		return
	}
	for _, layer := range m.layers {
		layer.Kernel.Dispose()
		if layer.Bias != nil {
			layer.Bias.Dispose()
		}
	}
}

// Synthetic builds the one-layer model for op with weights [1, ±1] and zero bias.
// It performs no I/O and cannot fail.
func Synthetic(mem *tensor.Memory, op Operation) *Sequential {
	second := float32(1)
	if op == OperationSubtract {
		second = -1
	}

	return NewSequential(&Dense{
		Name:       "dense",
		Kernel:     mem.MustNew([]int{2, 1}, []float32{1, second}),
		Bias:       mem.MustNew([]int{1}, []float32{0}),
		Activation: ActivationLinear,
	})
}
