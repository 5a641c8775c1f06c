package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ju4n97/neurocalc/internal/tensor"
)

// --- Mock types ---

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Schemes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	args := m.Called(ctx, location)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Helpers ---

func predictScalar(t *testing.T, mem *tensor.Memory, p Predictor, a, b float32) float32 {
	t.Helper()

	var got float32
	err := mem.Tidy(func(s *tensor.Scope) error {
		x, err := s.New([]int{1, 2}, []float32{a, b})
		if err != nil {
			return err
		}
		out, err := p.Predict(s, x)
		if err != nil {
			return err
		}
		y, err := First(out)
		if err != nil {
			return err
		}
		got, err = y.At(0)
		return err
	})
	require.NoError(t, err)

	return got
}

func linearModel(mem *tensor.Memory, w0, w1, bias float32) *Sequential {
	return NewSequential(&Dense{
		Name:       "dense_Dense1",
		Kernel:     mem.MustNew([]int{2, 1}, []float32{w0, w1}),
		Bias:       mem.MustNew([]int{1}, []float32{bias}),
		Activation: ActivationLinear,
	})
}
