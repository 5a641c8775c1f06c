// Package tensor provides float32 buffers with explicit lifetimes.
//
// Every tensor is allocated from a Memory, which keeps live counters so callers can
// verify that transient buffers are released once they are no longer needed.
package tensor

import (
	"fmt"
	"sync/atomic"
)

// Tensor is a dense float32 buffer with a row-major shape.
type Tensor struct {
	mem      *Memory
	shape    []int
	data     []float32
	disposed atomic.Bool
}

// Shape returns a copy of the tensor shape.
func (t *Tensor) Shape() []int {
	out := make([]int, len(t.shape))
	copy(out, t.shape)
	return out
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns the backing values. The slice must not be used after Dispose.
func (t *Tensor) Data() ([]float32, error) {
	if t.disposed.Load() {
		return nil, ErrDisposed
	}
	return t.data, nil
}

// At returns the i-th element in row-major order.
func (t *Tensor) At(i int) (float32, error) {
	if t.disposed.Load() {
		return 0, ErrDisposed
	}
	if i < 0 || i >= len(t.data) {
		return 0, fmt.Errorf("index %d out of range for %v: %w", i, t.shape, ErrShape)
	}
	return t.data[i], nil
}

// Disposed reports whether the tensor was released.
func (t *Tensor) Disposed() bool {
	return t.disposed.Load()
}

// Dispose releases the tensor. Calling it more than once is a no-op.
func (t *Tensor) Dispose() {
	if !t.disposed.CompareAndSwap(false, true) {
		return
	}
	t.mem.release(int64(len(t.data)) * 4)
	t.data = nil
}

// MatMul multiplies a [m,k] tensor by a [k,n] tensor and returns a new [m,n] tensor.
func (m *Memory) MatMul(a, b *Tensor) (*Tensor, error) {
	if a.disposed.Load() || b.disposed.Load() {
		return nil, ErrDisposed
	}
	if len(a.shape) != 2 || len(b.shape) != 2 || a.shape[1] != b.shape[0] {
		return nil, fmt.Errorf("matmul %v x %v: %w", a.shape, b.shape, ErrShape)
	}

	rows, inner, cols := a.shape[0], a.shape[1], b.shape[1]
	out := make([]float32, rows*cols)
	for r := range rows {
		for c := range cols {
			var sum float32
			for k := range inner {
				sum += a.data[r*inner+k] * b.data[k*cols+c]
			}
			out[r*cols+c] = sum
		}
	}

	return m.adopt([]int{rows, cols}, out), nil
}

// AddBias adds a [n] bias to every row of a [m,n] tensor in place.
func AddBias(t, bias *Tensor) error {
	if t.disposed.Load() || bias.disposed.Load() {
		return ErrDisposed
	}
	if len(t.shape) != 2 || len(bias.shape) != 1 || t.shape[1] != bias.shape[0] {
		return fmt.Errorf("bias %v onto %v: %w", bias.shape, t.shape, ErrShape)
	}

	cols := t.shape[1]
	for i := range t.data {
		t.data[i] += bias.data[i%cols]
	}
	return nil
}

// Map applies fn to every element in place.
func Map(t *Tensor, fn func(float32) float32) error {
	if t.disposed.Load() {
		return ErrDisposed
	}
	for i, v := range t.data {
		t.data[i] = fn(v)
	}
	return nil
}
