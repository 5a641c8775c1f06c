package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Stats is a snapshot of live allocations.
type Stats struct {
	Tensors int64 `json:"tensors"`
	Bytes   int64 `json:"bytes"`
}

// Memory tracks every tensor allocated through it.
type Memory struct {
	tensors atomic.Int64
	bytes   atomic.Int64
}

// NewMemory creates an empty allocation tracker.
func NewMemory() *Memory {
	return &Memory{}
}

// New allocates a tensor holding a copy of values.
func (m *Memory) New(shape []int, values []float32) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dimension %d in %v: %w", d, shape, ErrShape)
		}
		n *= d
	}
	if n != len(values) {
		return nil, fmt.Errorf("%d values for shape %v: %w", len(values), shape, ErrShape)
	}

	data := make([]float32, n)
	copy(data, values)

	s := make([]int, len(shape))
	copy(s, shape)

	return m.adopt(s, data), nil
}

// Stats returns the current live counters.
func (m *Memory) Stats() Stats {
	return Stats{
		Tensors: m.tensors.Load(),
		Bytes:   m.bytes.Load(),
	}
}

// Tidy runs fn with a scope and disposes every tensor allocated in it that was not kept,
// whether fn succeeds or not.
func (m *Memory) Tidy(fn func(s *Scope) error) error {
	s := &Scope{mem: m}
	defer s.release()

	return fn(s)
}

func (m *Memory) adopt(shape []int, data []float32) *Tensor {
	m.tensors.Add(1)
	m.bytes.Add(int64(len(data)) * 4)

	return &Tensor{mem: m, shape: shape, data: data}
}

func (m *Memory) release(bytes int64) {
	m.tensors.Add(-1)
	m.bytes.Add(-bytes)
}

// Scope collects tensors whose lifetime ends with the enclosing Tidy call.
type Scope struct {
	mem     *Memory
	tracked []*Tensor
	mu      sync.Mutex
}

// New allocates a tensor owned by the scope.
func (s *Scope) New(shape []int, values []float32) (*Tensor, error) {
	t, err := s.mem.New(shape, values)
	if err != nil {
		return nil, err
	}
	return s.Track(t), nil
}

// MatMul multiplies two tensors into a new tensor owned by the scope.
func (s *Scope) MatMul(a, b *Tensor) (*Tensor, error) {
	t, err := s.mem.MatMul(a, b)
	if err != nil {
		return nil, err
	}
	return s.Track(t), nil
}

// Track hands ownership of t to the scope.
func (s *Scope) Track(t *Tensor) *Tensor {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracked = append(s.tracked, t)
	return t
}

// Keep removes t from the scope so it survives Tidy.
func (s *Scope) Keep(t *Tensor) *Tensor {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tracked := range s.tracked {
		if tracked == t {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			break
		}
	}
	return t
}

func (s *Scope) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tracked {
		t.Dispose()
	}
	s.tracked = nil
}

// MustNew is like New but panics on a shape error. It is meant for constant shapes.
func (m *Memory) MustNew(shape []int, values []float32) *Tensor {
	t, err := m.New(shape, values)
	if err != nil {
		panic(err)
	}
	return t
}
