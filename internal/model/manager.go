package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of the session's model slot.
type State string

const (
	// StateIdle means no operation has been selected yet.
	StateIdle State = "idle"

	// StateLoading means a resolution is in flight.
	StateLoading State = "loading"

	// StateReady means a model is installed and predictions are allowed.
	StateReady State = "ready"
)

// Status is a snapshot of the model slot.
type Status struct {
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
	Operation  Operation  `json:"operation,omitempty"`
	State      State      `json:"state"`
	Provenance Provenance `json:"provenance,omitempty"`
	Source     string     `json:"source,omitempty"`
	LoadError  string     `json:"load_error,omitempty"`
	Generation uint64     `json:"generation"`
}

// Badge returns the provenance label shown to users, or "loading".
func (s Status) Badge() string {
	if s.State != StateReady {
		return string(s.State)
	}
	return string(s.Provenance)
}

// Manager owns the single model slot of a session. Selecting an operation replaces the
// installed model wholesale, and only the most recent selection is ever installed.
type Manager struct {
	resolver   *Resolver
	current    *Instance
	subs       map[int]chan Status
	state      State
	pending    Operation
	nextSub    int
	generation atomic.Uint64
	closed     bool
	mu         sync.RWMutex
	subMu      sync.Mutex
}

// NewManager creates a Manager in the idle state.
func NewManager(resolver *Resolver) *Manager {
	return &Manager{
		resolver: resolver,
		state:    StateIdle,
		subs:     make(map[int]chan Status),
	}
}

// Select resolves a model for op and installs it unless a newer selection started in
// the meantime. The load is not cancelled when ctx is; it is superseded instead.
//
// The generation is bumped before the slot lock is taken, so predictions still running
// against the old model can tell they are stale.
func (m *Manager) Select(ctx context.Context, op Operation) (Status, error) {
	if !op.Valid() {
		return Status{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	gen := m.generation.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Status{}, ErrClosed
	}
	if gen == m.generation.Load() {
		m.state = StateLoading
		m.pending = op
	}
	loading := m.statusLocked()
	m.mu.Unlock()

	m.publish(loading)
	slog.Info("Resolving model", "operation", op, "generation", gen)

	inst := m.resolver.Resolve(context.WithoutCancel(ctx), op)
	inst.Generation = gen

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		inst.Predictor.Dispose()
		slog.Info("Discarded model resolution after close", "operation", op, "generation", gen)
		return Status{}, ErrClosed
	}
	if gen != m.generation.Load() {
		status := m.statusLocked()
		m.mu.Unlock()

		inst.Predictor.Dispose()
		slog.Info("Discarded stale model resolution", "operation", op, "generation", gen, "latest", status.Generation)
		return status, nil
	}

	if m.current != nil {
		m.current.Predictor.Dispose()
	}
	m.current = inst
	m.state = StateReady
	ready := m.statusLocked()
	m.mu.Unlock()

	m.publish(ready)
	slog.Info("Model ready", "operation", op, "provenance", inst.Provenance, "generation", gen)

	return ready, nil
}

// Reload re-resolves the currently selected operation, if any.
func (m *Manager) Reload(ctx context.Context) (Status, error) {
	m.mu.RLock()
	op := m.pending
	m.mu.RUnlock()

	if op == "" {
		return m.Status(), nil
	}
	return m.Select(ctx, op)
}

// Status returns a snapshot of the slot.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.statusLocked()
}

// Generation returns the number of selections made so far.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// WithReady runs fn with the installed instance. The instance is not disposed while fn
// runs. It returns ErrNotReady unless the slot is ready.
func (m *Manager) WithReady(fn func(inst *Instance) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != StateReady || m.current == nil {
		return ErrNotReady
	}
	return fn(m.current)
}

// Subscribe returns a channel of status changes and a function to stop receiving them.
func (m *Manager) Subscribe() (<-chan Status, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Status, 8)
	m.subs[id] = ch

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()

		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// Close disposes the installed model and ends all subscriptions. Selections still
// resolving are discarded, and later ones fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	if m.current != nil {
		m.current.Predictor.Dispose()
		m.current = nil
	}
	m.state = StateIdle
	m.mu.Unlock()

	m.subMu.Lock()
	defer m.subMu.Unlock()

	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}

	return nil
}

func (m *Manager) statusLocked() Status {
	s := Status{
		State:      m.state,
		Operation:  m.pending,
		Generation: m.generation.Load(),
	}

	if m.state == StateReady && m.current != nil {
		loadedAt := m.current.LoadedAt
		s.Operation = m.current.Operation
		s.Provenance = m.current.Provenance
		s.Source = m.current.Source
		s.LoadError = m.current.LoadError
		s.LoadedAt = &loadedAt
	}

	return s
}

func (m *Manager) publish(status Status) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- status:
		default:
			slog.Debug("Dropping status event for slow subscriber", "generation", status.Generation)
		}
	}
}
