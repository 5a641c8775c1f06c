package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ju4n97/neurocalc/internal/tensor"
)

// Resolver turns an operation into a usable model. It loads the per-operation artifact
// from the configured origin and falls back to a synthetic model on any failure.
type Resolver struct {
	mem      *tensor.Memory
	fetchers *FetcherRegistry
	origin   string
	timeout  time.Duration
	mu       sync.RWMutex
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOrigin sets the base location artifacts are loaded from.
func WithOrigin(origin string) ResolverOption {
	return func(r *Resolver) {
		r.origin = origin
	}
}

// WithFetchTimeout bounds each artifact load. Zero means no timeout.
func WithFetchTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// NewResolver creates a resolver allocating model weights from mem.
func NewResolver(mem *tensor.Memory, fetchers *FetcherRegistry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		mem:      mem,
		fetchers: fetchers,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetOrigin replaces the artifact origin and fetch timeout.
func (r *Resolver) SetOrigin(origin string, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.origin = origin
	r.timeout = timeout
}

// Origin returns the current artifact origin.
func (r *Resolver) Origin() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.origin
}

// Memory returns the allocator model weights come from.
func (r *Resolver) Memory() *tensor.Memory {
	return r.mem
}

// Resolve returns a model for op. It always succeeds: a failed load is logged and
// replaced by the synthetic model.
func (r *Resolver) Resolve(ctx context.Context, op Operation) *Instance {
	r.mu.RLock()
	origin, timeout := r.origin, r.timeout
	r.mu.RUnlock()

	inst := &Instance{Operation: op}

	if origin == "" {
		slog.Info("No model origin configured, using synthetic model", "operation", op)
		return r.synthetic(inst)
	}

	location, err := ArtifactURL(origin, op)
	if err != nil {
		return r.fallback(inst, err)
	}
	inst.Source = location

	fetcher, err := r.fetchers.ForLocation(location)
	if err != nil {
		return r.fallback(inst, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	model, err := loadArtifactSafely(ctx, fetcher, location, r.mem)
	if err != nil {
		return r.fallback(inst, err)
	}

	inst.Predictor = model
	inst.Provenance = ProvenanceLoaded
	inst.LoadedAt = time.Now()

	slog.Info("Model artifact loaded",
		"operation", op,
		"location", location,
		"layers", len(model.Layers()),
		"duration", time.Since(started))

	return inst
}

// loadArtifactSafely turns a panic while decoding into an error so resolution still
// falls back.
func loadArtifactSafely(ctx context.Context, fetcher Fetcher, location string, mem *tensor.Memory) (model *Sequential, err error) {
	defer func() {
		if p := recover(); p != nil {
			model = nil
			err = fmt.Errorf("%w: panic while loading: %v", ErrMalformedArtifact, p)
		}
	}()

	return LoadArtifact(ctx, fetcher, location, mem)
}

func (r *Resolver) fallback(inst *Instance, err error) *Instance {
	slog.Warn("Model artifact load failed, using synthetic model",
		"operation", inst.Operation,
		"location", inst.Source,
		"error", err)

	inst.LoadError = err.Error()
	return r.synthetic(inst)
}

func (r *Resolver) synthetic(inst *Instance) *Instance {
	inst.Predictor = Synthetic(r.mem, inst.Operation)
	inst.Provenance = ProvenanceSynthetic
	inst.LoadedAt = time.Now()
	return inst
}
