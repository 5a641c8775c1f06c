package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ju4n97/neurocalc/internal/tensor"
)

func TestManager_SelectReachesReady(t *testing.T) {
	mem := tensor.NewMemory()
	m := NewManager(newFileResolver(t, mem, t.TempDir()))
	defer m.Close()

	assert.Equal(t, StateIdle, m.Status().State)
	assert.ErrorIs(t, m.WithReady(func(*Instance) error { return nil }), ErrNotReady)

	status, err := m.Select(context.Background(), OperationAdd)
	require.NoError(t, err)

	assert.Equal(t, StateReady, status.State)
	assert.Equal(t, OperationAdd, status.Operation)
	assert.Equal(t, ProvenanceSynthetic, status.Provenance)
	assert.Equal(t, "synthetic", status.Badge())
	assert.Equal(t, uint64(1), status.Generation)
	assert.NotNil(t, status.LoadedAt)

	err = m.WithReady(func(inst *Instance) error {
		assert.InDelta(t, 5, predictScalar(t, mem, inst.Predictor, 2, 3), 1e-6)
		return nil
	})
	require.NoError(t, err)
}

func TestManager_SwapDisposesPreviousModel(t *testing.T) {
	mem := tensor.NewMemory()
	m := NewManager(newFileResolver(t, mem, ""))

	_, err := m.Select(context.Background(), OperationAdd)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mem.Stats().Tensors)

	var first Predictor
	require.NoError(t, m.WithReady(func(inst *Instance) error {
		first = inst.Predictor
		return nil
	}))

	status, err := m.Select(context.Background(), OperationSubtract)
	require.NoError(t, err)
	assert.Equal(t, OperationSubtract, status.Operation)
	assert.Equal(t, int64(2), mem.Stats().Tensors)
	assert.True(t, first.(*Sequential).disposed.Load())

	status, err = m.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OperationSubtract, status.Operation)
	assert.Equal(t, uint64(3), status.Generation)

	require.NoError(t, m.Close())
	assert.Equal(t, tensor.Stats{}, mem.Stats())
	assert.Equal(t, StateIdle, m.Status().State)
}

func TestManager_RejectsUnknownOperation(t *testing.T) {
	m := NewManager(NewResolver(tensor.NewMemory(), NewFetcherRegistry()))

	_, err := m.Select(context.Background(), Operation("multiply"))
	assert.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, uint64(0), m.Generation())
}

func TestManager_StaleResolutionIsDiscarded(t *testing.T) {
	mem := tensor.NewMemory()
	release := make(chan struct{})

	fetcher := new(MockFetcher)
	fetcher.On("Schemes").Return([]string{"mock"})
	fetcher.On("Fetch", mock.Anything, "mock://origin/model_add/model.json").
		Run(func(mock.Arguments) { <-release }).
		Return(nil, ErrArtifactNotFound).Once()
	fetcher.On("Fetch", mock.Anything, "mock://origin/model_subtract/model.json").
		Return(nil, ErrArtifactNotFound).Once()

	fetchers := NewFetcherRegistry()
	require.NoError(t, fetchers.Register(fetcher))
	m := NewManager(NewResolver(mem, fetchers, WithOrigin("mock://origin")))
	defer m.Close()

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	done := make(chan Status, 1)
	go func() {
		status, err := m.Select(context.Background(), OperationAdd)
		assert.NoError(t, err)
		done <- status
	}()

	require.Eventually(t, func() bool { return m.Status().State == StateLoading }, time.Second, time.Millisecond)
	assert.Equal(t, "loading", m.Status().Badge())
	assert.Equal(t, uint64(1), m.Generation())

	status, err := m.Select(context.Background(), OperationSubtract)
	require.NoError(t, err)
	assert.Equal(t, OperationSubtract, status.Operation)
	assert.Equal(t, uint64(2), status.Generation)

	close(release)
	stale := <-done

	assert.Equal(t, uint64(2), stale.Generation)
	assert.Equal(t, OperationSubtract, m.Status().Operation)
	assert.Equal(t, StateReady, m.Status().State)
	assert.Equal(t, int64(2), mem.Stats().Tensors)

	var seen []State
	for len(seen) < 3 {
		select {
		case s := <-events:
			seen = append(seen, s.State)
		case <-time.After(time.Second):
			t.Fatalf("expected 3 events, got %v", seen)
		}
	}
	assert.ElementsMatch(t, []State{StateLoading, StateLoading, StateReady}, seen)

	fetcher.AssertExpectations(t)
}

func TestManager_SelectIgnoresCallerCancellation(t *testing.T) {
	mem := tensor.NewMemory()
	origin := t.TempDir()

	src := Synthetic(mem, OperationAdd)
	require.NoError(t, WriteArtifact(origin+"/model_add", src))
	src.Dispose()

	m := NewManager(newFileResolver(t, mem, origin))
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := m.Select(ctx, OperationAdd)
	require.NoError(t, err)
	assert.Equal(t, ProvenanceLoaded, status.Provenance)
}

func TestManager_CloseEndsSubscriptions(t *testing.T) {
	m := NewManager(NewResolver(tensor.NewMemory(), NewFetcherRegistry()))
	events, _ := m.Subscribe()

	require.NoError(t, m.Close())

	_, ok := <-events
	assert.False(t, ok)
}

func TestManager_CloseDuringResolution(t *testing.T) {
	mem := tensor.NewMemory()
	release := make(chan struct{})

	fetcher := new(MockFetcher)
	fetcher.On("Schemes").Return([]string{"mock"})
	fetcher.On("Fetch", mock.Anything, "mock://origin/model_add/model.json").
		Run(func(mock.Arguments) { <-release }).
		Return(nil, ErrArtifactNotFound).Once()

	fetchers := NewFetcherRegistry()
	require.NoError(t, fetchers.Register(fetcher))
	m := NewManager(NewResolver(mem, fetchers, WithOrigin("mock://origin")))

	done := make(chan error, 1)
	go func() {
		_, err := m.Select(context.Background(), OperationAdd)
		done <- err
	}()

	require.Eventually(t, func() bool { return m.Status().State == StateLoading }, time.Second, time.Millisecond)
	require.NoError(t, m.Close())
	close(release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, StateIdle, m.Status().State)
	assert.ErrorIs(t, m.WithReady(func(*Instance) error { return nil }), ErrNotReady)
	assert.Equal(t, tensor.Stats{}, mem.Stats())

	_, err := m.Select(context.Background(), OperationSubtract)
	assert.ErrorIs(t, err, ErrClosed)
}
