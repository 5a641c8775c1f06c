package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ju4n97/neurocalc/internal/tensor"
)

func newFileResolver(t *testing.T, mem *tensor.Memory, origin string) *Resolver {
	t.Helper()

	fetchers := NewFetcherRegistry()
	require.NoError(t, fetchers.Register(FileFetcher{}))

	return NewResolver(mem, fetchers, WithOrigin(origin))
}

func TestResolver_FallsBackWhenArtifactMissing(t *testing.T) {
	mem := tensor.NewMemory()
	r := newFileResolver(t, mem, t.TempDir())

	for _, op := range Operations() {
		inst := r.Resolve(context.Background(), op)
		require.NotNil(t, inst.Predictor)

		assert.Equal(t, ProvenanceSynthetic, inst.Provenance)
		assert.Equal(t, op, inst.Operation)
		assert.Contains(t, inst.LoadError, ErrArtifactNotFound.Error())
		inst.Predictor.Dispose()
	}

	assert.Equal(t, tensor.Stats{}, mem.Stats())
}

func TestResolver_LoadsArtifact(t *testing.T) {
	mem := tensor.NewMemory()
	origin := t.TempDir()

	src := linearModel(mem, 0.5, 0.5, 0)
	require.NoError(t, WriteArtifact(filepath.Join(origin, "model_add"), src))
	src.Dispose()

	r := newFileResolver(t, mem, origin)
	inst := r.Resolve(context.Background(), OperationAdd)
	defer inst.Predictor.Dispose()

	assert.Equal(t, ProvenanceLoaded, inst.Provenance)
	assert.Empty(t, inst.LoadError)
	assert.Equal(t, filepath.Join(origin, "model_add", ArtifactFile), filepath.FromSlash(inst.Source))
	assert.InDelta(t, 2.5, predictScalar(t, mem, inst.Predictor, 2, 3), 1e-6)
}

func TestResolver_NoOrigin(t *testing.T) {
	mem := tensor.NewMemory()
	r := NewResolver(mem, NewFetcherRegistry())

	inst := r.Resolve(context.Background(), OperationSubtract)
	defer inst.Predictor.Dispose()

	assert.Equal(t, ProvenanceSynthetic, inst.Provenance)
	assert.Empty(t, inst.Source)
	assert.InDelta(t, 6, predictScalar(t, mem, inst.Predictor, 10, 4), 1e-6)
}

func TestResolver_UnknownScheme(t *testing.T) {
	mem := tensor.NewMemory()
	r := NewResolver(mem, NewFetcherRegistry(), WithOrigin("s3://bucket/models"))

	inst := r.Resolve(context.Background(), OperationAdd)
	defer inst.Predictor.Dispose()

	assert.Equal(t, ProvenanceSynthetic, inst.Provenance)
	assert.Contains(t, inst.LoadError, ErrFetcherNotFound.Error())
}

func TestResolver_FetchErrorFallsBack(t *testing.T) {
	mem := tensor.NewMemory()

	fetcher := new(MockFetcher)
	fetcher.On("Schemes").Return([]string{"mock"})
	fetcher.On("Fetch", mock.Anything, "mock://origin/model_add/model.json").
		Return(nil, errors.New("connection reset")).Once()

	fetchers := NewFetcherRegistry()
	require.NoError(t, fetchers.Register(fetcher))

	r := NewResolver(mem, fetchers, WithOrigin("mock://origin/"))
	inst := r.Resolve(context.Background(), OperationAdd)
	defer inst.Predictor.Dispose()

	assert.Equal(t, ProvenanceSynthetic, inst.Provenance)
	assert.Equal(t, "connection reset", inst.LoadError)
	fetcher.AssertExpectations(t)
}

func TestResolver_SetOrigin(t *testing.T) {
	mem := tensor.NewMemory()
	r := newFileResolver(t, mem, "")

	origin := t.TempDir()
	src := Synthetic(mem, OperationSubtract)
	require.NoError(t, WriteArtifact(filepath.Join(origin, "model_subtract"), src))
	src.Dispose()

	r.SetOrigin(origin, 0)
	assert.Equal(t, origin, r.Origin())

	inst := r.Resolve(context.Background(), OperationSubtract)
	defer inst.Predictor.Dispose()
	assert.Equal(t, ProvenanceLoaded, inst.Provenance)
}

func TestResolver_OverflowingShapeFallsBack(t *testing.T) {
	mem := tensor.NewMemory()
	origin := t.TempDir()
	dir := filepath.Join(origin, "model_add")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	doc := `{"modelTopology":{"class_name":"Sequential","config":{"layers":[{"class_name":"Dense","config":{"name":"d","units":1}}]}},` +
		`"weightsManifest":[{"paths":["w.bin"],"weights":[{"name":"d/kernel","shape":[2305843009213693952,1],"dtype":"float32"}]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ArtifactFile), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w.bin"), make([]byte, 12), 0o644))

	r := newFileResolver(t, mem, origin)

	var inst *Instance
	require.NotPanics(t, func() { inst = r.Resolve(context.Background(), OperationAdd) })

	assert.Equal(t, ProvenanceSynthetic, inst.Provenance)
	assert.Contains(t, inst.LoadError, ErrMalformedArtifact.Error())
	assert.InDelta(t, 5, predictScalar(t, mem, inst.Predictor, 2, 3), 1e-6)

	inst.Predictor.Dispose()
	assert.Equal(t, tensor.Stats{}, mem.Stats())
}

func TestResolver_PanickingFetcherFallsBack(t *testing.T) {
	mem := tensor.NewMemory()

	fetcher := new(MockFetcher)
	fetcher.On("Schemes").Return([]string{"mock"})
	fetcher.On("Fetch", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("decoder bug")
	})

	fetchers := NewFetcherRegistry()
	require.NoError(t, fetchers.Register(fetcher))

	r := NewResolver(mem, fetchers, WithOrigin("mock://origin/"))

	var inst *Instance
	require.NotPanics(t, func() { inst = r.Resolve(context.Background(), OperationSubtract) })
	defer inst.Predictor.Dispose()

	assert.Equal(t, ProvenanceSynthetic, inst.Provenance)
	assert.Contains(t, inst.LoadError, "decoder bug")
}
