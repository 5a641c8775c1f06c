package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ju4n97/neurocalc/internal/tensor"
)

func TestWriteAndLoadArtifact_File(t *testing.T) {
	mem := tensor.NewMemory()
	dir := filepath.Join(t.TempDir(), "model_add")

	src := linearModel(mem, 2, 3, 1)
	require.NoError(t, WriteArtifact(dir, src))
	src.Dispose()

	loaded, err := LoadArtifact(context.Background(), FileFetcher{}, filepath.Join(dir, ArtifactFile), mem)
	require.NoError(t, err)
	defer loaded.Dispose()

	assert.Equal(t, 2, loaded.InputWidth())
	assert.InDelta(t, 2*4+3*5+1, predictScalar(t, mem, loaded, 4, 5), 1e-5)
}

func TestLoadArtifact_HTTP(t *testing.T) {
	mem := tensor.NewMemory()
	root := t.TempDir()

	src := Synthetic(mem, OperationSubtract)
	require.NoError(t, WriteArtifact(filepath.Join(root, "model_subtract"), src))
	src.Dispose()

	srv := httptest.NewServer(http.FileServer(http.Dir(root)))
	defer srv.Close()

	location, err := ArtifactURL(srv.URL+"/", OperationSubtract)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/model_subtract/model.json", location)

	fetcher := NewHTTPFetcher(srv.Client())
	loaded, err := LoadArtifact(context.Background(), fetcher, location, mem)
	require.NoError(t, err)
	defer loaded.Dispose()

	assert.InDelta(t, 6, predictScalar(t, mem, loaded, 10, 4), 1e-6)

	missing, err := ArtifactURL(srv.URL, OperationAdd)
	require.NoError(t, err)
	_, err = LoadArtifact(context.Background(), fetcher, missing, mem)
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLoadArtifact_KerasTopology(t *testing.T) {
	mem := tensor.NewMemory()
	dir := t.TempDir()

	// Nested model_config with the layer list stored directly as the config.
	doc := `{
	  "modelTopology": {
	    "keras_version": "2.4.0",
	    "model_config": {
	      "class_name": "Sequential",
	      "config": [
	        {"class_name": "InputLayer", "config": {"name": "input"}},
	        {"class_name": "Dense", "config": {"name": "dense", "units": 1, "activation": "linear", "use_bias": false}}
	      ]
	    }
	  },
	  "weightsManifest": [
	    {"paths": ["w.bin"], "weights": [{"name": "sequential/dense/kernel", "shape": [2, 1], "dtype": "float32"}]}
	  ]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte(doc), 0o644))
	// float32 little endian: 1.0 and -1.0
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w.bin"), []byte{0, 0, 0x80, 0x3f, 0, 0, 0x80, 0xbf}, 0o644))

	loaded, err := LoadArtifact(context.Background(), FileFetcher{}, "file://"+filepath.ToSlash(filepath.Join(dir, "model.json")), mem)
	require.NoError(t, err)
	defer loaded.Dispose()

	require.Len(t, loaded.Layers(), 1)
	assert.Nil(t, loaded.Layers()[0].Bias)
	assert.InDelta(t, -1, predictScalar(t, mem, loaded, 2, 3), 1e-6)
}

func TestLoadArtifact_Malformed(t *testing.T) {
	dense := `{"class_name":"Sequential","config":{"layers":[{"class_name":"Dense","config":{"name":"d","units":1}}]}}`

	tests := []struct {
		name    string
		doc     string
		weights []byte
		wantErr error
	}{
		{
			name:    "invalid json",
			doc:     `{"modelTopology":`,
			wantErr: ErrMalformedArtifact,
		},
		{
			name:    "missing topology",
			doc:     `{"weightsManifest":[]}`,
			wantErr: ErrMalformedArtifact,
		},
		{
			name:    "unsupported layer",
			doc:     `{"modelTopology":{"class_name":"Sequential","config":{"layers":[{"class_name":"Conv2D","config":{"name":"c"}}]}},"weightsManifest":[]}`,
			wantErr: ErrUnsupportedArtifact,
		},
		{
			name:    "functional model",
			doc:     `{"modelTopology":{"class_name":"Model","config":{}},"weightsManifest":[]}`,
			wantErr: ErrUnsupportedArtifact,
		},
		{
			name:    "missing weights",
			doc:     `{"modelTopology":` + dense + `,"weightsManifest":[]}`,
			wantErr: ErrMalformedArtifact,
		},
		{
			name:    "short shard",
			doc:     `{"modelTopology":` + dense + `,"weightsManifest":[{"paths":["w.bin"],"weights":[{"name":"d/kernel","shape":[2,1],"dtype":"float32"},{"name":"d/bias","shape":[1],"dtype":"float32"}]}]}`,
			weights: make([]byte, 8),
			wantErr: ErrMalformedArtifact,
		},
		{
			name:    "trailing bytes",
			doc:     `{"modelTopology":` + dense + `,"weightsManifest":[{"paths":["w.bin"],"weights":[{"name":"d/kernel","shape":[2,1],"dtype":"float32"},{"name":"d/bias","shape":[1],"dtype":"float32"}]}]}`,
			weights: make([]byte, 16),
			wantErr: ErrMalformedArtifact,
		},
		{
			name:    "int weights",
			doc:     `{"modelTopology":` + dense + `,"weightsManifest":[{"paths":["w.bin"],"weights":[{"name":"d/kernel","shape":[2,1],"dtype":"int32"}]}]}`,
			weights: make([]byte, 8),
			wantErr: ErrUnsupportedArtifact,
		},
		{
			name:    "overflowing shape",
			doc:     `{"modelTopology":` + dense + `,"weightsManifest":[{"paths":["w.bin"],"weights":[{"name":"d/kernel","shape":[2305843009213693952,1],"dtype":"float32"}]}]}`,
			weights: make([]byte, 12),
			wantErr: ErrMalformedArtifact,
		},
		{
			name:    "zero dimension",
			doc:     `{"modelTopology":` + dense + `,"weightsManifest":[{"paths":["w.bin"],"weights":[{"name":"d/kernel","shape":[0,1],"dtype":"float32"}]}]}`,
			weights: make([]byte, 12),
			wantErr: ErrMalformedArtifact,
		},
		{
			name:    "missing shard",
			doc:     `{"modelTopology":` + dense + `,"weightsManifest":[{"paths":["absent.bin"],"weights":[]}]}`,
			wantErr: ErrArtifactNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := tensor.NewMemory()
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte(tt.doc), 0o644))
			if tt.weights != nil {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "w.bin"), tt.weights, 0o644))
			}

			_, err := LoadArtifact(context.Background(), FileFetcher{}, filepath.Join(dir, "model.json"), mem)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tensor.Stats{}, mem.Stats())
		})
	}
}

func TestFileFetcher_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FileFetcher{}.Fetch(ctx, "/does/not/matter")
	assert.ErrorIs(t, err, context.Canceled)
}
