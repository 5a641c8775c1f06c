package model

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/ju4n97/neurocalc/internal/mapsafe"
	"github.com/ju4n97/neurocalc/internal/tensor"
)

// ArtifactFile is the conventional name of the model description.
const ArtifactFile = "model.json"

type (
	artifactJSON struct {
		ModelTopology   json.RawMessage    `json:"modelTopology"`
		Format          string             `json:"format,omitempty"`
		WeightsManifest []weightsGroupJSON `json:"weightsManifest"`
	}

	weightsGroupJSON struct {
		Paths   []string         `json:"paths"`
		Weights []weightSpecJSON `json:"weights"`
	}

	weightSpecJSON struct {
		Name  string `json:"name"`
		Dtype string `json:"dtype"`
		Shape []int  `json:"shape"`
	}

	topologyJSON struct {
		ModelConfig *topologyJSON   `json:"model_config,omitempty"`
		ClassName   string          `json:"class_name"`
		Config      json.RawMessage `json:"config"`
	}

	layerJSON struct {
		ClassName string         `json:"class_name"`
		Config    map[string]any `json:"config"`
	}
)

// LoadArtifact fetches the model description at location and its weight shards, and
// builds a Sequential model whose tensors are allocated from mem.
func LoadArtifact(ctx context.Context, fetcher Fetcher, location string, mem *tensor.Memory) (*Sequential, error) {
	data, err := fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}

	var doc artifactJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
	}
	if doc.Format != "" && doc.Format != "layers-model" {
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedArtifact, doc.Format)
	}

	layers, err := parseTopology(doc.ModelTopology)
	if err != nil {
		return nil, err
	}

	weights, err := loadWeights(ctx, fetcher, location, doc.WeightsManifest)
	if err != nil {
		return nil, err
	}

	return buildSequential(layers, weights, mem)
}

func parseTopology(raw json.RawMessage) ([]layerJSON, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing modelTopology", ErrMalformedArtifact)
	}

	var topo topologyJSON
	if err := json.Unmarshal(raw, &topo); err != nil {
		return nil, fmt.Errorf("%w: topology: %w", ErrMalformedArtifact, err)
	}
	if topo.ModelConfig != nil {
		topo = *topo.ModelConfig
	}
	if topo.ClassName != "Sequential" {
		return nil, fmt.Errorf("%w: model class %q", ErrUnsupportedArtifact, topo.ClassName)
	}

	// Older exports store the layer list directly as the config.
	var layers []layerJSON
	if bytes.HasPrefix(bytes.TrimSpace(topo.Config), []byte("[")) {
		if err := json.Unmarshal(topo.Config, &layers); err != nil {
			return nil, fmt.Errorf("%w: layers: %w", ErrMalformedArtifact, err)
		}
	} else {
		var cfg struct {
			Layers []layerJSON `json:"layers"`
		}
		if err := json.Unmarshal(topo.Config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: layers: %w", ErrMalformedArtifact, err)
		}
		layers = cfg.Layers
	}

	dense := layers[:0]
	for _, l := range layers {
		switch l.ClassName {
		case "InputLayer":
			continue
		case "Dense":
			dense = append(dense, l)
		default:
			return nil, fmt.Errorf("%w: layer class %q", ErrUnsupportedArtifact, l.ClassName)
		}
	}
	if len(dense) == 0 {
		return nil, fmt.Errorf("%w: no dense layers", ErrMalformedArtifact)
	}

	return dense, nil
}

type namedWeight struct {
	values []float32
	shape  []int
}

func loadWeights(ctx context.Context, fetcher Fetcher, location string, manifest []weightsGroupJSON) (map[string]namedWeight, error) {
	weights := make(map[string]namedWeight)

	for _, group := range manifest {
		var buf bytes.Buffer
		for _, p := range group.Paths {
			shardURL, err := resolveRef(location, p)
			if err != nil {
				return nil, err
			}

			shard, err := fetcher.Fetch(ctx, shardURL)
			if err != nil {
				return nil, fmt.Errorf("weights shard %s: %w", p, err)
			}
			buf.Write(shard)
		}

		raw := buf.Bytes()
		offset := 0
		for _, spec := range group.Weights {
			if spec.Dtype != "" && spec.Dtype != "float32" {
				return nil, fmt.Errorf("%w: weight %s dtype %q", ErrUnsupportedArtifact, spec.Name, spec.Dtype)
			}

			// Bound the element count by the bytes left so huge shapes cannot overflow.
			n := 1
			remaining := (len(raw) - offset) / 4
			for _, d := range spec.Shape {
				if d <= 0 || n > remaining/d {
					return nil, fmt.Errorf("%w: weight %s shape %v does not fit %d bytes at offset %d", ErrMalformedArtifact, spec.Name, spec.Shape, len(raw), offset)
				}
				n *= d
			}

			end := offset + n*4
			if n <= 0 || end > len(raw) {
				return nil, fmt.Errorf("%w: weight %s needs %d bytes at offset %d, shards hold %d", ErrMalformedArtifact, spec.Name, n*4, offset, len(raw))
			}

			values := make([]float32, n)
			for i := range values {
				values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[offset+i*4:]))
			}
			weights[spec.Name] = namedWeight{values: values, shape: spec.Shape}
			offset = end
		}

		if offset != len(raw) {
			return nil, fmt.Errorf("%w: %d trailing bytes in weights group", ErrMalformedArtifact, len(raw)-offset)
		}
	}

	return weights, nil
}

func buildSequential(layers []layerJSON, weights map[string]namedWeight, mem *tensor.Memory) (*Sequential, error) {
	dense := make([]*Dense, 0, len(layers))
	release := func() {
		for _, d := range dense {
			d.Kernel.Dispose()
			if d.Bias != nil {
				d.Bias.Dispose()
			}
		}
	}

	for _, l := range layers {
		name := mapsafe.Get(l.Config, "name", "")
		units := mapsafe.Get(l.Config, "units", 0)

		activation := Activation(mapsafe.Get(l.Config, "activation", ""))
		switch activation {
		case "", ActivationLinear, ActivationReLU:
		default:
			release()
			return nil, fmt.Errorf("%w: activation %q", ErrUnsupportedArtifact, activation)
		}

		kw, ok := lookupWeight(weights, name, "kernel")
		if !ok {
			release()
			return nil, fmt.Errorf("%w: missing kernel for layer %s", ErrMalformedArtifact, name)
		}
		if len(kw.shape) != 2 || (units > 0 && kw.shape[1] != units) {
			release()
			return nil, fmt.Errorf("%w: kernel shape %v for layer %s", ErrMalformedArtifact, kw.shape, name)
		}

		kernel, err := mem.New(kw.shape, kw.values)
		if err != nil {
			release()
			return nil, fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
		}
		layer := &Dense{Name: name, Kernel: kernel, Activation: activation}
		dense = append(dense, layer)

		if mapsafe.Get(l.Config, "use_bias", true) {
			bw, ok := lookupWeight(weights, name, "bias")
			if !ok {
				release()
				return nil, fmt.Errorf("%w: missing bias for layer %s", ErrMalformedArtifact, name)
			}
			bias, err := mem.New(bw.shape, bw.values)
			if err != nil {
				release()
				return nil, fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
			}
			layer.Bias = bias
		}
	}

	return NewSequential(dense...), nil
}

// lookupWeight matches "<layer>/<kind>", also when exporters prefix a scope.
func lookupWeight(weights map[string]namedWeight, layer, kind string) (namedWeight, bool) {
	suffix := layer + "/" + kind
	if w, ok := weights[suffix]; ok {
		return w, true
	}
	for name, w := range weights {
		if strings.HasSuffix(name, "/"+suffix) {
			return w, true
		}
	}
	return namedWeight{}, false
}

// ArtifactURL joins origin and the per-operation artifact path.
func ArtifactURL(origin string, op Operation) (string, error) {
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	return strings.TrimRight(origin, "/") + "/model_" + op.String() + "/" + ArtifactFile, nil
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse artifact location %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: shard path %q: %w", ErrMalformedArtifact, ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
