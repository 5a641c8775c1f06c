package model

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// WeightsFile is the shard name written by WriteArtifact.
const WeightsFile = "group1-shard1of1.bin"

// WriteArtifact stores m in dir as a layers-model description plus one weights shard.
func WriteArtifact(dir string, m *Sequential) error {
	if m.disposed.Load() {
		return ErrDisposed
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var (
		layers  []map[string]any
		specs   []weightSpecJSON
		weights bytes.Buffer
	)

	for i, layer := range m.layers {
		kernelShape := layer.Kernel.Shape()
		activation := layer.Activation
		if activation == "" {
			activation = ActivationLinear
		}

		cfg := map[string]any{
			"name":       layer.Name,
			"units":      kernelShape[1],
			"activation": string(activation),
			"use_bias":   layer.Bias != nil,
		}
		if i == 0 {
			cfg["batch_input_shape"] = []any{nil, kernelShape[0]}
		}
		layers = append(layers, map[string]any{"class_name": "Dense", "config": cfg})

		if err := appendWeight(&weights, &specs, layer.Name+"/kernel", layer.Kernel.Shape(), layer.Kernel.Data); err != nil {
			return err
		}
		if layer.Bias != nil {
			if err := appendWeight(&weights, &specs, layer.Name+"/bias", layer.Bias.Shape(), layer.Bias.Data); err != nil {
				return err
			}
		}
	}

	topology, err := json.Marshal(map[string]any{
		"class_name": "Sequential",
		"config":     map[string]any{"name": "sequential", "layers": layers},
	})
	if err != nil {
		return err
	}

	doc, err := json.MarshalIndent(artifactJSON{
		Format:        "layers-model",
		ModelTopology: topology,
		WeightsManifest: []weightsGroupJSON{{
			Paths:   []string{WeightsFile},
			Weights: specs,
		}},
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, WeightsFile), weights.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write weights: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ArtifactFile), doc, 0o644); err != nil {
		return fmt.Errorf("failed to write model description: %w", err)
	}

	return nil
}

func appendWeight(buf *bytes.Buffer, specs *[]weightSpecJSON, name string, shape []int, data func() ([]float32, error)) error {
	values, err := data()
	if err != nil {
		return fmt.Errorf("weight %s: %w", name, err)
	}

	var word [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(word[:], math.Float32bits(v))
		buf.Write(word[:])
	}

	*specs = append(*specs, weightSpecJSON{Name: name, Dtype: "float32", Shape: shape})
	return nil
}
