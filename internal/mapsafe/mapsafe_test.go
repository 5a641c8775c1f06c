package mapsafe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	var m map[string]any
	err := json.Unmarshal([]byte(`{"units":1,"rate":0.5,"half":1.5,"name":"dense","use_bias":false,"nothing":null}`), &m)
	assert.NoError(t, err)

	assert.Equal(t, 1, Get(m, "units", 0))
	assert.Equal(t, 0.5, Get(m, "rate", 0.0))
	assert.Equal(t, "dense", Get(m, "name", ""))
	assert.False(t, Get(m, "use_bias", true))

	// Defaults for missing, null, non-integral, and mistyped values.
	assert.True(t, Get(m, "missing", true))
	assert.Equal(t, "fallback", Get(m, "nothing", "fallback"))
	assert.Equal(t, -1, Get(m, "half", -1))
	assert.Equal(t, 7, Get(m, "name", 7))
	assert.Equal(t, 1.0, Get(m, "units", 0.0))
}

func TestGet_JSONNumber(t *testing.T) {
	m := map[string]any{"units": json.Number("3"), "rate": json.Number("0.25")}

	assert.Equal(t, 3, Get(m, "units", 0))
	assert.Equal(t, 0.25, Get(m, "rate", 0.0))
	assert.Equal(t, 0, Get(m, "rate", 0))
}
