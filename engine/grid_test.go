package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/engine/module"
	"github.com/MrLongNight/mapflow-go/engine/output"
)

func TestGenerateGridTexture(t *testing.T) {
	const w, h = 256, 256
	data := GenerateGridTexture(w, h, 3)
	require.Len(t, data, w*h*4)

	// Border pixels are white.
	assert.Equal(t, byte(255), data[0])
	assert.Equal(t, byte(255), data[3])

	// Every pixel is opaque.
	for i := 3; i < len(data); i += 4 {
		if data[i] != 255 {
			t.Fatalf("pixel %d not opaque", i/4)
		}
	}

	// The pattern contains grid lines, background, and digit pixels.
	colors := map[[3]byte]bool{}
	for i := 0; i < len(data); i += 4 {
		colors[[3]byte{data[i], data[i+1], data[i+2]}] = true
	}
	assert.True(t, colors[[3]byte{128, 128, 128}], "grid lines present")
	assert.True(t, colors[[3]byte{16, 16, 16}], "background present")
	assert.True(t, colors[[3]byte{255, 255, 0}], "layer number present")
}

func TestGenerateGridTextureZeroLayer(t *testing.T) {
	data := GenerateGridTexture(128, 128, 0)
	require.Len(t, data, 128*128*4)

	found := false
	for i := 0; i < len(data); i += 4 {
		if data[i] == 255 && data[i+1] == 255 && data[i+2] == 0 {
			found = true
			break
		}
	}
	assert.True(t, found, "layer 0 still draws a digit")
}

func TestGroupOpsByOutput(t *testing.T) {
	ops := []module.RenderOp{
		{OutputPartID: 1, Output: module.OutputBinding{ID: 10}},
		{OutputPartID: 2, Output: module.OutputBinding{ID: 11}},
		{OutputPartID: 3, Output: module.OutputBinding{ID: 10}},
	}
	grouped := groupOps(ops)
	assert.Len(t, grouped[output.ID(10)], 2)
	assert.Len(t, grouped[output.ID(11)], 1)
}
