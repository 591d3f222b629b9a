package postfx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrLongNight/mapflow-go/engine/output"
)

func TestEdgeBlendUniformPacking(t *testing.T) {
	config := output.DefaultEdgeBlendConfig()
	config.Right.Enabled = true
	config.Right.Width = 0.15
	config.Right.Offset = 0.02

	u := EdgeBlendUniforms(config)

	// Left zone disabled.
	assert.Equal(t, float32(0), u[2])
	// Right zone: width, offset, enabled.
	assert.Equal(t, float32(0.15), u[4])
	assert.Equal(t, float32(0.02), u[5])
	assert.Equal(t, float32(1), u[6])
	// Shared gamma.
	assert.Equal(t, float32(2.2), u[16])
}

func TestEdgeBlendGammaFallback(t *testing.T) {
	config := output.DefaultEdgeBlendConfig()
	config.Gamma = 0
	u := EdgeBlendUniforms(config)
	assert.Equal(t, float32(1), u[16], "non-positive gamma falls back to linear")
}

func TestCalibUniformPacking(t *testing.T) {
	calib := output.DefaultColorCalibration()
	u := CalibUniforms(calib)

	assert.Equal(t, float32(0), u[0], "neutral brightness")
	assert.Equal(t, float32(1), u[1], "neutral contrast")
	assert.Equal(t, float32(1), u[2], "neutral saturation")
	assert.Equal(t, float32(0), u[3], "D65 has no temperature shift")
	assert.Equal(t, float32(1), u[4])
	assert.Equal(t, float32(1), u[5])
	assert.Equal(t, float32(1), u[6])

	calib.ColorTemp = 3000
	u = CalibUniforms(calib)
	assert.Equal(t, float32(-1), u[3], "warm white point clamps to the full shift")

	calib.ColorTemp = 10000
	u = CalibUniforms(calib)
	assert.Equal(t, float32(1), u[3])
}
