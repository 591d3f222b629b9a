package osc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/control"
)

func TestParseLayerTargets(t *testing.T) {
	target, err := ParseAddress("/mapmap/layer/0/opacity")
	require.NoError(t, err)
	assert.Equal(t, control.LayerOpacity(0), target)

	target, err = ParseAddress("/mapmap/layer/5/position")
	require.NoError(t, err)
	assert.Equal(t, control.LayerPosition(5), target)

	target, err = ParseAddress("/mapmap/layer/2/rotation")
	require.NoError(t, err)
	assert.Equal(t, control.LayerRotation(2), target)

	target, err = ParseAddress("/mapmap/layer/7/scale")
	require.NoError(t, err)
	assert.Equal(t, control.LayerScale(7), target)

	target, err = ParseAddress("/mapmap/layer/10/visibility")
	require.NoError(t, err)
	assert.Equal(t, control.LayerVisibility(10), target)
}

func TestParseMasterTargets(t *testing.T) {
	target, err := ParseAddress("/mapmap/master/opacity")
	require.NoError(t, err)
	assert.Equal(t, control.MasterOpacity(), target)

	target, err = ParseAddress("/mapmap/master/blackout")
	require.NoError(t, err)
	assert.Equal(t, control.MasterBlackout(), target)
}

func TestParseParameterTargets(t *testing.T) {
	target, err := ParseAddress("/mapmap/paint/3/parameter/speed")
	require.NoError(t, err)
	assert.Equal(t, control.PaintParameter(3, "speed"), target)

	target, err = ParseAddress("/mapmap/effect/1/parameter/intensity")
	require.NoError(t, err)
	assert.Equal(t, control.EffectParameter(1, "intensity"), target)
}

func TestParsePlaybackAndOutput(t *testing.T) {
	target, err := ParseAddress("/mapmap/playback/speed")
	require.NoError(t, err)
	assert.Equal(t, control.PlaybackSpeed(), target)

	target, err = ParseAddress("/mapmap/playback/position")
	require.NoError(t, err)
	assert.Equal(t, control.PlaybackPosition(), target)

	target, err = ParseAddress("/mapmap/output/0/brightness")
	require.NoError(t, err)
	assert.Equal(t, control.OutputBrightness(0), target)

	target, err = ParseAddress("/mapmap/output/4/edge_blend/left")
	require.NoError(t, err)
	assert.Equal(t, control.OutputEdgeBlend(4, control.EdgeLeft), target)
}

func TestInvalidAddresses(t *testing.T) {
	bad := []string{
		"/invalid/address",
		"/mapmap",
		"/mapmap/layer",
		"/mapmap/layer/notanumber/opacity",
		"/mapmap/layer/1/unknown",
		"/mapmap/unknowncategory/test",
		"/mapmap/master",
		"/mapmap/master/unknown",
		"/mapmap/output",
		"/mapmap/output/abc",
		"/mapmap/output/0",
		"/mapmap/output/0/unknown",
		"/mapmap/output/0/edge_blend/diagonal",
		"/mapmap/paint/0/parameter",
		"/mapmap/playback/reverse",
	}
	for _, address := range bad {
		_, err := ParseAddress(address)
		require.Error(t, err, address)
		assert.ErrorIs(t, err, control.ErrInvalidMessage, address)
	}
}

func TestRoundTrip(t *testing.T) {
	targets := []control.ControlTarget{
		control.MasterOpacity(),
		control.MasterBlackout(),
		control.LayerOpacity(5),
		control.LayerPosition(3),
		control.LayerScale(1),
		control.LayerRotation(8),
		control.LayerVisibility(0),
		control.PaintParameter(3, "speed"),
		control.EffectParameter(9, "mix"),
		control.PlaybackSpeed(),
		control.PlaybackPosition(),
		control.OutputBrightness(2),
		control.OutputEdgeBlend(1, control.EdgeRight),
	}

	for _, target := range targets {
		address := FormatAddress(target)
		parsed, err := ParseAddress(address)
		require.NoError(t, err, address)
		assert.Equal(t, target, parsed, address)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	_, err := ParseAddress("/mapmap/paint/3/parameter/..")
	require.Error(t, err)
	assert.ErrorIs(t, err, control.ErrInvalidMessage)

	// Backslashes are rejected even though they survive the slash split.
	_, err = ParseAddress(`/mapmap/effect/1/parameter/a\b`)
	require.Error(t, err)
	assert.ErrorIs(t, err, control.ErrInvalidMessage)
}

func TestLengthLimits(t *testing.T) {
	hugeName := strings.Repeat("a", 10000)
	_, err := ParseAddress("/mapmap/paint/0/parameter/" + hugeName)
	require.Error(t, err)
	assert.ErrorIs(t, err, control.ErrInvalidMessage)

	hugeAddress := "/mapmap/" + strings.Repeat("a", 2000)
	_, err = ParseAddress(hugeAddress)
	require.Error(t, err)
	assert.ErrorIs(t, err, control.ErrInvalidMessage)

	// A name just inside the limit passes.
	okName := strings.Repeat("b", 256)
	target, err := ParseAddress("/mapmap/paint/0/parameter/" + okName)
	require.NoError(t, err)
	assert.Equal(t, control.PaintParameter(0, okName), target)
}
