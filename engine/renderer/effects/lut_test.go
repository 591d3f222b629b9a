package effects

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/common"
)

func TestIdentityLutIsIdentity(t *testing.T) {
	lut := IdentityLut(LutSize32)
	assert.Equal(t, LutSize32*LutSize32*LutSize32*3, len(lut.Data))

	colors := []common.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 1},
		{X: 0.5, Y: 0.25, Z: 0.75},
		{X: 0.123, Y: 0.456, Z: 0.789},
	}
	for _, c := range colors {
		got := lut.Apply(c)
		assert.InDelta(t, float64(c.X), float64(got.X), 0.01)
		assert.InDelta(t, float64(c.Y), float64(got.Y), 0.01)
		assert.InDelta(t, float64(c.Z), float64(got.Z), 0.01)
	}
}

// Pure red through the grayscale preset lands on its Rec.601 luma.
func TestGrayscalePresetOnRed(t *testing.T) {
	lut := PresetLut(PresetGrayscale, LutSize32)

	got := lut.Apply(common.Vec3{X: 1, Y: 0, Z: 0})
	assert.InDelta(t, 0.299, float64(got.X), 0.01)
	assert.InDelta(t, 0.299, float64(got.Y), 0.01)
	assert.InDelta(t, 0.299, float64(got.Z), 0.01)
}

func TestInvertedPreset(t *testing.T) {
	lut := PresetLut(PresetInverted, LutSize32)
	got := lut.Apply(common.Vec3{X: 1, Y: 0, Z: 0.25})
	assert.InDelta(t, 0.0, float64(got.X), 0.01)
	assert.InDelta(t, 1.0, float64(got.Y), 0.01)
	assert.InDelta(t, 0.75, float64(got.Z), 0.02)
}

func TestWarmAndCoolShiftDirections(t *testing.T) {
	gray := common.Vec3{X: 0.5, Y: 0.5, Z: 0.5}

	warm := PresetLut(PresetWarm, LutSize32).Apply(gray)
	assert.Greater(t, warm.X, warm.Z)

	cool := PresetLut(PresetCool, LutSize32).Apply(gray)
	assert.Greater(t, cool.Z, cool.X)
}

func TestParseCube(t *testing.T) {
	content := `# test cube
TITLE "Tiny"
LUT_3D_SIZE 2
0.0 0.0 0.0
1.0 0.0 0.0
0.0 1.0 0.0
1.0 1.0 0.0
0.0 0.0 1.0
1.0 0.0 1.0
0.0 1.0 1.0
1.0 1.0 1.0
`
	lut, err := ParseCube(content)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", lut.Name)
	assert.Equal(t, 2, lut.Size)
	assert.Equal(t, 24, len(lut.Data))

	// A 2x2x2 identity-style cube still interpolates correctly.
	got := lut.Apply(common.Vec3{X: 1, Y: 0, Z: 0})
	assert.InDelta(t, 1.0, float64(got.X), 1e-5)
	assert.InDelta(t, 0.0, float64(got.Y), 1e-5)
}

func TestParseCubeErrors(t *testing.T) {
	_, err := ParseCube("0.0 0.0 0.0\n")
	require.Error(t, err, "missing LUT_3D_SIZE")

	_, err = ParseCube("LUT_3D_SIZE 2\n0.0 0.0 0.0\n")
	require.Error(t, err, "wrong sample count")

	_, err = ParseCube("LUT_3D_SIZE nope\n")
	require.Error(t, err)

	_, err = ParseCube("LUT_3D_SIZE 2\n" + "a b c\n")
	require.Error(t, err)
}

func TestAtlasDataLayout(t *testing.T) {
	lut := IdentityLut(LutSize32)
	data, width, height := lut.AtlasData()

	assert.Equal(t, uint32(LutSize32), width)
	assert.Equal(t, uint32(LutSize32*LutSize32), height)
	assert.Equal(t, int(width)*int(height)*4, len(data))

	// First texel is black, opaque.
	assert.Equal(t, byte(0), data[0])
	assert.Equal(t, byte(255), data[3])

	// Last texel of the last slice is white.
	last := (int(width)*int(height) - 1) * 4
	assert.Equal(t, byte(255), data[last])
	assert.Equal(t, byte(255), data[last+1])
	assert.Equal(t, byte(255), data[last+2])
}

func TestLutLibraryPresets(t *testing.T) {
	lib := NewLutLibrary()
	defer lib.Close()

	for _, preset := range Presets() {
		assert.NotNil(t, lib.Get(preset.String()), preset.String())
	}
	assert.Nil(t, lib.Get("DoesNotExist"))
	assert.Len(t, lib.Names(), len(Presets()))
}

func TestLutLibraryWatchReload(t *testing.T) {
	dir := t.TempDir()
	lib := NewLutLibrary()
	defer lib.Close()

	require.NoError(t, lib.Watch(dir))

	content := "TITLE \"Live\"\nLUT_3D_SIZE 2\n" +
		"0 0 0\n1 0 0\n0 1 0\n1 1 0\n0 0 1\n1 0 1\n0 1 1\n1 1 1\n"
	path := filepath.Join(dir, "live.cube")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.Eventually(t, func() bool {
		return lib.Get("Live") != nil
	}, 2*time.Second, 10*time.Millisecond, "watcher should pick up the new LUT")
}
