package output

import (
	"github.com/MrLongNight/mapflow-go/common"
)

// ColorCalibration is the per-output color correction chain. Applied after
// edge blending, in this order: brightness add, contrast around 0.5,
// per-channel gamma, color temperature, luma-preserving saturation.
type ColorCalibration struct {
	// Brightness is added to each channel (-1..1).
	Brightness float32 `yaml:"brightness"`
	// Contrast scales around mid gray (0..2).
	Contrast float32 `yaml:"contrast"`
	// GammaR, GammaG, GammaB are the per-channel gamma exponents.
	GammaR float32 `yaml:"gamma_r"`
	GammaG float32 `yaml:"gamma_g"`
	GammaB float32 `yaml:"gamma_b"`
	// ColorTemp is the target white point in Kelvin (2000..10000, D65 neutral).
	ColorTemp float32 `yaml:"color_temp"`
	// Saturation scales chroma (0..2) preserving luma.
	Saturation float32 `yaml:"saturation"`
}

// DefaultColorCalibration returns the neutral calibration.
func DefaultColorCalibration() ColorCalibration {
	return ColorCalibration{
		Contrast:   1,
		GammaR:     1,
		GammaG:     1,
		GammaB:     1,
		ColorTemp:  6500,
		Saturation: 1,
	}
}

// IsNeutral reports whether the calibration leaves colors unchanged.
func (c ColorCalibration) IsNeutral() bool {
	return c == DefaultColorCalibration()
}

// Apply runs the calibration chain on one RGB color. This is the CPU mirror
// of the calibration fragment shader.
//
// Parameters:
//   - color: input RGB in [0, 1]
//
// Returns:
//   - common.Vec3: calibrated RGB clamped to [0, 1]
func (c ColorCalibration) Apply(color common.Vec3) common.Vec3 {
	r, g, b := color.X, color.Y, color.Z

	// Brightness.
	r += c.Brightness
	g += c.Brightness
	b += c.Brightness

	// Contrast around mid gray.
	r = (r-0.5)*c.Contrast + 0.5
	g = (g-0.5)*c.Contrast + 0.5
	b = (b-0.5)*c.Contrast + 0.5

	r = common.Clamp(r, 0, 1)
	g = common.Clamp(g, 0, 1)
	b = common.Clamp(b, 0, 1)

	// Per-channel gamma.
	if c.GammaR > 0 {
		r = common.Pow(r, 1/c.GammaR)
	}
	if c.GammaG > 0 {
		g = common.Pow(g, 1/c.GammaG)
	}
	if c.GammaB > 0 {
		b = common.Pow(b, 1/c.GammaB)
	}

	// Color temperature: a black-body approximation shifting red and blue
	// in opposite directions around D65.
	t := common.Clamp((c.ColorTemp-6500)/3500, -1, 1)
	r *= 1 - 0.2*t
	b *= 1 + 0.2*t

	r = common.Clamp(r, 0, 1)
	g = common.Clamp(g, 0, 1)
	b = common.Clamp(b, 0, 1)

	// Saturation, preserving Rec.601 luma.
	luma := 0.299*r + 0.587*g + 0.114*b
	r = common.Clamp(luma+(r-luma)*c.Saturation, 0, 1)
	g = common.Clamp(luma+(g-luma)*c.Saturation, 0, 1)
	b = common.Clamp(luma+(b-luma)*c.Saturation, 0, 1)

	return common.Vec3{X: r, Y: g, Z: b}
}
