package output

import (
	"github.com/MrLongNight/mapflow-go/common"
)

// EdgeBlendZone configures the falloff on one edge of an output.
type EdgeBlendZone struct {
	Enabled bool `yaml:"enabled"`
	// Width of the blend zone as a fraction of the output dimension (0..0.5).
	Width float32 `yaml:"width"`
	// Offset shifts the zone inward (positive) or outward (negative).
	Offset float32 `yaml:"offset"`
}

// DefaultEdgeBlendZone returns a disabled zone with a 10% width.
func DefaultEdgeBlendZone() EdgeBlendZone {
	return EdgeBlendZone{Width: 0.1}
}

// EdgeBlendConfig holds the four edge zones and the shared blend gamma.
// Adjacent projectors whose gammas match sum to unity across the shared
// zone once their output response is applied.
type EdgeBlendConfig struct {
	Left   EdgeBlendZone `yaml:"left"`
	Right  EdgeBlendZone `yaml:"right"`
	Top    EdgeBlendZone `yaml:"top"`
	Bottom EdgeBlendZone `yaml:"bottom"`
	Gamma  float32       `yaml:"gamma"`
}

// DefaultEdgeBlendConfig returns four disabled zones with gamma 2.2.
func DefaultEdgeBlendConfig() EdgeBlendConfig {
	return EdgeBlendConfig{
		Left:   DefaultEdgeBlendZone(),
		Right:  DefaultEdgeBlendZone(),
		Top:    DefaultEdgeBlendZone(),
		Bottom: DefaultEdgeBlendZone(),
		Gamma:  2.2,
	}
}

// AnyEnabled reports whether at least one edge zone is active.
func (c EdgeBlendConfig) AnyEnabled() bool {
	return c.Left.Enabled || c.Right.Enabled || c.Top.Enabled || c.Bottom.Enabled
}

// zoneFactor evaluates one edge's attenuation at distance d from that edge
// (normalized to the output dimension). Outside the zone the factor is 1.
func (c EdgeBlendConfig) zoneFactor(zone EdgeBlendZone, d float32) float32 {
	if !zone.Enabled || zone.Width <= 0 {
		return 1
	}
	d -= zone.Offset
	if d >= zone.Width {
		return 1
	}
	if d <= 0 {
		return 0
	}
	s := common.Smoothstep(d / zone.Width)
	gamma := c.Gamma
	if gamma <= 0 {
		gamma = 1
	}
	return common.Pow(s, gamma)
}

// FactorAt returns the combined blend factor at normalized position (u, v)
// on the output. This is the CPU mirror of the edge blend fragment shader;
// the shader multiplies the fragment color and alpha by it.
//
// Parameters:
//   - u, v: position on the output in [0, 1]
//
// Returns:
//   - float32: attenuation in [0, 1]
func (c EdgeBlendConfig) FactorAt(u, v float32) float32 {
	factor := c.zoneFactor(c.Left, u)
	factor *= c.zoneFactor(c.Right, 1-u)
	factor *= c.zoneFactor(c.Top, v)
	factor *= c.zoneFactor(c.Bottom, 1-v)
	return factor
}
