package control

// ColorSampler produces average colors from designated layer render
// targets. The render layer implements it; bridges (DMX, Hue) consume it on
// their own cadence without touching the GPU directly.
type ColorSampler interface {
	// SampleAverageColor returns the average RGB of the layer's last
	// rendered frame, each channel in [0, 1].
	//
	// Parameters:
	//   - layerPartID: the layer part whose target is sampled
	//
	// Returns:
	//   - r, g, b: average color
	//   - error: when the layer has no current target
	SampleAverageColor(layerPartID uint64) (r, g, b float32, err error)
}

// LampCommand is one normalized color command for a physical lamp.
type LampCommand struct {
	// LightID identifies the lamp in its protocol's namespace.
	LightID string
	// R, G, B are the target color in [0, 1].
	R, G, B float32
	// Brightness is the master dimmer in [0, 1].
	Brightness float32
}
