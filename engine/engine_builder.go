package engine

import (
	"github.com/MrLongNight/mapflow-go/engine/output"
)

// EngineBuilderOption is a functional option used to configure an Engine during construction.
type EngineBuilderOption func(*engine)

// WithUIPass registers the control-window UI renderer.
//
// Parameters:
//   - pass: the UI pass callback
//
// Returns:
//   - EngineBuilderOption: a function that sets the UI pass
func WithUIPass(pass UIPass) EngineBuilderOption {
	return func(e *engine) {
		e.uiPass = pass
	}
}

// WithPrePresent registers a callback fired after submit and before
// present for each output, used for frame-accurate external sync.
//
// Parameters:
//   - callback: receives the output ID about to present
//
// Returns:
//   - EngineBuilderOption: a function that sets the pre-present hook
func WithPrePresent(callback func(id output.ID)) EngineBuilderOption {
	return func(e *engine) {
		e.prePresent = callback
	}
}

// WithProfiling enables profiler output from the first frame.
//
// Returns:
//   - EngineBuilderOption: a function that enables profiling
func WithProfiling() EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = true
	}
}

// WithRenderFrameLimit caps the render loop at the given frames per second.
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: a function that sets the frame limit
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetRenderFrameLimit(fps)
	}
}

// WithCanvasSize sets the global canvas dimensions.
//
// Parameters:
//   - width, height: canvas size in pixels
//
// Returns:
//   - EngineBuilderOption: a function that sets the canvas size
func WithCanvasSize(width, height uint32) EngineBuilderOption {
	return func(e *engine) {
		e.outputs.CanvasSize = [2]uint32{width, height}
	}
}
